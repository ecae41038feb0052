package template

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

var placeholder = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// Registry holds named message templates. Bodies use {{name}}
// placeholders; unresolved placeholders are left intact so missing
// variables are visible in the delivered text rather than silently
// dropped.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]string
}

func NewRegistry() *Registry {
	r := &Registry{templates: make(map[string]string)}
	for id, body := range builtins {
		r.templates[id] = body
	}
	return r
}

var builtins = map[string]string{
	"order_confirmed":  "Your order {{order_id}} is confirmed. Total: {{total}}. Thank you!",
	"order_status":     "Order {{order_id}} update: {{old_status}} -> {{new_status}}.",
	"payment_received": "Payment of {{amount}} received for order {{order_id}}.",
	"delivery_update":  "Delivery update for order {{order_id}}: {{status}}.",
}

func (r *Registry) Register(id, body string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[id] = body
}

// Render substitutes variables into the named template.
func (r *Registry) Render(id string, vars map[string]string) (string, error) {
	r.mu.RLock()
	body, ok := r.templates[id]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("unknown template %q", id)
	}
	return Substitute(body, vars), nil
}

// Substitute replaces every {{name}} in body with vars[name].
func Substitute(body string, vars map[string]string) string {
	return placeholder.ReplaceAllStringFunc(body, func(m string) string {
		key := strings.TrimSpace(m[2 : len(m)-2])
		if v, ok := vars[key]; ok {
			return v
		}
		return m
	})
}
