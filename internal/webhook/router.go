package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"botqueue/internal/domain"

	"github.com/rs/zerolog/log"
)

// EventHandler reacts to one verified event type. Handlers normalize
// the payload and usually hand work to the job queue; they must not
// block on slow I/O.
type EventHandler func(ctx context.Context, ev domain.WebhookEvent) error

// Subscriber receives every verified event regardless of type.
type Subscriber func(ev domain.WebhookEvent)

// Result is the ingestion outcome returned to the caller.
type Result struct {
	Success   bool `json:"success"`
	Processed bool `json:"processed"`
}

// Status is a read-only health snapshot of the router.
type Status struct {
	SecretsRegistered int        `json:"secrets_registered"`
	EventsInHistory   int        `json:"events_in_history"`
	LastEventAt       *time.Time `json:"last_event_at,omitempty"`
	Subscribers       int        `json:"subscribers"`
}

// Router ingests inbound bot events: verify the per-merchant HMAC
// signature, record the event in a bounded history ring, run the
// type-specific handler, then publish to all subscribers. Secrets and
// history are process-local and guarded by the router's locks.
type Router struct {
	mu          sync.RWMutex
	secrets     map[string]string
	typed       map[domain.EventType]EventHandler
	subscribers []Subscriber

	histMu   sync.Mutex
	history  []domain.WebhookEvent // ring buffer
	histHead int                   // index of the oldest entry
	histLen  int
	capacity int
}

func NewRouter(historyCapacity int) *Router {
	if historyCapacity <= 0 {
		historyCapacity = 1000
	}
	return &Router{
		secrets:  make(map[string]string),
		typed:    make(map[domain.EventType]EventHandler),
		history:  make([]domain.WebhookEvent, historyCapacity),
		capacity: historyCapacity,
	}
}

// RegisterSecret stores the shared secret for a merchant. Events for
// a merchant cannot verify until this has been called. The secret is
// never logged.
func (r *Router) RegisterSecret(merchantID, secret string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.secrets[merchantID] = secret
	log.Debug().Str("merchant", merchantID).Msg("webhook secret registered")
}

// On installs the handler for one event type, replacing any previous
// one.
func (r *Router) On(t domain.EventType, h EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.typed[t] = h
}

// Subscribe adds a listener for every verified event.
func (r *Router) Subscribe(s Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscribers = append(r.subscribers, s)
}

// Sign computes the hex HMAC-SHA256 of body under the merchant's
// secret. Returns false when no secret is registered.
func (r *Router) Sign(merchantID string, body []byte) (string, bool) {
	r.mu.RLock()
	secret, ok := r.secrets[merchantID]
	r.mu.RUnlock()
	if !ok {
		return "", false
	}
	return hmacHex(secret, body), true
}

func hmacHex(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignerFor returns a signing function over a static secret map, for
// components that deliver outbound webhooks without running a router.
func SignerFor(secrets map[string]string) func(merchantID string, body []byte) (string, bool) {
	return func(merchantID string, body []byte) (string, bool) {
		secret, ok := secrets[merchantID]
		if !ok {
			return "", false
		}
		return hmacHex(secret, body), true
	}
}

// Verify checks a caller-supplied signature against the payload.
func (r *Router) Verify(merchantID string, payload []byte, signature string) bool {
	want, ok := r.Sign(merchantID, payload)
	if !ok {
		log.Warn().Str("merchant", merchantID).Msg("no webhook secret on file")
		return false
	}
	if !hmac.Equal([]byte(want), []byte(signature)) {
		log.Warn().Str("merchant", merchantID).Msg("webhook signature mismatch")
		return false
	}
	return true
}

// HandleEvent runs the full ingestion path:
// received -> verified|rejected -> recorded -> dispatched.
// Rejected events are not recorded and no handler runs. An unknown
// event type skips the typed handler but is still recorded and
// published to subscribers, and counts as success.
func (r *Router) HandleEvent(ctx context.Context, eventType string, payload json.RawMessage, merchantID, signature string) Result {
	if !r.Verify(merchantID, payload, signature) {
		return Result{Success: false, Processed: false}
	}

	ev := domain.WebhookEvent{
		Type:       domain.EventType(eventType),
		Payload:    payload,
		MerchantID: merchantID,
		Timestamp:  time.Now(),
	}
	r.record(ev)

	r.mu.RLock()
	handler := r.typed[ev.Type]
	subs := make([]Subscriber, len(r.subscribers))
	copy(subs, r.subscribers)
	r.mu.RUnlock()

	// Subscribers get every verified event, even types the router has
	// no handler for.
	for _, s := range subs {
		s(ev)
	}

	if !ev.Type.Known() {
		log.Ctx(ctx).Warn().Str("type", eventType).Str("merchant", merchantID).Msg("unknown event type ignored")
		return Result{Success: true, Processed: false}
	}

	processed := false
	if handler != nil {
		if err := handler(ctx, ev); err != nil {
			log.Ctx(ctx).Error().Err(err).Str("type", eventType).Msg("event handler failed")
		} else {
			processed = true
		}
	}
	return Result{Success: true, Processed: processed}
}

func (r *Router) record(ev domain.WebhookEvent) {
	r.histMu.Lock()
	defer r.histMu.Unlock()
	if r.histLen < r.capacity {
		r.history[(r.histHead+r.histLen)%r.capacity] = ev
		r.histLen++
		return
	}
	// full: overwrite the oldest
	r.history[r.histHead] = ev
	r.histHead = (r.histHead + 1) % r.capacity
}

// RecentEvents returns up to limit events, newest first, optionally
// filtered by type. It is a diagnostic view, never used for replay.
func (r *Router) RecentEvents(limit int, typeFilter domain.EventType) []domain.WebhookEvent {
	if limit <= 0 {
		limit = 50
	}
	r.histMu.Lock()
	defer r.histMu.Unlock()

	out := make([]domain.WebhookEvent, 0, limit)
	for i := r.histLen - 1; i >= 0 && len(out) < limit; i-- {
		ev := r.history[(r.histHead+i)%r.capacity]
		if typeFilter != "" && ev.Type != typeFilter {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// CurrentStatus reports the router health snapshot.
func (r *Router) CurrentStatus() Status {
	r.mu.RLock()
	secrets := len(r.secrets)
	subscribers := len(r.subscribers)
	r.mu.RUnlock()

	r.histMu.Lock()
	defer r.histMu.Unlock()

	s := Status{
		SecretsRegistered: secrets,
		EventsInHistory:   r.histLen,
		Subscribers:       subscribers,
	}
	if r.histLen > 0 {
		last := r.history[(r.histHead+r.histLen-1)%r.capacity].Timestamp
		s.LastEventAt = &last
	}
	return s
}
