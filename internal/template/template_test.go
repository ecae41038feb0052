package template

import "testing"

func TestSubstitute(t *testing.T) {
	got := Substitute("Hello {{name}}, order {{order_id}} is {{status}}", map[string]string{
		"name":     "Ada",
		"order_id": "o-42",
		"status":   "confirmed",
	})
	want := "Hello Ada, order o-42 is confirmed"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSubstituteLeavesUnresolved(t *testing.T) {
	got := Substitute("Hi {{name}}, code {{code}}", map[string]string{"name": "Bo"})
	want := "Hi Bo, code {{code}}"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRegistryRender(t *testing.T) {
	r := NewRegistry()
	r.Register("greet", "Hey {{who}}!")
	got, err := r.Render("greet", map[string]string{"who": "there"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got != "Hey there!" {
		t.Errorf("got %q", got)
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Render("nope", nil); err == nil {
		t.Fatal("expected error for unknown template")
	}
}

func TestBuiltinsSeeded(t *testing.T) {
	r := NewRegistry()
	got, err := r.Render("order_confirmed", map[string]string{"order_id": "o-1", "total": "9.99"})
	if err != nil {
		t.Fatalf("render builtin: %v", err)
	}
	if got == "" {
		t.Fatal("empty render")
	}
}
