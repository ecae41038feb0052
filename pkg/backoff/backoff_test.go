package backoff

import (
	"testing"
	"time"
)

func TestExponentialDelay(t *testing.T) {
	p := Policy{Kind: Exponential, Base: 2 * time.Second, Cap: time.Minute}

	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second}
	for i, w := range want {
		if got := p.Delay(i + 1); got != w {
			t.Errorf("attempt %d: got %v, want %v", i+1, got, w)
		}
	}
}

func TestExponentialCap(t *testing.T) {
	p := Policy{Kind: Exponential, Base: 2 * time.Second, Cap: 10 * time.Second}
	if got := p.Delay(10); got != 10*time.Second {
		t.Errorf("got %v, want cap 10s", got)
	}
	// large attempt counts must not overflow
	if got := p.Delay(1000); got != 10*time.Second {
		t.Errorf("attempt 1000: got %v, want cap 10s", got)
	}
}

func TestLinearAndFixed(t *testing.T) {
	lin := Policy{Kind: Linear, Base: time.Second, Cap: time.Minute}
	if got := lin.Delay(3); got != 3*time.Second {
		t.Errorf("linear attempt 3: got %v, want 3s", got)
	}

	fixed := Policy{Kind: Fixed, Base: 5 * time.Second}
	for attempt := 1; attempt <= 4; attempt++ {
		if got := fixed.Delay(attempt); got != 5*time.Second {
			t.Errorf("fixed attempt %d: got %v, want 5s", attempt, got)
		}
	}
}

func TestZeroAttemptTreatedAsFirst(t *testing.T) {
	p := Default()
	if got := p.Delay(0); got != p.Base {
		t.Errorf("got %v, want %v", got, p.Base)
	}
}
