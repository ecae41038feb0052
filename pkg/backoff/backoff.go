package backoff

import "time"

// Kind selects the growth curve of the retry delay.
type Kind string

const (
	Exponential Kind = "exponential"
	Linear      Kind = "linear"
	Fixed       Kind = "fixed"
)

// Policy computes the delay before a retry attempt. It is a value
// passed at queue creation so alternate curves can be substituted
// without touching the worker loop.
type Policy struct {
	Kind Kind
	Base time.Duration
	Cap  time.Duration
}

// Default matches the queue defaults: exponential, 2s base, 1m cap.
func Default() Policy {
	return Policy{Kind: Exponential, Base: 2 * time.Second, Cap: time.Minute}
}

// Delay returns the wait before the given retry. attempt counts
// executions so far, so the first retry passes attempt=1 and an
// exponential policy yields Base, 2*Base, 4*Base, ...
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	var d time.Duration
	switch p.Kind {
	case Linear:
		d = p.Base * time.Duration(attempt)
	case Fixed:
		d = p.Base
	default:
		shift := attempt - 1
		if shift > 30 {
			shift = 30
		}
		d = p.Base * time.Duration(int64(1)<<uint(shift))
	}
	if p.Cap > 0 && d > p.Cap {
		d = p.Cap
	}
	return d
}
