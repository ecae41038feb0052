package domain

import "errors"

var (
	ErrUnknownQueue = errors.New("unknown queue class")
	ErrJobNotFound  = errors.New("job not found")
)

// PermanentError marks a handler failure that must not be retried,
// such as a malformed payload. The worker fails the job immediately
// instead of consuming the remaining attempts.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so the retry loop treats it as terminal.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
