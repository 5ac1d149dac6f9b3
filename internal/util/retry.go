package util

import (
	"context"
	"errors"
	"time"
)

// MaxBackoff caps the delay between Retry attempts.
const MaxBackoff = 30 * time.Second

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so that Retry gives up immediately and returns err.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Retry calls fn up to maxAttempts times, doubling the delay from baseDelay
// up to MaxBackoff. It returns nil on the first success and otherwise the last
// error. A Permanent error ends the loop at once and is returned unwrapped.
func Retry(ctx context.Context, maxAttempts int, baseDelay time.Duration, fn func() error) error {
	var err error
	delay := baseDelay

	for attempt := 0; attempt < maxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}

		if attempt == maxAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = min(delay*2, MaxBackoff)
	}
	return err
}
