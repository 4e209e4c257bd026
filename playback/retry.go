package playback

import (
	"context"
	"time"
)

// retryPolicy governs how many times a tier is attempted and how long to
// wait between attempts. The backoff is linear: the first retry waits one
// delay, the second waits two, and so on.
type retryPolicy struct {
	maxAttempts int
	delay       time.Duration
}

// backoff returns the wait after the given 1-based failed attempt.
func (p retryPolicy) backoff(attempt int) time.Duration {
	return p.delay * time.Duration(attempt)
}

// run invokes fn until it succeeds, fails permanently, exhausts the
// attempt budget, or the context ends. It returns the last error seen.
func (p retryPolicy) run(ctx context.Context, fn func() error) error {
	var lastErr error

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if KindOf(lastErr) == KindPermanent {
			return lastErr
		}

		if attempt == p.maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.backoff(attempt)):
		}
	}

	return lastErr
}
