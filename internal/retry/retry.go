// Package retry is the bounded-retry helper used around transient data
// fetches. Policy is data, not an inline sleep loop, so callers and tests can
// vary attempts/backoff independently.
package retry

import (
	"context"
	"time"
)

type Policy struct {
	Attempts int
	Backoff  time.Duration
	// Retryable reports whether an error is worth another attempt.
	// Nil means every error is retryable.
	Retryable func(error) bool
}

// Do runs fn up to p.Attempts times, sleeping p.Backoff between attempts.
// It returns nil on the first success, the last error once attempts are
// exhausted or the error is classified non-retryable, and ctx.Err() if the
// context ends during a backoff sleep.
func Do(ctx context.Context, p Policy, fn func() error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
		if i == attempts-1 {
			break
		}
		if sleepErr := sleep(ctx, p.Backoff); sleepErr != nil {
			return sleepErr
		}
	}
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
