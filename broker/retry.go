package broker

import (
	"context"
	"time"
)

// RetryPolicy bounds retries of transient broker failures. Rejections are
// surfaced immediately; only transient errors consume attempts.
type RetryPolicy struct {
	Attempts int           // total tries including the first (min 1)
	Delay    time.Duration // fixed delay between tries
}

// DefaultRetry matches the stock API settings: three tries, one second apart.
func DefaultRetry() RetryPolicy {
	return RetryPolicy{Attempts: 3, Delay: time.Second}
}

// Do runs fn under the policy. Cancellation between tries is honored; fn
// itself is responsible for honoring ctx during a call.
func (p RetryPolicy) Do(ctx context.Context, fn func(context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Delay):
		}
	}
	return err
}
