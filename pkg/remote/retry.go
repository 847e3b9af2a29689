package remote

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// retry policy for transient failures: 3 attempts total,
// base 200ms, factor 2, capped at 2s
const (
	MaxAttempts    = 3
	BaseInterval   = 200 * time.Millisecond
	IntervalFactor = 2
	MaxInterval    = 2 * time.Second
	AttemptTimeout = 10 * time.Second
)

// Retry executes fn with bounded exponential backoff, retrying only
// failures tagged KTransient. Every attempt runs under its own
// timeout; exceeding it counts as a transient failure. Any other
// failure kind aborts immediately and is returned as-is.
func Retry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = BaseInterval
	b.Multiplier = IntervalFactor
	b.MaxInterval = MaxInterval
	b.MaxElapsedTime = 0

	attempt := func() error {
		actx, cancel := context.WithTimeout(ctx, AttemptTimeout)
		defer cancel()

		err := fn(actx)
		if err == nil {
			return nil
		}

		// timed-out attempts are treated as transient
		if actx.Err() == context.DeadlineExceeded {
			return Transient(op, err)
		}

		if IsTransient(err) {
			return err
		}

		return backoff.Permanent(err)
	}

	return backoff.Retry(
		attempt,
		backoff.WithContext(backoff.WithMaxRetries(b, MaxAttempts-1), ctx),
	)
}
