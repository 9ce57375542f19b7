// Package retry wraps fallible operations in exponential backoff with
// jitter. It is used by the cart store flush path and by non-critical
// calls that must not interrupt the user flow.
package retry

import (
	"context"
	"math/rand"
	"time"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 500 * time.Millisecond
	defaultMaxDelay    = 5 * time.Second
	maxJitter          = 200 * time.Millisecond
)

type Options struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	// OnRetry is invoked between attempts, after a failure and before
	// the backoff sleep.
	OnRetry func(attempt int, err error)
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = defaultMaxAttempts
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = defaultBaseDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = defaultMaxDelay
	}
	return o
}

// Do runs op up to MaxAttempts times, sleeping
// min(BaseDelay*2^(attempt-1)+jitter, MaxDelay) between attempts.
// It returns the first success, the last error once attempts are
// exhausted, or ctx.Err() if the context ends during a backoff sleep.
func Do[T any](ctx context.Context, op func(ctx context.Context) (T, error), opts Options) (T, error) {
	opts = opts.withDefaults()

	var zero T
	var lastErr error
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if attempt == opts.MaxAttempts {
			break
		}
		if opts.OnRetry != nil {
			opts.OnRetry(attempt, err)
		}

		select {
		case <-time.After(delay(attempt, opts)):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
	return zero, lastErr
}

// DoSilent is the variant for non-critical paths: instead of returning
// the final error it returns fallback.
func DoSilent[T any](ctx context.Context, op func(ctx context.Context) (T, error), fallback T, opts Options) T {
	v, err := Do(ctx, op, opts)
	if err != nil {
		return fallback
	}
	return v
}

func delay(attempt int, opts Options) time.Duration {
	d := opts.BaseDelay << (attempt - 1)
	d += time.Duration(rand.Int63n(int64(maxJitter)))
	if d > opts.MaxDelay {
		d = opts.MaxDelay
	}
	return d
}
