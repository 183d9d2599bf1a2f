package middleware

import (
	"context"
	"time"

	"github.com/fragend/fragend/pkg/api"
	"github.com/fragend/fragend/pkg/observability"
)

const (
	// DefaultMaxAttempts bounds the total number of tries per request.
	DefaultMaxAttempts = 3

	// DefaultBackoff is the base delay between attempts. The delay grows
	// linearly: backoff after the first failure, 2*backoff after the second.
	DefaultBackoff = 500 * time.Millisecond
)

// RetryOption configures the retry middleware.
type RetryOption func(*retrier)

// WithRetrySleep replaces the delay function. Tests use this to avoid
// real sleeps.
func WithRetrySleep(sleep func(context.Context, time.Duration) error) RetryOption {
	return func(r *retrier) {
		r.sleep = sleep
	}
}

type retrier struct {
	maxAttempts int
	backoff     time.Duration
	sleep       func(context.Context, time.Duration) error
}

// Retry returns middleware that re-runs failed requests with linearly
// growing backoff. Validation errors are never retried; everything else
// is tried up to maxAttempts times, and the last error wins.
func Retry(maxAttempts int, backoff time.Duration, opts ...RetryOption) Middleware {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	r := &retrier{
		maxAttempts: maxAttempts,
		backoff:     backoff,
		sleep:       sleepCtx,
	}
	for _, opt := range opts {
		opt(r)
	}

	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, rc *api.RequestContext) (any, error) {
			var lastErr error
			for attempt := 1; attempt <= r.maxAttempts; attempt++ {
				rc.Attempt = attempt
				if attempt > 1 {
					observability.RetriesTotal.WithLabelValues(string(rc.Operation)).Inc()
					delay := r.backoff * time.Duration(attempt-1)
					if err := r.sleep(ctx, delay); err != nil {
						return nil, err
					}
				}

				result, err := next.Handle(ctx, rc)
				if err == nil {
					return result, nil
				}
				if api.IsValidation(err) {
					return nil, err
				}
				lastErr = err
			}
			return nil, lastErr
		})
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
