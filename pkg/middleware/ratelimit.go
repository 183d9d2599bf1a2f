package middleware

import (
	"context"
	"time"

	"github.com/fragend/fragend/pkg/api"
	"github.com/fragend/fragend/pkg/observability"
	"github.com/fragend/fragend/pkg/ratelimit"
)

// RateLimit returns middleware that blocks until the limiter admits the
// request's traffic class. Waiting respects context cancellation; a
// cancelled wait surfaces as a connection error.
func RateLimit(limiter *ratelimit.Limiter) Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, rc *api.RequestContext) (any, error) {
			class := ratelimit.ClassForOperation(rc.Operation)
			start := time.Now()
			if err := limiter.WaitForTokens(ctx, class, 1); err != nil {
				return nil, api.NewConnectionError("rate limit wait aborted: " + err.Error())
			}
			observability.RateLimitWait.WithLabelValues(string(class)).Observe(time.Since(start).Seconds())
			return next.Handle(ctx, rc)
		})
	}
}
