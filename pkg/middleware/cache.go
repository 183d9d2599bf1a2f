package middleware

import (
	"context"
	"time"

	"github.com/fragend/fragend/pkg/api"
	"github.com/fragend/fragend/pkg/cache"
	"github.com/fragend/fragend/pkg/observability"
)

// DefaultCacheableOps lists the operations whose results may be served
// from cache. Register opens a live channel and stop and feedback are
// side effects, so only ask qualifies.
var DefaultCacheableOps = []api.Operation{api.OperationAsk}

// Cache returns middleware that serves repeated requests from store.
// Only []byte results are cached; handlers returning live resources
// (event channels) pass through untouched. A store failure is treated
// as a miss, never as a request failure.
func Cache(store cache.Store, ttl time.Duration, ops ...api.Operation) Middleware {
	if len(ops) == 0 {
		ops = DefaultCacheableOps
	}
	cacheable := make(map[api.Operation]bool, len(ops))
	for _, op := range ops {
		cacheable[op] = true
	}

	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, rc *api.RequestContext) (any, error) {
			if store == nil || !cacheable[rc.Operation] {
				return next.Handle(ctx, rc)
			}

			key, err := cache.Key(rc.Operation, rc.SessionID, rc.Parameters)
			if err != nil {
				return next.Handle(ctx, rc)
			}

			op := string(rc.Operation)
			if value, ok, err := store.Get(ctx, key); err == nil && ok {
				observability.CacheHitsTotal.WithLabelValues(op).Inc()
				return value, nil
			}
			observability.CacheMissesTotal.WithLabelValues(op).Inc()

			result, err := next.Handle(ctx, rc)
			if err != nil {
				return nil, err
			}
			if body, ok := result.([]byte); ok {
				// Store failures are not the caller's problem.
				_ = store.Set(ctx, key, body, ttl)
			}
			return result, nil
		})
	}
}
