package middleware

import (
	"context"

	"github.com/fragend/fragend/pkg/api"
	"github.com/fragend/fragend/pkg/observability"
	"github.com/fragend/fragend/pkg/transport"
)

// ResponseMetrics returns middleware that instruments event channels
// produced by the register operation: every server-pushed event is
// counted by kind. The channel itself is passed through unchanged.
func ResponseMetrics() Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, rc *api.RequestContext) (any, error) {
			result, err := next.Handle(ctx, rc)
			if err != nil {
				return nil, err
			}
			if ch, ok := result.(transport.EventChannel); ok {
				for _, kind := range api.Kinds {
					k := string(kind)
					ch.On(kind, func(api.StreamEvent) {
						observability.StreamEventsTotal.WithLabelValues(k).Inc()
					})
				}
			}
			return result, nil
		})
	}
}
