package middleware

import (
	"context"

	"github.com/fragend/fragend/pkg/api"
)

// Validation returns middleware that rejects malformed requests before
// they reach the transport. It runs outside the retry loop, so a
// rejected request is never retried.
func Validation(cfg api.ValidationConfig) Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, rc *api.RequestContext) (any, error) {
			if err := api.ValidateContext(rc, cfg); err != nil {
				return nil, err
			}
			return next.Handle(ctx, rc)
		})
	}
}
