package middleware

import (
	"context"
	"fmt"

	"github.com/fragend/fragend/pkg/api"
)

// Normalize returns middleware that catches panics in the handler and
// guarantees every error leaving the pipeline is a *api.ProtocolError
// carrying operation, session, and timestamp context. It sits outermost
// so nothing below it can leak an untyped error to callers.
func Normalize() Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, rc *api.RequestContext) (result any, retErr error) {
			defer func() {
				if r := recover(); r != nil {
					result = nil
					retErr = api.Normalize(api.NewInternalError(fmt.Sprintf("internal error: %v", r)), rc)
				}
			}()
			result, err := next.Handle(ctx, rc)
			if err != nil {
				return nil, api.Normalize(err, rc)
			}
			return result, nil
		})
	}
}
