package middleware

import (
	"context"

	"github.com/fragend/fragend/pkg/api"
)

// Handler executes one protocol operation described by the request context
// and returns its result. Register returns the opened event channel, ask
// returns the backend's acknowledgement body, stop and feedback return nil.
type Handler interface {
	Handle(ctx context.Context, rc *api.RequestContext) (any, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, rc *api.RequestContext) (any, error)

func (f HandlerFunc) Handle(ctx context.Context, rc *api.RequestContext) (any, error) {
	return f(ctx, rc)
}

// Middleware wraps a Handler to add cross-cutting behavior.
// Middleware is applied in order: the first middleware in the chain is
// the outermost wrapper (executes first on the way in, last on the way out).
type Middleware func(Handler) Handler

// Chain composes multiple middleware into a single middleware.
// Middleware are applied in order: Chain(a, b, c) produces a(b(c(handler))).
func Chain(middlewares ...Middleware) Middleware {
	return func(next Handler) Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
