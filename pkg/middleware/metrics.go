package middleware

import (
	"context"
	"time"

	"github.com/fragend/fragend/pkg/api"
	"github.com/fragend/fragend/pkg/observability"
)

// Metrics returns middleware that records request counts, durations, and
// operation-specific observations for every pipeline invocation.
func Metrics() Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, rc *api.RequestContext) (any, error) {
			start := time.Now()
			result, err := next.Handle(ctx, rc)

			op := string(rc.Operation)
			status := "success"
			if err != nil {
				status = string(api.CodeOf(err))
			}
			observability.RequestsTotal.WithLabelValues(op, status).Inc()
			observability.RequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

			if err == nil {
				switch rc.Operation {
				case api.OperationAsk:
					observability.QuestionLength.Observe(float64(len(rc.Question())))
				case api.OperationFeedback:
					observability.FeedbackTotal.WithLabelValues(string(rc.FeedbackValue())).Inc()
				}
			}
			return result, err
		})
	}
}
