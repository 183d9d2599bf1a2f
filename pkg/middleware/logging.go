package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/fragend/fragend/pkg/api"
)

// Logging returns middleware that emits one structured log entry per
// request with operation, session, attempt, duration, and outcome.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, rc *api.RequestContext) (any, error) {
			start := time.Now()
			result, err := next.Handle(ctx, rc)

			attrs := []slog.Attr{
				slog.String("operation", string(rc.Operation)),
				slog.String("session_id", rc.SessionID),
				slog.Int("attempt", rc.Attempt),
				slog.Duration("duration", time.Since(start)),
			}
			if err != nil {
				attrs = append(attrs,
					slog.String("error_code", string(api.CodeOf(err))),
					slog.String("error", err.Error()))
				logger.LogAttrs(ctx, slog.LevelError, "request failed", attrs...)
			} else {
				logger.LogAttrs(ctx, slog.LevelInfo, "request completed", attrs...)
			}
			return result, err
		})
	}
}
