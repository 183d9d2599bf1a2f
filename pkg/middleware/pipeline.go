package middleware

import (
	"log/slog"
	"time"

	"github.com/fragend/fragend/pkg/api"
	"github.com/fragend/fragend/pkg/cache"
	"github.com/fragend/fragend/pkg/ratelimit"
)

// PipelineConfig carries the collaborators for the standard middleware
// stack. Nil Limiter or Store disables the corresponding stage.
type PipelineConfig struct {
	Limiter      *ratelimit.Limiter
	Store        cache.Store
	CacheTTL     time.Duration
	CacheableOps []api.Operation
	Logger       *slog.Logger
	Validation   api.ValidationConfig
	MaxAttempts  int
	Backoff      time.Duration
	RetryOptions []RetryOption
}

// NewPipeline wraps final in the standard stack. From outermost in:
//
//	Normalize       panic recovery and error shaping
//	Metrics         request counters and durations
//	RateLimit       per-class admission
//	Cache           replay of repeated ask results
//	Logging         one entry per attempted request
//	Validation      reject before transport, outside the retry loop
//	Retry           bounded re-execution with linear backoff
//	ResponseMetrics event counters on opened channels
//
// Normalize sits outermost so every exit path yields a typed error.
// Cache sits above Retry so a served hit consumes no retry budget, and
// Validation sits above Retry so rejected requests are never retried.
func NewPipeline(final Handler, cfg PipelineConfig) Handler {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}

	middlewares := []Middleware{
		Normalize(),
		Metrics(),
	}
	if cfg.Limiter != nil {
		middlewares = append(middlewares, RateLimit(cfg.Limiter))
	}
	if cfg.Store != nil {
		middlewares = append(middlewares, Cache(cfg.Store, cfg.CacheTTL, cfg.CacheableOps...))
	}
	middlewares = append(middlewares,
		Logging(cfg.Logger),
		Validation(cfg.Validation),
		Retry(cfg.MaxAttempts, cfg.Backoff, cfg.RetryOptions...),
		ResponseMetrics(),
	)
	return Chain(middlewares...)(final)
}
