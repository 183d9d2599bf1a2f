// Package ratelimit provides token-bucket admission control per operation
// class. Buckets refill lazily from elapsed wall-clock time; there is no
// background timer. Waiting for tokens polls at a fixed short interval and
// is the only blocking point introduced purely for admission control.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/fragend/fragend/pkg/api"
)

// Class groups operations that share a token bucket.
type Class string

const (
	ClassAsk      Class = "ask"
	ClassFeedback Class = "feedback"
	ClassDefault  Class = "default"
)

// ClassForOperation maps an operation to its admission class. Register and
// stop share the default bucket.
func ClassForOperation(op api.Operation) Class {
	switch op {
	case api.OperationAsk:
		return ClassAsk
	case api.OperationFeedback:
		return ClassFeedback
	default:
		return ClassDefault
	}
}

// Config holds the refill rate (tokens per second) and burst capacity for
// one class.
type Config struct {
	Rate  float64
	Burst int
}

// DefaultConfigs returns the per-class defaults: ask 2/s, feedback 5/s,
// default 10/s, each with burst equal to its rate.
func DefaultConfigs() map[Class]Config {
	return map[Class]Config{
		ClassAsk:      {Rate: 2, Burst: 2},
		ClassFeedback: {Rate: 5, Burst: 5},
		ClassDefault:  {Rate: 10, Burst: 10},
	}
}

// PollInterval is how often WaitForTokens re-checks the bucket.
const PollInterval = 100 * time.Millisecond

// Limiter is a process-wide set of per-class token buckets. It is safe for
// concurrent use by independent sessions.
type Limiter struct {
	buckets map[Class]*rate.Limiter
	poll    time.Duration

	// now and sleep are injectable for deterministic tests. sleep must
	// honor ctx cancellation.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the wall clock and the sleep function. Tests use a
// simulated clock whose sleep advances it.
func WithClock(now func() time.Time, sleep func(context.Context, time.Duration) error) Option {
	return func(l *Limiter) {
		l.now = now
		l.sleep = sleep
	}
}

// WithPollInterval overrides the waiting poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(l *Limiter) { l.poll = d }
}

// New creates a Limiter from per-class configs. Classes missing from cfgs
// fall back to DefaultConfigs; the default class always exists.
func New(cfgs map[Class]Config, opts ...Option) *Limiter {
	merged := DefaultConfigs()
	for class, cfg := range cfgs {
		if cfg.Rate > 0 && cfg.Burst > 0 {
			merged[class] = cfg
		}
	}

	l := &Limiter{
		buckets: make(map[Class]*rate.Limiter, len(merged)),
		poll:    PollInterval,
		now:     time.Now,
		sleep:   sleepCtx,
	}
	for class, cfg := range merged {
		l.buckets[class] = rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Burst)
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// TryConsume attempts to take n tokens from the class bucket without
// blocking. The bucket refills lazily from the elapsed time since the last
// call.
func (l *Limiter) TryConsume(class Class, n int) bool {
	return l.bucket(class).AllowN(l.now(), n)
}

// WaitForTokens blocks until n tokens are available for the class or ctx
// is cancelled. It polls at the configured interval; a rate-limit wait is
// not an error, only ctx cancellation is.
func (l *Limiter) WaitForTokens(ctx context.Context, class Class, n int) error {
	for {
		if l.TryConsume(class, n) {
			return nil
		}
		if err := l.sleep(ctx, l.poll); err != nil {
			return err
		}
	}
}

func (l *Limiter) bucket(class Class) *rate.Limiter {
	if b, ok := l.buckets[class]; ok {
		return b
	}
	return l.buckets[ClassDefault]
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
