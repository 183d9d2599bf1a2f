package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	// backend.url is required and must parse.
	if c.Backend.URL == "" {
		errs = append(errs, fmt.Errorf("backend.url is required"))
	} else if u, err := url.Parse(c.Backend.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("backend.url must be an absolute URL, got %q", c.Backend.URL))
	}

	if c.Backend.OpenTimeout < 0 {
		errs = append(errs, fmt.Errorf("backend.open_timeout must be >= 0, got %s", c.Backend.OpenTimeout))
	}

	// cache.type must be a known value.
	switch c.Cache.Type {
	case "memory", "redis":
		// valid
	default:
		errs = append(errs, fmt.Errorf("cache.type must be \"memory\" or \"redis\", got %q", c.Cache.Type))
	}

	// If cache.type is "redis", an address is required.
	if c.Cache.Type == "redis" && c.Cache.Redis.Addr == "" {
		errs = append(errs, fmt.Errorf("cache.redis.addr is required when cache.type is \"redis\""))
	}

	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry.max_attempts must be >= 1, got %d", c.Retry.MaxAttempts))
	}
	if c.Retry.Backoff < 0 {
		errs = append(errs, fmt.Errorf("retry.backoff must be >= 0, got %s", c.Retry.Backoff))
	}

	for name, bucket := range map[string]BucketConfig{
		"rate_limit.ask":      c.RateLimit.Ask,
		"rate_limit.feedback": c.RateLimit.Feedback,
		"rate_limit.default":  c.RateLimit.Default,
	} {
		if bucket.Rate <= 0 {
			errs = append(errs, fmt.Errorf("%s.rate must be > 0, got %v", name, bucket.Rate))
		}
		if bucket.Burst < 1 {
			errs = append(errs, fmt.Errorf("%s.burst must be >= 1, got %d", name, bucket.Burst))
		}
	}

	if c.Validation.MaxQuestionLength < 1 {
		errs = append(errs, fmt.Errorf("validation.max_question_length must be >= 1, got %d", c.Validation.MaxQuestionLength))
	}

	return errors.Join(errs...)
}
