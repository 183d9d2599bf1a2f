// Package config provides unified configuration for the fragend client.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (FRAGEND_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for the fragend client.
type Config struct {
	Backend    BackendConfig    `yaml:"backend"`
	Ask        AskConfig        `yaml:"ask"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Cache      CacheConfig      `yaml:"cache"`
	Retry      RetryConfig      `yaml:"retry"`
	Validation ValidationConfig `yaml:"validation"`
}

// BackendConfig holds the connection settings for the answer backend.
type BackendConfig struct {
	URL         string        `yaml:"url"`          // required
	OpenTimeout time.Duration `yaml:"open_timeout"` // default: 5s
}

// AskConfig holds the default parameters attached to every question.
type AskConfig struct {
	ProfileID      string         `yaml:"profile_id"`      // optional
	SearchMode     string         `yaml:"search_mode"`     // optional, passed as sSearchMode
	SearchDistance string         `yaml:"search_distance"` // optional, passed as sSearchDistance
	Filters        []FilterConfig `yaml:"filters"`
}

// FilterConfig describes one retrieval filter clause.
type FilterConfig struct {
	Key     string   `yaml:"key"`
	Values  []string `yaml:"values"`
	Negated bool     `yaml:"negated"`
}

// RateLimitConfig holds the per-class admission budgets.
type RateLimitConfig struct {
	Ask      BucketConfig `yaml:"ask"`      // default: 2/s, burst 2
	Feedback BucketConfig `yaml:"feedback"` // default: 5/s, burst 5
	Default  BucketConfig `yaml:"default"`  // default: 10/s, burst 10
}

// BucketConfig describes one token bucket.
type BucketConfig struct {
	Rate  float64 `yaml:"rate"`  // tokens per second
	Burst int     `yaml:"burst"` // bucket capacity
}

// CacheConfig holds response cache settings.
type CacheConfig struct {
	Type  string        `yaml:"type"` // "memory" or "redis", default: "memory"
	TTL   time.Duration `yaml:"ttl"`  // default: 5m
	Redis RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis-specific cache settings.
type RedisConfig struct {
	Addr         string `yaml:"addr"`
	Password     string `yaml:"password"`
	PasswordFile string `yaml:"password_file"` // _file variant for password
	DB           int    `yaml:"db"`
	Prefix       string `yaml:"prefix"` // default: "fragend:cache:"
}

// RetryConfig holds the retry policy for transient failures.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"` // default: 3
	Backoff     time.Duration `yaml:"backoff"`      // default: 500ms
}

// ValidationConfig holds request validation limits.
type ValidationConfig struct {
	MaxQuestionLength int `yaml:"max_question_length"` // default: 16384
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Backend: BackendConfig{
			OpenTimeout: 5 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Ask:      BucketConfig{Rate: 2, Burst: 2},
			Feedback: BucketConfig{Rate: 5, Burst: 5},
			Default:  BucketConfig{Rate: 10, Burst: 10},
		},
		Cache: CacheConfig{
			Type: "memory",
			TTL:  5 * time.Minute,
			Redis: RedisConfig{
				Prefix: "fragend:cache:",
			},
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			Backoff:     500 * time.Millisecond,
		},
		Validation: ValidationConfig{
			MaxQuestionLength: 16 * 1024,
		},
	}
}
