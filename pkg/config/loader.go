package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, FRAGEND_CONFIG env, ./config.yaml, /etc/fragend/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	// Start with defaults.
	cfg := Defaults()

	// Discover and load YAML config file.
	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	// Apply environment variable overrides.
	applyEnvOverrides(&cfg)

	// Resolve _file references.
	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	// Validate.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. FRAGEND_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/fragend/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	// Explicit path takes priority.
	if configPath != "" {
		return configPath
	}

	// Check FRAGEND_CONFIG env var.
	if envPath := os.Getenv("FRAGEND_CONFIG"); envPath != "" {
		return envPath
	}

	// Check common locations.
	candidates := []string{
		"config.yaml",
		"/etc/fragend/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps FRAGEND_* environment variables to config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FRAGEND_BACKEND_URL"); v != "" {
		cfg.Backend.URL = v
	}
	if v := os.Getenv("FRAGEND_OPEN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Backend.OpenTimeout = d
		}
	}
	if v := os.Getenv("FRAGEND_PROFILE"); v != "" {
		cfg.Ask.ProfileID = v
	}
	if v := os.Getenv("FRAGEND_SEARCH_MODE"); v != "" {
		cfg.Ask.SearchMode = v
	}
	if v := os.Getenv("FRAGEND_SEARCH_DISTANCE"); v != "" {
		cfg.Ask.SearchDistance = v
	}
	if v := os.Getenv("FRAGEND_CACHE"); v != "" {
		cfg.Cache.Type = v
	}
	if v := os.Getenv("FRAGEND_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.TTL = d
		}
	}
	if v := os.Getenv("FRAGEND_REDIS_ADDR"); v != "" {
		cfg.Cache.Redis.Addr = v
	}
	if v := os.Getenv("FRAGEND_REDIS_PASSWORD"); v != "" {
		cfg.Cache.Redis.Password = v
	}
	if v := os.Getenv("FRAGEND_RETRY_MAX"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Retry.MaxAttempts = n
		}
	}
	if v := os.Getenv("FRAGEND_RETRY_BACKOFF"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Retry.Backoff = d
		}
	}

	// FRAGEND_FILTERS: JSON array of filter clauses.
	if v := os.Getenv("FRAGEND_FILTERS"); v != "" {
		filters, err := parseFiltersJSON(v)
		if err == nil && len(filters) > 0 {
			cfg.Ask.Filters = filters
		}
	}
}

// parseFiltersJSON parses a JSON array of filter configurations.
func parseFiltersJSON(jsonStr string) ([]FilterConfig, error) {
	var filters []FilterConfig
	if err := json.Unmarshal([]byte(jsonStr), &filters); err != nil {
		return nil, fmt.Errorf("parsing filters JSON: %w", err)
	}
	return filters, nil
}

// resolveFileReferences reads _file fields and populates the corresponding
// value fields. The value field wins when both are set.
func resolveFileReferences(cfg *Config) error {
	// cache.redis.password_file -> cache.redis.password
	if cfg.Cache.Redis.PasswordFile != "" && cfg.Cache.Redis.Password == "" {
		val, err := readSecretFile(cfg.Cache.Redis.PasswordFile)
		if err != nil {
			return fmt.Errorf("cache.redis.password_file: %w", err)
		}
		cfg.Cache.Redis.Password = val
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
