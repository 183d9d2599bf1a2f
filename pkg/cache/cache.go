// Package cache provides TTL-keyed memoization for idempotent operations.
// The middleware talks to a pluggable Store; a process-local store backed
// by go-cache is the default and a Redis-backed store covers durable
// deployments.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fragend/fragend/pkg/api"
)

// Store is the storage contract behind the cache middleware. Implementations
// must tolerate concurrent access from multiple sessions.
type Store interface {
	// Get returns the cached value for key and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key for the given time-to-live.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes key; deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// Key computes the deterministic cache key for a call: the JSON-stable
// serialization of (operation, sessionId, parameters). encoding/json sorts
// map keys, so identical parameters always produce identical keys. The
// parameters include the user's free-text question: hits only occur for
// byte-identical repeated questions within the TTL. Exact-match by intent,
// not semantic caching.
func Key(op api.Operation, sessionID string, params map[string]any) (string, error) {
	payload := struct {
		Operation  api.Operation  `json:"operation"`
		SessionID  string         `json:"sessionId"`
		Parameters map[string]any `json:"parameters"`
	}{op, sessionID, params}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("serializing cache key: %w", err)
	}
	return string(data), nil
}
