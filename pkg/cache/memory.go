package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Memory is an in-process Store with lazy expiry: entries are checked on
// read, never proactively swept (the janitor is disabled).
type Memory struct {
	c *gocache.Cache
}

var _ Store = (*Memory)(nil)

// NewMemory creates a Memory store. defaultTTL applies when Set is called
// with a zero ttl.
func NewMemory(defaultTTL time.Duration) *Memory {
	// A cleanup interval of 0 disables the background janitor; expiry is
	// evaluated on Get.
	return &Memory{c: gocache.New(defaultTTL, 0)}
}

// Get returns the cached value for key if present and unexpired.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, found := m.c.Get(key)
	if !found {
		return nil, false, nil
	}
	return v.([]byte), true, nil
}

// Set stores value under key. A zero ttl uses the store default.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = gocache.DefaultExpiration
	}
	m.c.Set(key, value, ttl)
	return nil
}

// Delete removes key.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.c.Delete(key)
	return nil
}
