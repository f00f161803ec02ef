package cache

import (
	"context"
	"encoding/json"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore is a process-local Store. Values are kept JSON encoded so
// callers never share mutable state with the cache.
type MemoryStore struct {
	c *gocache.Cache
}

// NewMemoryStore builds a MemoryStore whose expired entries are purged every
// cleanup interval.
func NewMemoryStore(cleanup time.Duration) *MemoryStore {
	if cleanup <= 0 {
		cleanup = 10 * time.Minute
	}
	return &MemoryStore{c: gocache.New(gocache.NoExpiration, cleanup)}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key string, dst any) (bool, error) {
	raw, ok := s.c.Get(key)
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw.([]byte), dst); err != nil {
		return false, err
	}
	return true, nil
}

// Set implements Store. A non-positive ttl keeps the value until deleted.
func (s *MemoryStore) Set(_ context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	s.c.Set(key, data, ttl)
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.c.Delete(key)
	return nil
}
