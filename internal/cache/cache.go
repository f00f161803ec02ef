// Package cache provides keyed JSON value stores with per-entry TTLs.
package cache

import (
	"context"
	"time"
)

// Store holds JSON-serialisable values under string keys.
type Store interface {
	// Get decodes the value under key into dst and reports whether it existed.
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
