package cache

import (
	"context"
	"time"

	"github.com/noah-isme/coreb-invoice/internal/resilience"
)

// BreakerStore short-circuits calls to next while its breaker is open, so a
// failing remote store answers with resilience.ErrOpenCircuit instead of
// waiting on timeouts.
type BreakerStore struct {
	next    Store
	breaker *resilience.Breaker
}

// WithBreaker wraps next with b.
func WithBreaker(next Store, b *resilience.Breaker) *BreakerStore {
	return &BreakerStore{next: next, breaker: b}
}

// Get implements Store.
func (s *BreakerStore) Get(ctx context.Context, key string, dst any) (bool, error) {
	var found bool
	err := s.breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		found, err = s.next.Get(ctx, key, dst)
		return err
	})
	return found, err
}

// Set implements Store.
func (s *BreakerStore) Set(ctx context.Context, key string, v any, ttl time.Duration) error {
	return s.breaker.Do(ctx, func(ctx context.Context) error {
		return s.next.Set(ctx, key, v, ttl)
	})
}

// Delete implements Store.
func (s *BreakerStore) Delete(ctx context.Context, key string) error {
	return s.breaker.Do(ctx, func(ctx context.Context) error {
		return s.next.Delete(ctx, key)
	})
}
