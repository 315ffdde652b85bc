// Package multicache provides a multi-tiered cache implementation that allows
// cascading through multiple cache backends with automatic fallback and promotion.
// This enables sophisticated caching strategies with different performance and
// persistence characteristics at each tier.
package multicache

import (
	"context"
	"sync"
	"time"

	"github.com/haldane/httpguard"
)

// MultiCache implements a multi-tiered caching strategy where cache tiers are
// ordered from fastest/smallest (first) to slowest/largest (last). On reads,
// it searches each tier in order and promotes found values to faster tiers.
// On writes, it stores to all tiers.
//
// Example use case:
//   - Tier 1: in-memory (fast, small, volatile)
//   - Tier 2: Redis (medium speed, larger, persistent)
//   - Tier 3: PostgreSQL (slower, largest, highly persistent)
//
// CacheStore.Get does not report a value's remaining TTL, so MultiCache
// tracks each key's absolute expiry itself (set alongside Set) and uses the
// remaining duration, not 0 (never expires), when promoting a value found in
// a slower tier up to the faster ones.
type MultiCache struct {
	tiers []httpguard.CacheStore

	mu      sync.Mutex
	expires map[string]time.Time // zero value means no expiry
}

// New creates a MultiCache with the specified cache tiers, ordered from
// fastest/smallest to slowest/largest. Returns nil if no tiers are
// provided, any tier is nil, or a tier is duplicated.
func New(tiers ...httpguard.CacheStore) *MultiCache {
	if len(tiers) == 0 {
		return nil
	}

	seen := make(map[httpguard.CacheStore]bool)
	for _, tier := range tiers {
		if tier == nil || seen[tier] {
			return nil
		}
		seen[tier] = true
	}

	return &MultiCache{tiers: tiers, expires: make(map[string]time.Time)}
}

// Get searches each tier in order. When a value is found in a slower tier,
// it is promoted to all faster tiers for subsequent quick access.
func (c *MultiCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	for i, tier := range c.tiers {
		value, ok, err := tier.Get(ctx, key)
		if err != nil {
			return nil, false, err
		}
		if ok {
			_ = c.promoteToFasterTiers(ctx, key, value, i) //nolint:errcheck // promotion is best-effort
			return value, true, nil
		}
	}
	return nil, false, nil
}

// Set stores the value in all cache tiers.
func (c *MultiCache) Set(ctx context.Context, key string, value []byte, ttlSeconds float64) error {
	c.recordExpiry(key, ttlSeconds)
	for _, tier := range c.tiers {
		if err := tier.Set(ctx, key, value, ttlSeconds); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes the value from all cache tiers.
func (c *MultiCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.expires, key)
	c.mu.Unlock()
	for _, tier := range c.tiers {
		if err := tier.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// Clear clears all cache tiers.
func (c *MultiCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.expires = make(map[string]time.Time)
	c.mu.Unlock()
	for _, tier := range c.tiers {
		if err := tier.Clear(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (c *MultiCache) recordExpiry(key string, ttlSeconds float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ttlSeconds > 0 {
		c.expires[key] = time.Now().Add(time.Duration(ttlSeconds * float64(time.Second)))
	} else {
		delete(c.expires, key)
	}
}

// remainingTTL returns the TTL to use when promoting key to a faster tier:
// 0 (never expires) if no expiry was recorded, the remaining seconds
// otherwise, or a negative value if it has already lapsed.
func (c *MultiCache) remainingTTL(key string) float64 {
	c.mu.Lock()
	exp, ok := c.expires[key]
	c.mu.Unlock()
	if !ok {
		return 0
	}
	return time.Until(exp).Seconds()
}

func (c *MultiCache) promoteToFasterTiers(ctx context.Context, key string, value []byte, foundAtTier int) error {
	ttl := c.remainingTTL(key)
	for i := 0; i < foundAtTier; i++ {
		if err := c.tiers[i].Set(ctx, key, value, ttl); err != nil {
			return err
		}
	}
	return nil
}

var _ httpguard.CacheStore = (*MultiCache)(nil)
