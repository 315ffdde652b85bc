// Package freecache provides a zero-GC-overhead httpguard.CacheStore backed
// by github.com/coocood/freecache, suited to caches holding millions of
// entries with automatic LRU eviction.
package freecache

import (
	"context"
	"fmt"

	"github.com/coocood/freecache"
)

// Cache is a httpguard.CacheStore backed by freecache.
type Cache struct {
	cache *freecache.Cache
}

// New creates a Cache with the given size in bytes (512KB minimum).
func New(size int) *Cache {
	return &Cache{cache: freecache.NewCache(size)}
}

func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	value, err := c.cache.Get([]byte(key))
	if err != nil {
		if err == freecache.ErrNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}
	return value, true, nil
}

// Set stores value under key. freecache's expireSeconds parameter is an
// int, so a sub-second TTL rounds up to 1s rather than being dropped to 0
// (which freecache treats as "never expires").
func (c *Cache) Set(_ context.Context, key string, value []byte, ttlSeconds float64) error {
	expire := int(ttlSeconds)
	if ttlSeconds > 0 && expire == 0 {
		expire = 1
	}
	if err := c.cache.Set([]byte(key), value, expire); err != nil {
		return fmt.Errorf("freecache set failed for key %q: %w", key, err)
	}
	return nil
}

func (c *Cache) Delete(_ context.Context, key string) error {
	c.cache.Del([]byte(key))
	return nil
}

func (c *Cache) Clear(_ context.Context) error {
	c.cache.Clear()
	return nil
}

// EntryCount returns the number of entries currently in the cache.
func (c *Cache) EntryCount() int64 { return c.cache.EntryCount() }

// HitRate returns the ratio of cache hits to total lookups.
func (c *Cache) HitRate() float64 { return c.cache.HitRate() }
