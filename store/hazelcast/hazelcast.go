// Package hazelcast provides a httpguard.CacheStore backed by a Hazelcast
// IMap, using the map's native per-entry TTL support.
package hazelcast

import (
	"context"
	"fmt"
	"time"

	"github.com/hazelcast/hazelcast-go-client"
)

// Cache is a httpguard.CacheStore backed by a Hazelcast map.
type Cache struct {
	m *hazelcast.Map
}

func cacheKey(key string) string {
	return "httpguard:" + key
}

// NewWithMap returns a new Cache wrapping an already-opened Hazelcast map.
func NewWithMap(m *hazelcast.Map) *Cache {
	return &Cache{m: m}
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.m.Get(ctx, cacheKey(key))
	if err != nil {
		return nil, false, err
	}
	if val == nil {
		return nil, false, nil
	}
	data, ok := val.([]byte)
	if !ok {
		return nil, false, nil
	}
	return data, true, nil
}

func (c *Cache) Set(ctx context.Context, key string, value []byte, ttlSeconds float64) error {
	var err error
	if ttlSeconds > 0 {
		err = c.m.SetWithTTL(ctx, cacheKey(key), value, time.Duration(ttlSeconds*float64(time.Second)))
	} else {
		err = c.m.Set(ctx, cacheKey(key), value)
	}
	if err != nil {
		return fmt.Errorf("hazelcast cache set failed for key %q: %w", key, err)
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	if _, err := c.m.Remove(ctx, cacheKey(key)); err != nil {
		return fmt.Errorf("hazelcast cache delete failed for key %q: %w", key, err)
	}
	return nil
}

func (c *Cache) Clear(ctx context.Context) error {
	if err := c.m.Clear(ctx); err != nil {
		return fmt.Errorf("hazelcast cache clear failed: %w", err)
	}
	return nil
}
