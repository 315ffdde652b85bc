// Package memcache provides a httpguard.CacheStore backed by
// github.com/bradfitz/gomemcache, using memcache's own item expiration for
// TTL.
package memcache

import (
	"context"
	"fmt"

	"github.com/bradfitz/gomemcache/memcache"
)

// Cache is a httpguard.CacheStore backed by a memcache server.
type Cache struct {
	client *memcache.Client
}

func cacheKey(key string) string {
	return "httpguard:" + key
}

// New returns a new Cache using the provided memcache server(s).
func New(server ...string) *Cache {
	return NewWithClient(memcache.New(server...))
}

// NewWithClient returns a new Cache with the given memcache client.
func NewWithClient(client *memcache.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	item, err := c.client.Get(cacheKey(key))
	if err != nil {
		if err == memcache.ErrCacheMiss {
			return nil, false, nil
		}
		return nil, false, err
	}
	return item.Value, true, nil
}

// Set stores value under key with the given TTL. gomemcache's Expiration is
// int32 seconds-from-now; a sub-second positive TTL rounds up to 1s rather
// than falling back to memcache's "never expires" sentinel of 0.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttlSeconds float64) error {
	expiration := int32(ttlSeconds)
	if ttlSeconds > 0 && expiration == 0 {
		expiration = 1
	}
	item := &memcache.Item{
		Key:        cacheKey(key),
		Value:      value,
		Expiration: expiration,
	}
	if err := c.client.Set(item); err != nil {
		return fmt.Errorf("memcache set failed for key %q: %w", key, err)
	}
	return nil
}

func (c *Cache) Delete(_ context.Context, key string) error {
	if err := c.client.Delete(cacheKey(key)); err != nil {
		if err == memcache.ErrCacheMiss {
			return nil
		}
		return fmt.Errorf("memcache delete failed for key %q: %w", key, err)
	}
	return nil
}

// ErrClearUnsupported is returned by Clear: gomemcache's client exposes no
// flush operation, and a prefix-scoped clear would require enumerating
// memcache's slab pages, which the protocol does not support.
var ErrClearUnsupported = fmt.Errorf("memcache: Clear is not supported by this backend")

func (c *Cache) Clear(_ context.Context) error {
	return ErrClearUnsupported
}
