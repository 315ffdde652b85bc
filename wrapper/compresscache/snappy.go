package compresscache

import (
	"context"
	"fmt"

	"github.com/golang/snappy"

	"github.com/haldane/httpguard"
)

// SnappyCache wraps a CacheStore with automatic Snappy compression/decompression.
type SnappyCache struct {
	*baseCompressCache
}

// SnappyConfig holds the configuration for Snappy compression.
type SnappyConfig struct {
	Cache httpguard.CacheStore
}

// NewSnappy creates a new SnappyCache with Snappy compression.
func NewSnappy(config SnappyConfig) (*SnappyCache, error) {
	if config.Cache == nil {
		return nil, fmt.Errorf("cache cannot be nil")
	}
	return &SnappyCache{baseCompressCache: newBaseCompressCache(config.Cache, Snappy)}, nil
}

func (c *SnappyCache) compress(data []byte) ([]byte, error) {
	return snappy.Encode(nil, data), nil
}

func (c *SnappyCache) decompress(data []byte) ([]byte, error) {
	decompressed, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("snappy decode failed: %w", err)
	}
	return decompressed, nil
}

func (c *SnappyCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return c.get(ctx, key, c.decompress)
}

func (c *SnappyCache) Set(ctx context.Context, key string, value []byte, ttlSeconds float64) error {
	return c.set(ctx, key, value, ttlSeconds, c.compress)
}

func (c *SnappyCache) Delete(ctx context.Context, key string) error {
	return c.delete(ctx, key)
}

func (c *SnappyCache) Clear(ctx context.Context) error {
	return c.clear(ctx)
}

// Stats returns compression statistics.
func (c *SnappyCache) Stats() Stats { return c.stats() }

var _ httpguard.CacheStore = (*SnappyCache)(nil)
