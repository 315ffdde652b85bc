// Package compresscache provides a cache wrapper that automatically compresses
// cached data to reduce storage requirements and network bandwidth usage.
// Supports multiple compression algorithms: gzip, brotli, and snappy.
package compresscache

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/haldane/httpguard"
)

// Algorithm represents the compression algorithm to use.
type Algorithm int

const (
	// Gzip uses gzip compression (good balance of compression and speed).
	Gzip Algorithm = iota
	// Brotli uses brotli compression (best compression ratio, slower).
	Brotli
	// Snappy uses snappy compression (fastest, lower compression ratio).
	Snappy
)

func (a Algorithm) String() string {
	switch a {
	case Gzip:
		return "gzip"
	case Brotli:
		return "brotli"
	case Snappy:
		return "snappy"
	default:
		return "unknown"
	}
}

// Stats holds compression statistics.
type Stats struct {
	CompressedBytes   int64
	UncompressedBytes int64
	CompressedCount   int64
	UncompressedCount int64
	CompressionRatio  float64
	SavingsPercent    float64
}

type compressFunc func([]byte) ([]byte, error)
type decompressFunc func([]byte) ([]byte, error)

// baseCompressCache provides common functionality for all compression implementations.
type baseCompressCache struct {
	cache     httpguard.CacheStore
	algorithm Algorithm

	compressedBytes   atomic.Int64
	uncompressedBytes atomic.Int64
	compressedCount   atomic.Int64
	uncompressedCount atomic.Int64
}

func newBaseCompressCache(cache httpguard.CacheStore, algorithm Algorithm) *baseCompressCache {
	return &baseCompressCache{cache: cache, algorithm: algorithm}
}

func (c *baseCompressCache) get(ctx context.Context, key string, decompressFn decompressFunc) ([]byte, bool, error) {
	data, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	if len(data) < 1 {
		return data, true, nil
	}

	marker := data[0]
	if marker == 0 {
		return data[1:], true, nil
	}

	storedAlgo := Algorithm(marker - 1)
	decompressed, err := c.decompressWithAlgorithm(data[1:], storedAlgo, decompressFn)
	if err != nil {
		httpguard.GetLogger().Warn("decompression failed", "key", key, "algorithm", storedAlgo.String(), "error", err)
		return nil, false, nil
	}
	return decompressed, true, nil
}

// decompressWithAlgorithm decompresses data, delegating to the appropriate
// decompressor when the stored algorithm differs from this cache's own, so
// switching compression algorithms mid-deployment does not strand entries
// written under the previous one.
func (c *baseCompressCache) decompressWithAlgorithm(data []byte, algorithm Algorithm, decompressFn decompressFunc) ([]byte, error) {
	if algorithm == c.algorithm {
		return decompressFn(data)
	}
	return c.decompressAny(data, algorithm)
}

func (c *baseCompressCache) decompressAny(data []byte, algorithm Algorithm) ([]byte, error) {
	switch algorithm {
	case Gzip:
		return (&GzipCache{baseCompressCache: c}).decompress(data)
	case Brotli:
		return (&BrotliCache{baseCompressCache: c}).decompress(data)
	case Snappy:
		return (&SnappyCache{baseCompressCache: c}).decompress(data)
	default:
		return nil, fmt.Errorf("unsupported decompression algorithm: %v", algorithm)
	}
}

func (c *baseCompressCache) set(ctx context.Context, key string, value []byte, ttlSeconds float64, compressFn compressFunc) error {
	compressed, err := compressFn(value)
	if err != nil {
		httpguard.GetLogger().Warn("compression failed, storing uncompressed", "key", key, "algorithm", c.algorithm.String(), "error", err)
		data := make([]byte, len(value)+1)
		data[0] = 0
		copy(data[1:], value)
		c.uncompressedCount.Add(1)
		c.uncompressedBytes.Add(int64(len(value)))
		return c.cache.Set(ctx, key, data, ttlSeconds)
	}

	data := make([]byte, len(compressed)+1)
	data[0] = byte(c.algorithm + 1)
	copy(data[1:], compressed)

	c.compressedCount.Add(1)
	c.compressedBytes.Add(int64(len(compressed)))
	c.uncompressedBytes.Add(int64(len(value)))
	return c.cache.Set(ctx, key, data, ttlSeconds)
}

func (c *baseCompressCache) delete(ctx context.Context, key string) error {
	return c.cache.Delete(ctx, key)
}

func (c *baseCompressCache) clear(ctx context.Context) error {
	return c.cache.Clear(ctx)
}

func (c *baseCompressCache) stats() Stats {
	compressed := c.compressedBytes.Load()
	uncompressed := c.uncompressedBytes.Load()

	var ratio, savings float64
	if uncompressed > 0 {
		ratio = float64(compressed) / float64(uncompressed)
		savings = (1.0 - ratio) * 100
	}

	return Stats{
		CompressedBytes:   compressed,
		UncompressedBytes: uncompressed,
		CompressedCount:   c.compressedCount.Load(),
		UncompressedCount: c.uncompressedCount.Load(),
		CompressionRatio:  ratio,
		SavingsPercent:    savings,
	}
}
