package compresscache

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"

	"github.com/haldane/httpguard"
)

// GzipCache wraps a CacheStore with automatic Gzip compression/decompression.
type GzipCache struct {
	*baseCompressCache
	level int
}

// GzipConfig holds the configuration for Gzip compression.
type GzipConfig struct {
	Cache httpguard.CacheStore
	Level int
}

// NewGzip creates a new GzipCache with Gzip compression.
func NewGzip(config GzipConfig) (*GzipCache, error) {
	if config.Cache == nil {
		return nil, fmt.Errorf("cache cannot be nil")
	}
	if config.Level == 0 {
		config.Level = gzip.DefaultCompression
	}
	if config.Level < gzip.HuffmanOnly || config.Level > gzip.BestCompression {
		return nil, fmt.Errorf("invalid gzip compression level: %d", config.Level)
	}

	return &GzipCache{
		baseCompressCache: newBaseCompressCache(config.Cache, Gzip),
		level:             config.Level,
	}, nil
}

func (c *GzipCache) compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, c.level)
	if err != nil {
		return nil, fmt.Errorf("gzip writer creation failed: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("gzip write failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("gzip close failed: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *GzipCache) decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gzip reader creation failed: %w", err)
	}
	defer r.Close() //nolint:errcheck

	decompressed, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("gzip read failed: %w", err)
	}
	return decompressed, nil
}

func (c *GzipCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return c.get(ctx, key, c.decompress)
}

func (c *GzipCache) Set(ctx context.Context, key string, value []byte, ttlSeconds float64) error {
	return c.set(ctx, key, value, ttlSeconds, c.compress)
}

func (c *GzipCache) Delete(ctx context.Context, key string) error {
	return c.delete(ctx, key)
}

func (c *GzipCache) Clear(ctx context.Context) error {
	return c.clear(ctx)
}

// Stats returns compression statistics.
func (c *GzipCache) Stats() Stats { return c.stats() }

var _ httpguard.CacheStore = (*GzipCache)(nil)
