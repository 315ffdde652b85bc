// Package blobcache provides a httpguard.CacheStore backed by Go Cloud
// Development Kit blob storage (gocloud.dev/blob), portable across S3,
// GCS, Azure Blob Storage, in-memory, and local filesystem buckets.
package blobcache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

// Config holds the configuration for the blob cache.
type Config struct {
	BucketURL string
	KeyPrefix string
	Timeout   time.Duration
	Bucket    *blob.Bucket
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		KeyPrefix: "cache/",
		Timeout:   30 * time.Second,
	}
}

// Cache is a httpguard.CacheStore backed by a Go Cloud blob bucket.
type Cache struct {
	bucket     *blob.Bucket
	keyPrefix  string
	timeout    time.Duration
	ownsBucket bool
}

// New opens the bucket named by config.BucketURL (or wraps config.Bucket)
// and returns a Cache. Call Close when done to release an owned bucket.
func New(ctx context.Context, config Config) (*Cache, error) {
	if config.BucketURL == "" && config.Bucket == nil {
		return nil, fmt.Errorf("either BucketURL or Bucket must be provided")
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = DefaultConfig().KeyPrefix
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultConfig().Timeout
	}

	var bucket *blob.Bucket
	var ownsBucket bool
	var err error
	if config.Bucket != nil {
		bucket = config.Bucket
	} else {
		bucket, err = blob.OpenBucket(ctx, config.BucketURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open bucket: %w", err)
		}
		ownsBucket = true
	}

	return &Cache{bucket: bucket, keyPrefix: config.KeyPrefix, timeout: config.Timeout, ownsBucket: ownsBucket}, nil
}

// NewWithBucket wraps an already-opened bucket; the caller owns closing it.
func NewWithBucket(bucket *blob.Bucket, keyPrefix string, timeout time.Duration) *Cache {
	if keyPrefix == "" {
		keyPrefix = DefaultConfig().KeyPrefix
	}
	if timeout == 0 {
		timeout = DefaultConfig().Timeout
	}
	return &Cache{bucket: bucket, keyPrefix: keyPrefix, timeout: timeout}
}

func (c *Cache) blobKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return c.keyPrefix + hex.EncodeToString(hash[:])
}

func (c *Cache) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

func encodeExpiry(value []byte, ttlSeconds float64) []byte {
	var deadline int64
	if ttlSeconds > 0 {
		deadline = time.Now().Add(time.Duration(ttlSeconds * float64(time.Second))).UnixNano()
	}
	buf := make([]byte, 8+len(value))
	binary.BigEndian.PutUint64(buf[:8], uint64(deadline))
	copy(buf[8:], value)
	return buf
}

func decodeExpiry(raw []byte) (value []byte, expired bool) {
	if len(raw) < 8 {
		return raw, false
	}
	deadline := int64(binary.BigEndian.Uint64(raw[:8]))
	if deadline != 0 && time.Now().UnixNano() > deadline {
		return nil, true
	}
	return raw[8:], false
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	blobKey := c.blobKey(key)
	reader, err := c.bucket.NewReader(ctx, blobKey, nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("blobcache get failed for key %q: %w", key, err)
	}
	defer reader.Close() //nolint:errcheck

	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, false, fmt.Errorf("blobcache read failed for key %q: %w", key, err)
	}

	value, expired := decodeExpiry(raw)
	if expired {
		_ = c.bucket.Delete(ctx, blobKey)
		return nil, false, nil
	}
	return value, true, nil
}

func (c *Cache) Set(ctx context.Context, key string, value []byte, ttlSeconds float64) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	blobKey := c.blobKey(key)
	writer, err := c.bucket.NewWriter(ctx, blobKey, nil)
	if err != nil {
		return fmt.Errorf("blobcache set failed to create writer for key %q: %w", key, err)
	}
	_, writeErr := writer.Write(encodeExpiry(value, ttlSeconds))
	closeErr := writer.Close()
	if writeErr != nil {
		return fmt.Errorf("blobcache set failed to write for key %q: %w", key, writeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("blobcache set failed to close writer for key %q: %w", key, closeErr)
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	err := c.bucket.Delete(ctx, c.blobKey(key))
	if err != nil && gcerrors.Code(err) != gcerrors.NotFound {
		return fmt.Errorf("blobcache delete failed for key %q: %w", key, err)
	}
	return nil
}

// Clear removes every blob under the cache's key prefix.
func (c *Cache) Clear(ctx context.Context) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	iter := c.bucket.List(&blob.ListOptions{Prefix: c.keyPrefix})
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("blobcache clear list failed: %w", err)
		}
		if err := c.bucket.Delete(ctx, obj.Key); err != nil && gcerrors.Code(err) != gcerrors.NotFound {
			return fmt.Errorf("blobcache clear delete failed for key %q: %w", obj.Key, err)
		}
	}
	return nil
}

// Close closes the bucket if it was opened by New().
func (c *Cache) Close() error {
	if c.ownsBucket {
		if err := c.bucket.Close(); err != nil {
			return fmt.Errorf("failed to close blob bucket: %w", err)
		}
	}
	return nil
}
