// Package natskv provides a httpguard.CacheStore backed by a NATS
// JetStream Key/Value bucket.
package natskv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Config holds the configuration for creating a NATS K/V cache.
type Config struct {
	NATSUrl     string
	Bucket      string
	Description string
	// TTL is the bucket-wide expiry applied by JetStream to every key. NATS
	// K/V has no per-key TTL, so callers needing mixed TTLs should use a
	// different backend or accept this bucket-wide ceiling.
	TTL         time.Duration
	NATSOptions []nats.Option
}

// Cache is a httpguard.CacheStore backed by a NATS JetStream K/V bucket.
type Cache struct {
	kv jetstream.KeyValue
	nc *nats.Conn
}

func cacheKey(key string) string {
	return "httpguard." + key
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	entry, err := c.kv.Get(ctx, cacheKey(key))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return entry.Value(), true, nil
}

// Set writes value under key. ttlSeconds is accepted for interface
// compliance only: NATS K/V expiry is configured bucket-wide at creation
// time via Config.TTL, not per key.
func (c *Cache) Set(ctx context.Context, key string, value []byte, _ float64) error {
	if _, err := c.kv.Put(ctx, cacheKey(key), value); err != nil {
		return fmt.Errorf("natskv set failed for key %q: %w", key, err)
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.kv.Delete(ctx, cacheKey(key)); err != nil {
		if !errors.Is(err, jetstream.ErrKeyNotFound) {
			return fmt.Errorf("natskv delete failed for key %q: %w", key, err)
		}
	}
	return nil
}

func (c *Cache) Clear(ctx context.Context) error {
	lister, err := c.kv.ListKeys(ctx)
	if err != nil {
		return fmt.Errorf("natskv clear list failed: %w", err)
	}
	for k := range lister.Keys() {
		if err := c.kv.Delete(ctx, k); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
			return fmt.Errorf("natskv clear delete failed for key %q: %w", k, err)
		}
	}
	return nil
}

// Close closes the underlying NATS connection if it was created by New().
func (c *Cache) Close() {
	if c.nc != nil {
		c.nc.Close()
	}
}

// New connects to NATS and creates or updates the configured K/V bucket.
func New(ctx context.Context, config Config) (*Cache, error) {
	if config.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	url := config.NATSUrl
	if url == "" {
		url = nats.DefaultURL
	}

	nc, err := nats.Connect(url, config.NATSOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      config.Bucket,
		Description: config.Description,
		TTL:         config.TTL,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create or update K/V bucket: %w", err)
	}

	return &Cache{kv: kv, nc: nc}, nil
}

// NewWithKeyValue returns a new Cache with the given NATS JetStream
// KeyValue store. The returned Cache does not own the NATS connection.
func NewWithKeyValue(kv jetstream.KeyValue) *Cache {
	return &Cache{kv: kv}
}
