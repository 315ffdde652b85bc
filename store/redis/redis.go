// Package redis provides Redis-backed implementations of httpguard's
// CacheStore, dedup.Store, and ratelimit.Store using github.com/redis/go-redis/v9.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/haldane/httpguard/ratelimit"
)

// Config holds connection settings for the Redis-backed stores.
type Config struct {
	Address      string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
}

// DefaultConfig returns sensible connection defaults.
func DefaultConfig() Config {
	return Config{
		Address:      "localhost:6379",
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	}
}

func newClient(cfg Config) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
	})
}

const cachePrefix = "httpguard:cache:"

func cacheKey(key string) string {
	return cachePrefix + key
}

// Cache is a httpguard.CacheStore backed by a Redis string value per key,
// using go-redis's native expiration support for TTL.
type Cache struct {
	client *goredis.Client
}

// NewCache dials Redis per cfg and returns a Cache.
func NewCache(cfg Config) (*Cache, error) {
	return NewCacheWithClient(newClient(cfg)), nil
}

// NewCacheWithClient wraps an already-constructed go-redis client.
func NewCacheWithClient(client *goredis.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, cacheKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis cache get failed for key %q: %w", key, err)
	}
	return val, true, nil
}

func (c *Cache) Set(ctx context.Context, key string, value []byte, ttlSeconds float64) error {
	var expiration time.Duration
	if ttlSeconds > 0 {
		expiration = time.Duration(ttlSeconds * float64(time.Second))
	}
	if err := c.client.Set(ctx, cacheKey(key), value, expiration).Err(); err != nil {
		return fmt.Errorf("redis cache set failed for key %q: %w", key, err)
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, cacheKey(key)).Err(); err != nil {
		return fmt.Errorf("redis cache delete failed for key %q: %w", key, err)
	}
	return nil
}

// Clear removes every key under the cache's key prefix via SCAN, avoiding
// FLUSHDB so a shared Redis instance's other keyspaces are untouched.
func (c *Cache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, cachePrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis cache clear scan failed: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis cache clear failed: %w", err)
	}
	return nil
}

const (
	dedupPrefix    = "httpguard:dedup:"
	dedupJobTTL    = 5 * time.Minute
	dedupPollEvery = 25 * time.Millisecond
)

func dedupKey(key string) string {
	return dedupPrefix + key
}

// statuses stored as the value's first byte
const (
	statusPending byte = 'P'
	statusDone    byte = 'D'
	statusFailed  byte = 'F'
)

// Dedup is a dedup.Store backed by Redis, using SETNX for atomic ownership
// and polling for WaitFor since go-redis has no blocking wait on arbitrary
// key mutation.
type Dedup struct {
	client *goredis.Client
}

// NewDedup wraps an already-constructed go-redis client as a dedup.Store.
func NewDedup(client *goredis.Client) *Dedup {
	return &Dedup{client: client}
}

func encodeJob(status byte, value []byte) []byte {
	return append([]byte{status}, value...)
}

func decodeJob(raw []byte) (status byte, value []byte) {
	if len(raw) == 0 {
		return 0, nil
	}
	return raw[0], raw[1:]
}

func (d *Dedup) IsInProgress(ctx context.Context, key string) (bool, error) {
	raw, err := d.client.Get(ctx, dedupKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis dedup status check failed for key %q: %w", key, err)
	}
	status, _ := decodeJob(raw)
	return status == statusPending, nil
}

func (d *Dedup) RegisterOrJoin(ctx context.Context, key string) (string, bool, error) {
	ok, err := d.client.SetNX(ctx, dedupKey(key), encodeJob(statusPending, nil), dedupJobTTL).Result()
	if err != nil {
		return "", false, fmt.Errorf("redis dedup register failed for key %q: %w", key, err)
	}
	return key, ok, nil
}

func (d *Dedup) Register(ctx context.Context, key string) error {
	if err := d.client.Set(ctx, dedupKey(key), encodeJob(statusPending, nil), dedupJobTTL).Err(); err != nil {
		return fmt.Errorf("redis dedup register failed for key %q: %w", key, err)
	}
	return nil
}

func (d *Dedup) Complete(ctx context.Context, key string, value []byte) error {
	if err := d.client.Set(ctx, dedupKey(key), encodeJob(statusDone, value), dedupJobTTL).Err(); err != nil {
		return fmt.Errorf("redis dedup complete failed for key %q: %w", key, err)
	}
	return nil
}

func (d *Dedup) Fail(ctx context.Context, key string, _ error) error {
	if err := d.client.Set(ctx, dedupKey(key), encodeJob(statusFailed, nil), dedupJobTTL).Err(); err != nil {
		return fmt.Errorf("redis dedup fail failed for key %q: %w", key, err)
	}
	return nil
}

func (d *Dedup) WaitFor(ctx context.Context, key string) ([]byte, bool, error) {
	ticker := time.NewTicker(dedupPollEvery)
	defer ticker.Stop()

	for {
		raw, err := d.client.Get(ctx, dedupKey(key)).Bytes()
		if err != nil {
			if errors.Is(err, goredis.Nil) {
				return nil, false, nil
			}
			return nil, false, fmt.Errorf("redis dedup wait failed for key %q: %w", key, err)
		}

		status, value := decodeJob(raw)
		switch status {
		case statusDone:
			return value, true, nil
		case statusFailed:
			return nil, false, nil
		}

		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-ticker.C:
		}
	}
}

const rateLimitPrefix = "httpguard:ratelimit:"

func rateLimitKey(resource string) string {
	return rateLimitPrefix + resource
}

// RateLimit is a ratelimit.Store backed by a Redis sorted set per resource,
// with members scored by admission timestamp so expired entries can be
// trimmed with ZREMRANGEBYSCORE — the standard Redis sliding-window pattern.
type RateLimit struct {
	client *goredis.Client
	limit  int
	window time.Duration
}

// NewRateLimit wraps an already-constructed go-redis client as a
// ratelimit.Store admitting up to limit requests per resource within
// window.
func NewRateLimit(client *goredis.Client, limit int, window time.Duration) *RateLimit {
	return &RateLimit{client: client, limit: limit, window: window}
}

func (r *RateLimit) trim(ctx context.Context, key string, now time.Time) error {
	cutoff := now.Add(-r.window).UnixNano()
	return r.client.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("%d", cutoff)).Err()
}

func (r *RateLimit) CanProceed(ctx context.Context, resource string, _ ratelimit.Priority) (bool, error) {
	key := rateLimitKey(resource)
	now := time.Now()
	if err := r.trim(ctx, key, now); err != nil {
		return false, fmt.Errorf("redis ratelimit trim failed for resource %q: %w", resource, err)
	}
	count, err := r.client.ZCard(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis ratelimit count failed for resource %q: %w", resource, err)
	}
	return int(count) < r.limit, nil
}

func (r *RateLimit) Record(ctx context.Context, resource string, _ ratelimit.Priority) error {
	key := rateLimitKey(resource)
	now := time.Now()
	member := fmt.Sprintf("%d", now.UnixNano())
	if err := r.client.ZAdd(ctx, key, goredis.Z{Score: float64(now.UnixNano()), Member: member}).Err(); err != nil {
		return fmt.Errorf("redis ratelimit record failed for resource %q: %w", resource, err)
	}
	r.client.Expire(ctx, key, r.window)
	return nil
}

func (r *RateLimit) GetWaitTime(ctx context.Context, resource string, _ ratelimit.Priority) (time.Duration, error) {
	key := rateLimitKey(resource)
	now := time.Now()
	if err := r.trim(ctx, key, now); err != nil {
		return 0, fmt.Errorf("redis ratelimit trim failed for resource %q: %w", resource, err)
	}
	count, err := r.client.ZCard(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis ratelimit count failed for resource %q: %w", resource, err)
	}
	if int(count) < r.limit {
		return 0, nil
	}

	oldest, err := r.client.ZRangeWithScores(ctx, key, 0, 0).Result()
	if err != nil || len(oldest) == 0 {
		return r.window, nil
	}
	oldestTime := time.Unix(0, int64(oldest[0].Score))
	wait := r.window - now.Sub(oldestTime)
	if wait < 0 {
		wait = 0
	}
	return wait, nil
}
