// Package postgresql provides a httpguard.CacheStore backed by PostgreSQL
// via github.com/jackc/pgx/v5, storing each entry's own expiry timestamp
// so TTL survives restarts and is enforced on read.
package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNilPool is returned when a nil pool is provided.
var ErrNilPool = errors.New("postgresql: pool cannot be nil")

const (
	// DefaultTableName is the default table name for cache storage.
	DefaultTableName = "httpguard_cache"
	// DefaultKeyPrefix is the default prefix for cache keys.
	DefaultKeyPrefix = "cache:"
)

// Config holds the configuration for the PostgreSQL cache.
type Config struct {
	TableName string
	KeyPrefix string
	Timeout   time.Duration
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		TableName: DefaultTableName,
		KeyPrefix: DefaultKeyPrefix,
		Timeout:   5 * time.Second,
	}
}

// Cache is a httpguard.CacheStore backed by a PostgreSQL table.
type Cache struct {
	pool      *pgxpool.Pool
	tableName string
	keyPrefix string
	timeout   time.Duration
}

func (c *Cache) cacheKey(key string) string {
	return c.keyPrefix + key
}

func (c *Cache) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var data []byte
	var expiresAt *time.Time
	query := `SELECT data, expires_at FROM ` + c.tableName + ` WHERE key = $1`
	err := c.pool.QueryRow(ctx, query, c.cacheKey(key)).Scan(&data, &expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("postgresql cache get failed for key %q: %w", key, err)
	}
	if expiresAt != nil && time.Now().After(*expiresAt) {
		_, _ = c.pool.Exec(ctx, `DELETE FROM `+c.tableName+` WHERE key = $1`, c.cacheKey(key))
		return nil, false, nil
	}
	return data, true, nil
}

func (c *Cache) Set(ctx context.Context, key string, value []byte, ttlSeconds float64) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var expiresAt *time.Time
	if ttlSeconds > 0 {
		t := time.Now().Add(time.Duration(ttlSeconds * float64(time.Second)))
		expiresAt = &t
	}

	query := `
		INSERT INTO ` + c.tableName + ` (key, data, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE SET data = $2, created_at = $3, expires_at = $4
	`
	if _, err := c.pool.Exec(ctx, query, c.cacheKey(key), value, time.Now(), expiresAt); err != nil {
		return fmt.Errorf("postgresql cache set failed for key %q: %w", key, err)
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	query := `DELETE FROM ` + c.tableName + ` WHERE key = $1`
	if _, err := c.pool.Exec(ctx, query, c.cacheKey(key)); err != nil {
		return fmt.Errorf("postgresql cache delete failed for key %q: %w", key, err)
	}
	return nil
}

func (c *Cache) Clear(ctx context.Context) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	query := `DELETE FROM ` + c.tableName + ` WHERE key LIKE $1`
	if _, err := c.pool.Exec(ctx, query, c.keyPrefix+"%"); err != nil {
		return fmt.Errorf("postgresql cache clear failed: %w", err)
	}
	return nil
}

// CreateTable creates the cache table if it doesn't exist.
func (c *Cache) CreateTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS ` + c.tableName + ` (
			key TEXT PRIMARY KEY,
			data BYTEA NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ
		)
	`
	_, err := c.pool.Exec(ctx, query)
	return err
}

// Close closes the connection pool.
func (c *Cache) Close() {
	c.pool.Close()
}

// New creates a new Cache with a connection pool from the given connection string.
func New(ctx context.Context, connString string, config *Config) (*Cache, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}
	return NewWithPool(ctx, pool, config)
}

// NewWithPool returns a new Cache using the provided connection pool,
// creating the backing table if it doesn't already exist.
func NewWithPool(ctx context.Context, pool *pgxpool.Pool, config *Config) (*Cache, error) {
	if pool == nil {
		return nil, ErrNilPool
	}
	if config == nil {
		config = DefaultConfig()
	}

	cache := &Cache{
		pool:      pool,
		tableName: config.TableName,
		keyPrefix: config.KeyPrefix,
		timeout:   config.Timeout,
	}
	if err := cache.CreateTable(ctx); err != nil {
		return nil, err
	}
	return cache, nil
}
