// Package leveldbcache provides a httpguard.CacheStore backed by
// github.com/syndtr/goleveldb/leveldb.
package leveldbcache

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
)

// Cache is a httpguard.CacheStore backed by leveldb.
type Cache struct {
	db *leveldb.DB
}

// New opens (or creates) a leveldb database at path.
func New(path string) (*Cache, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &Cache{db: db}, nil
}

// NewWithDB wraps an already-opened leveldb database.
func NewWithDB(db *leveldb.DB) *Cache {
	return &Cache{db: db}
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

func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	raw, err := c.db.Get([]byte(key), nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}
	value, expired := decodeExpiry(raw)
	if expired {
		_ = c.db.Delete([]byte(key), nil)
		return nil, false, nil
	}
	return value, true, nil
}

func (c *Cache) Set(_ context.Context, key string, value []byte, ttlSeconds float64) error {
	if err := c.db.Put([]byte(key), encodeExpiry(value, ttlSeconds), nil); err != nil {
		return fmt.Errorf("leveldb cache set failed for key %q: %w", key, err)
	}
	return nil
}

func (c *Cache) Delete(_ context.Context, key string) error {
	if err := c.db.Delete([]byte(key), nil); err != nil {
		return fmt.Errorf("leveldb cache delete failed for key %q: %w", key, err)
	}
	return nil
}

func (c *Cache) Clear(_ context.Context) error {
	iter := c.db.NewIterator(nil, nil)
	defer iter.Release()
	batch := new(leveldb.Batch)
	for iter.Next() {
		batch.Delete(append([]byte{}, iter.Key()...))
	}
	if err := iter.Error(); err != nil {
		return fmt.Errorf("leveldb cache clear iteration failed: %w", err)
	}
	return c.db.Write(batch, nil)
}

// Close releases the underlying leveldb database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}
