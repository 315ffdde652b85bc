// Package diskcache provides a httpguard.CacheStore backed by
// github.com/peterbourgon/diskv, supplementing an in-memory map with
// persistent storage on the local filesystem.
package diskcache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/peterbourgon/diskv"
)

// Cache is a httpguard.CacheStore backed by diskv.
type Cache struct {
	d *diskv.Diskv
}

// New returns a new Cache that stores files under basePath.
func New(basePath string) *Cache {
	return &Cache{
		d: diskv.New(diskv.Options{
			BasePath:     basePath,
			CacheSizeMax: 100 * 1024 * 1024,
		}),
	}
}

// NewWithDiskv returns a new Cache using the provided Diskv as storage.
func NewWithDiskv(d *diskv.Diskv) *Cache {
	return &Cache{d}
}

func keyToFilename(key string) string {
	h := sha256.New()
	_, _ = io.WriteString(h, key)
	return hex.EncodeToString(h.Sum(nil))
}

// encodeExpiry prefixes value with an 8-byte big-endian unix-nano expiry
// deadline (0 meaning no expiry), since diskv itself has no TTL concept.
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
	filename := keyToFilename(key)
	raw, err := c.d.Read(filename)
	if err != nil {
		return nil, false, nil
	}
	value, expired := decodeExpiry(raw)
	if expired {
		_ = c.d.Erase(filename)
		return nil, false, nil
	}
	return value, true, nil
}

func (c *Cache) Set(_ context.Context, key string, value []byte, ttlSeconds float64) error {
	filename := keyToFilename(key)
	if err := c.d.WriteStream(filename, bytes.NewReader(encodeExpiry(value, ttlSeconds)), true); err != nil {
		return fmt.Errorf("diskcache set failed for key %q: %w", key, err)
	}
	return nil
}

func (c *Cache) Delete(_ context.Context, key string) error {
	_ = c.d.Erase(keyToFilename(key))
	return nil
}

func (c *Cache) Clear(_ context.Context) error {
	keys := c.d.Keys(nil)
	for k := range keys {
		_ = c.d.Erase(k)
	}
	return nil
}
