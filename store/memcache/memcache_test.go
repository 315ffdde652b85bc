package memcache

import (
	"testing"
	"time"

	"github.com/haldane/httpguard/storetest"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c := New("localhost:11211")
	if err := c.client.Ping(); err != nil {
		t.Skipf("skipping test; no memcache server running at localhost:11211: %v", err)
	}
	return c
}

func TestCache(t *testing.T) {
	storetest.Cache(t, newTestCache(t))
}

func TestCacheTTL(t *testing.T) {
	storetest.CacheTTL(t, newTestCache(t), 1, 1500*time.Millisecond)
}
