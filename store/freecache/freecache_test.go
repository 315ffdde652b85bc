package freecache

import (
	"testing"
	"time"

	"github.com/haldane/httpguard/storetest"
)

func TestCache(t *testing.T) {
	storetest.Cache(t, New(1024*1024))
}

func TestCacheTTL(t *testing.T) {
	storetest.CacheTTL(t, New(1024*1024), 1, 1500*time.Millisecond)
}

func TestEntryCount(t *testing.T) {
	c := New(1024 * 1024)
	if n := c.EntryCount(); n != 0 {
		t.Fatalf("expected empty cache, got %d entries", n)
	}
}
