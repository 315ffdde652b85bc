package mongodb

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/haldane/httpguard/storetest"
)

func testURI() string {
	if uri := os.Getenv("MONGODB_TEST_URI"); uri != "" {
		return uri
	}
	return "mongodb://localhost:27017"
}

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	ctx := context.Background()

	config := Config{
		URI:        testURI(),
		Database:   "httpguard_test",
		Collection: "cache_test",
		Timeout:    3 * time.Second,
	}

	cache, err := New(ctx, config)
	if err != nil {
		t.Skipf("skipping test; MongoDB unavailable: %v", err)
	}

	t.Cleanup(func() {
		_ = cache.Clear(ctx)
		_ = cache.Close(ctx)
	})
	return cache
}

func TestCache(t *testing.T) {
	storetest.Cache(t, newTestCache(t))
}

func TestCacheTTL(t *testing.T) {
	storetest.CacheTTL(t, newTestCache(t), 1, 1500*time.Millisecond)
}
