package redis

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/haldane/httpguard/storetest"
)

func dialOrSkip(t *testing.T) *goredis.Client {
	t.Helper()
	ctx := context.Background()
	client := goredis.NewClient(&goredis.Options{Addr: "localhost:6379"})
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("skipping test; no server running at localhost:6379: %v", err)
	}
	_ = client.FlushAll(ctx)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestCache(t *testing.T) {
	client := dialOrSkip(t)
	storetest.Cache(t, NewCacheWithClient(client))
}

func TestCacheTTL(t *testing.T) {
	client := dialOrSkip(t)
	storetest.CacheTTL(t, NewCacheWithClient(client), 1, 1500*time.Millisecond)
}

func TestDedup(t *testing.T) {
	client := dialOrSkip(t)
	storetest.Dedup(t, NewDedup(client))
}

func TestDedupFail(t *testing.T) {
	client := dialOrSkip(t)
	storetest.DedupFail(t, NewDedup(client))
}

func TestRateLimit(t *testing.T) {
	client := dialOrSkip(t)
	storetest.RateLimit(t, NewRateLimit(client, 3, time.Minute), "resource-a", 3)
}
