package hazelcast

import (
	"context"
	"testing"
	"time"

	"github.com/hazelcast/hazelcast-go-client"

	"github.com/haldane/httpguard/storetest"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	ctx := context.Background()

	config := hazelcast.Config{}
	config.Cluster.Network.SetAddresses("localhost:5701")
	config.Cluster.Unisocket = true

	client, err := hazelcast.StartNewClientWithConfig(ctx, config)
	if err != nil {
		t.Skipf("skipping test; no Hazelcast server running at localhost:5701: %v", err)
	}

	m, err := client.GetMap(ctx, "httpguard-cache-test")
	if err != nil {
		_ = client.Shutdown(ctx)
		t.Fatalf("failed to get Hazelcast map: %v", err)
	}
	_ = m.Clear(ctx)

	t.Cleanup(func() {
		_ = m.Clear(ctx)
		_ = client.Shutdown(ctx)
	})
	return NewWithMap(m)
}

func TestCache(t *testing.T) {
	storetest.Cache(t, newTestCache(t))
}

func TestCacheTTL(t *testing.T) {
	storetest.CacheTTL(t, newTestCache(t), 1, 1500*time.Millisecond)
}
