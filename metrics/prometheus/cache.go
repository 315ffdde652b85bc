package prometheus

import (
	"context"
	"time"

	"github.com/haldane/httpguard"
	"github.com/haldane/httpguard/metrics"
)

const (
	resultHit     = "hit"
	resultMiss    = "miss"
	resultSuccess = "success"
	resultError   = "error"
)

// InstrumentedCache wraps a httpguard.CacheStore with metrics recording.
type InstrumentedCache struct {
	underlying httpguard.CacheStore
	collector  metrics.Collector
	backend    string
}

// NewInstrumentedCache wraps cache, recording metrics under backend's name.
// If collector is nil, metrics.DefaultCollector is used.
func NewInstrumentedCache(cache httpguard.CacheStore, backend string, collector metrics.Collector) *InstrumentedCache {
	if collector == nil {
		collector = metrics.DefaultCollector
	}
	return &InstrumentedCache{underlying: cache, collector: collector, backend: backend}
}

func (c *InstrumentedCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	value, ok, err := c.underlying.Get(ctx, key)
	duration := time.Since(start)

	result := resultMiss
	if err != nil {
		result = resultError
	} else if ok {
		result = resultHit
	}
	c.collector.RecordCacheOperation("get", c.backend, result, duration)
	return value, ok, err
}

func (c *InstrumentedCache) Set(ctx context.Context, key string, value []byte, ttlSeconds float64) error {
	start := time.Now()
	err := c.underlying.Set(ctx, key, value, ttlSeconds)
	duration := time.Since(start)

	result := resultSuccess
	if err != nil {
		result = resultError
	}
	c.collector.RecordCacheOperation("set", c.backend, result, duration)
	return err
}

func (c *InstrumentedCache) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := c.underlying.Delete(ctx, key)
	duration := time.Since(start)

	result := resultSuccess
	if err != nil {
		result = resultError
	}
	c.collector.RecordCacheOperation("delete", c.backend, result, duration)
	return err
}

func (c *InstrumentedCache) Clear(ctx context.Context) error {
	return c.underlying.Clear(ctx)
}

var _ httpguard.CacheStore = (*InstrumentedCache)(nil)
