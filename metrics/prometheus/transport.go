package prometheus

import (
	"context"
	"time"

	"github.com/haldane/httpguard"
	"github.com/haldane/httpguard/metrics"
)

// InstrumentedClient wraps a httpguard.Client, recording metrics for every
// Get call.
type InstrumentedClient struct {
	underlying *httpguard.Client
	collector  metrics.Collector
}

// NewInstrumentedClient wraps client, recording metrics via collector. If
// collector is nil, metrics.DefaultCollector is used.
func NewInstrumentedClient(client *httpguard.Client, collector metrics.Collector) *InstrumentedClient {
	if collector == nil {
		collector = metrics.DefaultCollector
	}
	return &InstrumentedClient{underlying: client, collector: collector}
}

// Get performs client.Get, recording request duration, cache status, and
// response size.
func (c *InstrumentedClient) Get(ctx context.Context, rawURL string, opts ...httpguard.GetOption) (*httpguard.Result, error) {
	start := time.Now()
	result, err := c.underlying.Get(ctx, rawURL, opts...)
	duration := time.Since(start)

	if err != nil {
		return result, err
	}

	cacheStatus := "miss"
	if result.FromCache {
		cacheStatus = "hit"
	} else if result.StatusCode == 304 {
		cacheStatus = "revalidated"
	}

	c.collector.RecordHTTPRequest("GET", cacheStatus, result.StatusCode, duration)
	c.collector.RecordHTTPResponseSize(cacheStatus, int64(len(result.Data)))

	return result, nil
}
