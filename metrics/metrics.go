// Package metrics provides an interface for collecting client metrics.
// It defines a generic interface that can be implemented by various
// metrics systems (Prometheus, OpenTelemetry, Datadog, etc.) without adding
// dependencies to the core httpguard package.
package metrics

import "time"

// Collector defines the interface for metrics collection. Implementations
// can target any monitoring system without requiring changes to the
// httpguard core.
type Collector interface {
	// RecordCacheOperation records a cache operation (get, set, delete).
	RecordCacheOperation(operation, backend, result string, duration time.Duration)

	// RecordCacheSize records the current size of the cache in bytes.
	RecordCacheSize(backend string, sizeBytes int64)

	// RecordCacheEntries records the current number of entries in cache.
	RecordCacheEntries(backend string, count int64)

	// RecordHTTPRequest records a request made through a Client.
	RecordHTTPRequest(method, cacheStatus string, statusCode int, duration time.Duration)

	// RecordHTTPResponseSize records the size of a response body.
	RecordHTTPResponseSize(cacheStatus string, sizeBytes int64)

	// RecordStaleResponse records when a stale response is served on error.
	RecordStaleResponse(errorType string)

	// RecordRateLimitWait records time spent waiting on rate-limit admission.
	RecordRateLimitWait(resource string, duration time.Duration)
}

// NoOpCollector implements Collector with no-op operations, used as the
// default collector so unconfigured clients pay zero overhead.
type NoOpCollector struct{}

func (n *NoOpCollector) RecordCacheOperation(operation, backend, result string, duration time.Duration) {
}
func (n *NoOpCollector) RecordCacheSize(backend string, sizeBytes int64)   {}
func (n *NoOpCollector) RecordCacheEntries(backend string, count int64)    {}
func (n *NoOpCollector) RecordHTTPRequest(method, cacheStatus string, statusCode int, duration time.Duration) {
}
func (n *NoOpCollector) RecordHTTPResponseSize(cacheStatus string, sizeBytes int64) {}
func (n *NoOpCollector) RecordStaleResponse(errorType string)                      {}
func (n *NoOpCollector) RecordRateLimitWait(resource string, duration time.Duration) {}

// DefaultCollector is the no-op collector used when metrics are not enabled.
var DefaultCollector Collector = &NoOpCollector{}

var _ Collector = (*NoOpCollector)(nil)
