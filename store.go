package httpguard

import (
	"context"
	"io"
	"net/http"
)

// CacheStore is the external cache backend contract from §6, keyed by
// fingerprint. Values are opaque bytes — the orchestrator is the only layer
// that knows they hold an envelope.Entry.
type CacheStore interface {
	// Get returns the stored bytes for key, or ok=false if absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Set stores value under key. ttlSeconds > 0 expires after N seconds,
	// == 0 never expires, < 0 is already expired (a no-op delete).
	Set(ctx context.Context, key string, value []byte, ttlSeconds float64) error

	// Delete removes key, if present.
	Delete(ctx context.Context, key string) error

	// Clear removes every entry the store holds.
	Clear(ctx context.Context) error
}

// RequestInterceptor runs against every outgoing request, including
// background revalidation attempts, before it is sent.
type RequestInterceptor func(req *http.Request) error

// ResponseInterceptor runs against every received response, including
// background revalidation attempts, before the orchestrator inspects it.
type ResponseInterceptor func(resp *http.Response) error

// Transport is the pluggable fetch operation from §6: a single fetch(url,
// init) -> response, where init carries headers and (via ctx) an abort
// signal.
type Transport interface {
	Fetch(ctx context.Context, req *http.Request) (*http.Response, error)
}

// TransportFunc adapts a function to a Transport.
type TransportFunc func(ctx context.Context, req *http.Request) (*http.Response, error)

func (f TransportFunc) Fetch(ctx context.Context, req *http.Request) (*http.Response, error) {
	return f(ctx, req)
}

// netTransport is the default Transport, backed by an http.RoundTripper.
type netTransport struct {
	rt http.RoundTripper
}

func newNetTransport(rt http.RoundTripper) *netTransport {
	if rt == nil {
		rt = http.DefaultTransport
	}
	return &netTransport{rt: rt}
}

func (t *netTransport) Fetch(ctx context.Context, req *http.Request) (*http.Response, error) {
	client := &http.Client{Transport: t.rt}
	return client.Do(req.WithContext(ctx))
}

// readAndClose drains a response body into memory exactly once, per §5's
// "responses are consumed exactly once" rule.
func readAndClose(body io.ReadCloser) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	defer body.Close()
	return io.ReadAll(body)
}
