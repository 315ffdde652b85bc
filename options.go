package httpguard

import (
	"fmt"
	"net/http"
	"time"

	"github.com/haldane/httpguard/dedup"
	"github.com/haldane/httpguard/ratelimit"
	"github.com/haldane/httpguard/retry"
)

// WithTransport sets the underlying Transport used to fetch. A nil Transport
// is rejected with an error; without this option the client fetches through
// http.DefaultTransport.
func WithTransport(t Transport) ClientOption {
	return func(c *Client) error {
		if t == nil {
			return fmt.Errorf("httpguard: transport must not be nil")
		}
		c.transport = t
		return nil
	}
}

// WithRoundTripper is a convenience wrapper for WithTransport that adapts a
// plain http.RoundTripper.
func WithRoundTripper(rt http.RoundTripper) ClientOption {
	return func(c *Client) error {
		c.transport = newNetTransport(rt)
		return nil
	}
}

// WithRequestInterceptor registers a hook that runs against every outgoing
// request, including background revalidation attempts (§6).
func WithRequestInterceptor(fn RequestInterceptor) ClientOption {
	return func(c *Client) error {
		c.requestInterceptors = append(c.requestInterceptors, fn)
		return nil
	}
}

// WithResponseInterceptor registers a hook that runs against every received
// response, including background revalidation attempts (§6).
func WithResponseInterceptor(fn ResponseInterceptor) ClientOption {
	return func(c *Client) error {
		c.responseInterceptors = append(c.responseInterceptors, fn)
		return nil
	}
}

// WithCache configures the response cache store.
func WithCache(store CacheStore) ClientOption {
	return func(c *Client) error {
		c.cache = store
		return nil
	}
}

// WithDedup configures the request coalescer's backing store.
func WithDedup(store dedup.Store) ClientOption {
	return func(c *Client) error {
		c.dedup = dedup.New(store)
		return nil
	}
}

// WithRateLimit configures the adaptive rate-limit governor's backing
// store, with optional GovernorOptions (header names, throwOnRateLimit).
func WithRateLimit(store ratelimit.Store, opts ...ratelimit.GovernorOption) ClientOption {
	return func(c *Client) error {
		c.rate = ratelimit.NewGovernor(store, opts...)
		return nil
	}
}

// WithResourceAlias coarsens the resource name inferred from a URL path
// before it reaches the rate-limit store, e.g. grouping `/users/123` and
// `/users/456` under a single `users` bucket.
func WithResourceAlias(fn ResourceAliaser) ClientOption {
	return func(c *Client) error {
		c.resourceAlias = fn
		return nil
	}
}

// WithRetry configures the default retry policy applied to the fetch phase.
// A zero-value Config (the default) disables retry.
func WithRetry(cfg retry.Config) ClientOption {
	return func(c *Client) error {
		c.retry = cfg
		return nil
	}
}

// WithDefaultPriority sets the priority used when a per-request priority
// isn't given. Defaults to PriorityBackground per §6.
func WithDefaultPriority(p ratelimit.Priority) ClientOption {
	return func(c *Client) error {
		c.defaultPriority = p
		return nil
	}
}

// WithHeaders sets headers applied to every request, overridden by
// per-request headers of the same name.
func WithHeaders(headers http.Header) ClientOption {
	return func(c *Client) error {
		c.defaultHeaders = headers.Clone()
		return nil
	}
}

// WithCacheTTL sets the default TTL (seconds) used when a response carries
// no explicit freshness signal (§4.3's StoreTTL fallback).
func WithCacheTTL(seconds float64) ClientOption {
	return func(c *Client) error {
		c.cacheDefaultTTL = seconds
		return nil
	}
}

// WithCacheOverrides sets the construction-time cache overrides (§6);
// per-request overrides merge over these.
func WithCacheOverrides(overrides CacheOverrides) ClientOption {
	return func(c *Client) error {
		c.cacheOverrides = overrides
		return nil
	}
}

// WithErrorHandler installs a custom ErrorHandler consulted for HTTP error
// responses (never for network failures, per §4.10.1).
func WithErrorHandler(h ErrorHandler) ClientOption {
	return func(c *Client) error {
		c.errorHandler = h
		return nil
	}
}

// WithResponseTransformer installs a hook applied to every successful
// Result before the ResponseHandler runs.
func WithResponseTransformer(fn ResponseTransformer) ClientOption {
	return func(c *Client) error {
		c.responseTransformer = fn
		return nil
	}
}

// WithResponseHandler installs a hook given the chance to reject a final
// Result by returning an error.
func WithResponseHandler(fn ResponseHandler) ClientOption {
	return func(c *Client) error {
		c.responseHandler = fn
		return nil
	}
}

// WithMaxWaitTime sets the default cumulative wait budget across cooldown
// and admission waits (§5). Zero means unbounded.
func WithMaxWaitTime(d time.Duration) ClientOption {
	return func(c *Client) error {
		c.maxWaitTime = d
		return nil
	}
}

// WithResilience enables an optional circuit breaker (and/or failsafe-go
// retry policy) around the fetch step. It wraps each individual transport
// call inside the retry.Config attempt loop rather than replacing that loop.
func WithResilience(cfg ResilienceConfig) ClientOption {
	return func(c *Client) error {
		c.resilience = &cfg
		return nil
	}
}

// WithSkipServerErrorsFromCache disables serving 5xx responses from cache
// even when they are classified fresh, forcing a new request instead.
func WithSkipServerErrorsFromCache(skip bool) ClientOption {
	return func(c *Client) error {
		c.skipServerErrorsCache = skip
		return nil
	}
}

// GetOptions are the per-request options from §4.10 ("options = {signal?,
// priority?, headers?, retry?, cacheTTL?, cacheOverrides?}"); signal is
// represented by the ctx.Context argument to Get instead of a field here.
type GetOptions struct {
	Priority       ratelimit.Priority
	Headers        http.Header
	RetryOverride  *retry.Config
	DisableRetry   bool
	CacheTTL       *float64
	CacheOverrides CacheOverrides
}

// GetOption configures a single Get call.
type GetOption func(*GetOptions)

// WithRequestPriority overrides the client's default priority for this call.
func WithRequestPriority(p ratelimit.Priority) GetOption {
	return func(o *GetOptions) { o.Priority = p }
}

// WithRequestHeaders adds headers for this call, taking precedence over the
// client's default headers and over conditional validators.
func WithRequestHeaders(headers http.Header) GetOption {
	return func(o *GetOptions) { o.Headers = headers }
}

// WithRequestRetry overrides the client's retry policy for this call.
func WithRequestRetry(cfg retry.Config) GetOption {
	return func(o *GetOptions) { o.RetryOverride = &cfg }
}

// WithNoRetry disables retry for this call ("retry: false" in §4.10).
func WithNoRetry() GetOption {
	return func(o *GetOptions) { o.DisableRetry = true }
}

// WithRequestCacheTTL overrides the default-TTL fallback for this call.
func WithRequestCacheTTL(seconds float64) GetOption {
	return func(o *GetOptions) { o.CacheTTL = &seconds }
}

// WithRequestCacheOverrides merges per-request cache overrides over the
// client's construction-time defaults.
func WithRequestCacheOverrides(overrides CacheOverrides) GetOption {
	return func(o *GetOptions) { o.CacheOverrides = overrides }
}
