// Package httpguard is a request-pipeline orchestrator combining an RFC
// 9111-aware response cache, a single-flight request coalescer, and an
// adaptive priority-aware rate-limit governor behind a single Client.Get
// entry point.
package httpguard

import (
	"net/http"
	"time"

	"github.com/haldane/httpguard/dedup"
	"github.com/haldane/httpguard/ratelimit"
	"github.com/haldane/httpguard/retry"
)

// Result is what Client.Get returns: the raw response bytes plus whatever
// content-negotiated value they parsed to (§6 body parsing).
type Result struct {
	StatusCode int
	Headers    http.Header
	Data       []byte
	Value      any
	FromCache  bool
	Warnings   []string
}

// CacheOverrides is the §6 cache-override option set. Nil fields mean "use
// whatever the enclosing scope (construction-time defaults, then
// per-request) already decided"; per-request overrides merge over
// construction-time defaults field by field.
type CacheOverrides struct {
	IgnoreNoStore *bool
	IgnoreNoCache *bool
	MinimumTTL    *float64
	MaximumTTL    *float64
}

func mergeOverrides(base, over CacheOverrides) CacheOverrides {
	merged := base
	if over.IgnoreNoStore != nil {
		merged.IgnoreNoStore = over.IgnoreNoStore
	}
	if over.IgnoreNoCache != nil {
		merged.IgnoreNoCache = over.IgnoreNoCache
	}
	if over.MinimumTTL != nil {
		merged.MinimumTTL = over.MinimumTTL
	}
	if over.MaximumTTL != nil {
		merged.MaximumTTL = over.MaximumTTL
	}
	return merged
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// ResponseTransformer may rewrite a Result before responseHandler runs.
type ResponseTransformer func(*Result) (*Result, error)

// ResponseHandler inspects (and may reject) a final Result.
type ResponseHandler func(*Result) error

// ResourceAliaser coarsens the resource name inferred from a URL path into a
// rate-limit bucket, per the §9 open-question decision recorded in
// DESIGN.md (default: identity).
type ResourceAliaser func(resource string) string

// Client is the request-pipeline orchestrator (§4.10).
type Client struct {
	transport             Transport
	requestInterceptors   []RequestInterceptor
	responseInterceptors  []ResponseInterceptor
	cache                 CacheStore
	dedup                 *dedup.Coordinator
	rate                  *ratelimit.Governor
	resourceAlias         ResourceAliaser
	retry                 retry.Config
	defaultPriority       ratelimit.Priority
	defaultHeaders        http.Header
	cacheDefaultTTL       float64
	cacheOverrides        CacheOverrides
	errorHandler          ErrorHandler
	responseTransformer   ResponseTransformer
	responseHandler       ResponseHandler
	resilience            *ResilienceConfig
	background            *backgroundRegistry
	maxWaitTime           time.Duration
	skipServerErrorsCache bool
	origins               *originIndex
}

// ClientOption configures a Client at construction time.
type ClientOption func(*Client) error

// NewClient builds a Client. A cache, dedup store, and rate store are all
// optional (§4.10: "all steps elide safely when the corresponding store is
// absent"); with none configured, Get behaves as a plain HTTP fetch.
func NewClient(opts ...ClientOption) (*Client, error) {
	c := &Client{
		transport:       newNetTransport(nil),
		defaultPriority: ratelimit.PriorityBackground,
		defaultHeaders:  http.Header{},
		background:      newBackgroundRegistry(),
		origins:         newOriginIndex(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}
