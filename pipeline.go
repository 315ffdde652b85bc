package httpguard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/haldane/httpguard/dedup"
	"github.com/haldane/httpguard/envelope"
	"github.com/haldane/httpguard/fingerprint"
	"github.com/haldane/httpguard/freshness"
	"github.com/haldane/httpguard/ratelimit"
	"github.com/haldane/httpguard/retry"
	"github.com/haldane/httpguard/vary"
)

// Get runs the full §4.10 pipeline for a GET request: fingerprint and
// resource inference, server-cooldown enforcement, the cache phase
// (freshness classification, stale-while-revalidate/stale-if-error
// handling), the dedup phase, the rate-limit phase, the fetch phase with
// optional retry, and the cache write-back.
func (c *Client) Get(ctx context.Context, rawURL string, opts ...GetOption) (*Result, error) {
	options := GetOptions{Priority: c.defaultPriority}
	for _, opt := range opts {
		opt(&options)
	}

	priority := options.Priority
	if priority == "" {
		priority = c.defaultPriority
	}
	headers := mergeHeaders(c.defaultHeaders, options.Headers)

	retryCfg := c.retry
	switch {
	case options.DisableRetry:
		retryCfg = retry.Config{}
	case options.RetryOverride != nil:
		retryCfg = *options.RetryOverride
	}

	overrides := mergeOverrides(c.cacheOverrides, options.CacheOverrides)
	cacheTTLDefault := c.cacheDefaultTTL
	if options.CacheTTL != nil {
		cacheTTLDefault = *options.CacheTTL
	}

	key, err := fingerprint.Fingerprint(rawURL, nil)
	if err != nil {
		return nil, &Error{Kind: KindSerialization, Message: err.Error(), Cause: err}
	}
	origin, resource := originAndResource(rawURL)
	if c.resourceAlias != nil {
		resource = c.resourceAlias(resource)
	}

	deadline := time.Now().Add(c.maxWaitTime)
	hasDeadline := c.maxWaitTime > 0

	if c.rate != nil {
		budget, budgetErr := remainingBudget(deadline, hasDeadline)
		if budgetErr != nil {
			return nil, wrapGovernorErr(budgetErr)
		}
		if err := c.rate.EnforceCooldown(ctx, origin, budget, false); err != nil {
			return nil, wrapGovernorErr(err)
		}
	}

	var staleEntry *envelope.Entry
	staleStatus := freshness.Stale

	if c.cache != nil {
		raw, ok, err := c.cache.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok {
			entry, isEnvelope, decodeErr := envelope.Decode(raw)
			if decodeErr != nil {
				return nil, &Error{Kind: KindSerialization, Message: decodeErr.Error(), Cause: decodeErr}
			}
			skipServedFromCache := c.skipServerErrorsCache && entry.StatusCode >= http.StatusInternalServerError
			if isEnvelope && !skipServedFromCache && vary.Matches(entry.VaryHeaders, entry.VaryValues, headers) {
				status := freshness.Classify(entry.Metadata(), time.Now(), boolOr(overrides.IgnoreNoCache, false))
				switch status {
				case freshness.Fresh:
					return resultFromEntry(entry), nil
				case freshness.StaleWhileRevalidate:
					result := resultFromEntry(entry)
					revalEntry := entry
					c.background.spawn(key, func() {
						bgCtx := context.Background()
						_, _ = c.fetchAndProcess(bgCtx, rawURL, key, origin, resource, headers, retryCfg, priority, &revalEntry, status, overrides, cacheTTLDefault, deadline, hasDeadline)
					})
					return result, nil
				default:
					staleEntry = &entry
					staleStatus = status
				}
			}
		}
	}

	if c.dedup != nil {
		raw, err := c.dedup.Do(ctx, key, func(ctx context.Context) ([]byte, error) {
			result, err := c.fetchAndProcess(ctx, rawURL, key, origin, resource, headers, retryCfg, priority, staleEntry, staleStatus, overrides, cacheTTLDefault, deadline, hasDeadline)
			if err != nil {
				return nil, err
			}
			return json.Marshal(result)
		})
		if err != nil {
			if errors.Is(err, dedup.ErrUpstreamFailed) {
				return nil, classifyError(nil, err, nil)
			}
			return nil, err
		}
		var result Result
		if err := json.Unmarshal(raw, &result); err != nil {
			return nil, &Error{Kind: KindSerialization, Message: err.Error(), Cause: err}
		}
		return &result, nil
	}

	return c.fetchAndProcess(ctx, rawURL, key, origin, resource, headers, retryCfg, priority, staleEntry, staleStatus, overrides, cacheTTLDefault, deadline, hasDeadline)
}

// DrainBackground blocks until every currently registered background
// revalidation task has settled (§4.10.2), for deterministic tests.
func (c *Client) DrainBackground() {
	c.background.Drain()
}

// fetchAndProcess performs the rate-limit admission, the fetch (with
// retry), error classification, body parsing, transform/handler hooks,
// rate-limit recording, and the cache write-back. It is the single "owner"
// attempt shared by the dedup coordinator's joiners and by background
// revalidation.
func (c *Client) fetchAndProcess(
	ctx context.Context,
	rawURL, key, origin, resource string,
	headers http.Header,
	retryCfg retry.Config,
	priority ratelimit.Priority,
	staleEntry *envelope.Entry,
	staleStatus freshness.Status,
	overrides CacheOverrides,
	cacheTTLDefault float64,
	deadline time.Time,
	hasDeadline bool,
) (*Result, error) {
	needsRecord := false
	if c.rate != nil {
		budget, err := remainingBudget(deadline, hasDeadline)
		if err != nil {
			return nil, wrapGovernorErr(err)
		}
		nr, err := c.rate.AdmitStore(ctx, resource, priority, budget, false)
		if err != nil {
			return nil, wrapGovernorErr(err)
		}
		needsRecord = nr
	}

	reqHeaders := headers.Clone()
	if reqHeaders == nil {
		reqHeaders = http.Header{}
	}
	if staleEntry != nil {
		reqHeaders = addValidators(reqHeaders, *staleEntry)
	}

	resp, data, ferr := c.fetchWithRetry(ctx, rawURL, reqHeaders, retryCfg, origin, deadline, hasDeadline)

	if ferr != nil {
		if staleEntry != nil && staleStatus == freshness.StaleIfError {
			return resultFromEntry(*staleEntry), nil
		}
		return nil, classifyError(nil, ferr, nil)
	}

	if resp.StatusCode == http.StatusNotModified && staleEntry != nil {
		refreshed := envelope.Refresh(*staleEntry, resp.Header, reqHeaders, time.Now())
		c.writeCache(ctx, key, origin, refreshed, overrides, cacheTTLDefault)
		if needsRecord {
			_ = c.rate.Record(ctx, resource, priority)
		}
		return resultFromEntry(refreshed), nil
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if staleEntry != nil && staleStatus == freshness.StaleIfError && resp.StatusCode >= 500 {
			return resultFromEntry(*staleEntry), nil
		}
		httpCtx := &HTTPErrorContext{URL: rawURL, StatusCode: resp.StatusCode, Data: data, Headers: resp.Header}
		return nil, classifyError(httpCtx, nil, c.errorHandler)
	}

	result := &Result{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Data:       data,
		Value:      parseBody(resp.StatusCode, resp.Header, data),
	}

	if c.responseTransformer != nil {
		transformed, err := c.responseTransformer(result)
		if err != nil {
			return nil, err
		}
		result = transformed
	}
	if c.responseHandler != nil {
		if err := c.responseHandler(result); err != nil {
			return nil, err
		}
	}

	if needsRecord {
		_ = c.rate.Record(ctx, resource, priority)
	}

	entry := envelope.Create(data, resp.Header, resp.StatusCode, reqHeaders, time.Now())
	if !entry.CacheControl.NoStore || boolOr(overrides.IgnoreNoStore, false) {
		c.writeCache(ctx, key, origin, entry, overrides, cacheTTLDefault)
	} else if c.cache != nil {
		_ = c.cache.Delete(ctx, key)
		c.origins.forget(origin, key)
	}

	return result, nil
}

func (c *Client) writeCache(ctx context.Context, key, origin string, entry envelope.Entry, overrides CacheOverrides, cacheTTLDefault float64) {
	if c.cache == nil {
		return
	}
	ttl := freshness.StoreTTL(entry.Metadata(), cacheTTLDefault, overrides.MinimumTTL, overrides.MaximumTTL)
	encoded, err := envelope.Encode(entry)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, encoded, ttl); err == nil {
		c.origins.record(origin, key)
	}
}

// fetchWithRetry runs the attempt loop described in §4.9: compute the next
// request, apply interceptors, fetch, apply server hints, and consult
// retryCfg for whether/how long to wait before trying again.
func (c *Client) fetchWithRetry(ctx context.Context, rawURL string, headers http.Header, retryCfg retry.Config, origin string, deadline time.Time, hasDeadline bool) (*http.Response, []byte, error) {
	attempt := 0
	for {
		attempt++

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, nil, err
		}
		req.Header = headers.Clone()

		for _, intercept := range c.requestInterceptors {
			if err := intercept(req); err != nil {
				return nil, nil, err
			}
		}

		resp, ferr := c.executeWithResilience(func() (*http.Response, error) {
			return c.transport.Fetch(ctx, req)
		})

		var status int
		var data []byte
		var serverRetryAfter time.Duration

		if ferr == nil {
			for _, intercept := range c.responseInterceptors {
				if err := intercept(resp); err != nil {
					ferr = err
				}
			}
		}

		if ferr == nil {
			status = resp.StatusCode
			serverRetryAfter = retryAfterFromHeaders(resp.Header, time.Now())
			if c.rate != nil {
				c.rate.ApplyServerHint(origin, status, resp.Header, time.Now())
			}
		}

		decision := retryCfg.Next(attempt, status, ferr, serverRetryAfter)
		if !decision.Retry {
			if ferr != nil {
				return nil, nil, ferr
			}
			data, err = readAndClose(resp.Body)
			if err != nil {
				return nil, nil, err
			}
			return resp, data, nil
		}

		if ferr == nil && resp != nil {
			_, _ = readAndClose(resp.Body)
		}
		if retryCfg.OnRetry != nil {
			retryCfg.OnRetry(attempt, decision.Delay, ferr)
		}

		wait := decision.Delay
		if hasDeadline {
			budget := time.Until(deadline)
			if budget <= 0 {
				return nil, nil, ratelimit.ErrBudgetExhausted
			}
			if wait > budget {
				wait = budget
			}
		}
		if err := sleepCtx(ctx, wait); err != nil {
			return nil, nil, err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func remainingBudget(deadline time.Time, hasDeadline bool) (time.Duration, error) {
	if !hasDeadline {
		return 0, nil
	}
	d := time.Until(deadline)
	if d <= 0 {
		return 0, ratelimit.ErrBudgetExhausted
	}
	return d, nil
}

func wrapGovernorErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ratelimit.ErrRateLimited):
		return &Error{Kind: KindRateLimited, Message: err.Error(), Cause: err}
	case errors.Is(err, ratelimit.ErrBudgetExhausted):
		return &Error{Kind: KindBudgetExhausted, Message: err.Error(), Cause: err}
	default:
		return err
	}
}

func mergeHeaders(base, override http.Header) http.Header {
	merged := base.Clone()
	if merged == nil {
		merged = http.Header{}
	}
	for k, vs := range override {
		merged[k] = vs
	}
	return merged
}

func addValidators(headers http.Header, entry envelope.Entry) http.Header {
	h := headers.Clone()
	if h == nil {
		h = http.Header{}
	}
	if entry.ETag != "" && h.Get("If-None-Match") == "" {
		h.Set("If-None-Match", entry.ETag)
	}
	if entry.LastModified != nil && h.Get("If-Modified-Since") == "" {
		h.Set("If-Modified-Since", entry.LastModified.UTC().Format(http.TimeFormat))
	}
	return h
}

func resultFromEntry(entry envelope.Entry) *Result {
	headers := http.Header{}
	if entry.ETag != "" {
		headers.Set("ETag", entry.ETag)
	}
	if entry.LastModified != nil {
		headers.Set("Last-Modified", entry.LastModified.UTC().Format(http.TimeFormat))
	}
	var v any
	if len(entry.Value) > 0 {
		_ = json.Unmarshal(entry.Value, &v)
	}
	return &Result{
		StatusCode: entry.StatusCode,
		Headers:    headers,
		Data:       []byte(entry.Value),
		Value:      v,
		FromCache:  true,
	}
}

// originAndResource splits rawURL into its origin (scheme://host[:port])
// and resource name (the last nonempty path segment, "unknown" if
// unparsable or the path is empty), per §4.10 step 1.
func originAndResource(rawURL string) (origin, resource string) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", "unknown"
	}
	origin = u.Scheme + "://" + u.Host

	trimmed := strings.Trim(u.Path, "/")
	if trimmed == "" {
		return origin, "unknown"
	}
	segments := strings.Split(trimmed, "/")
	last := segments[len(segments)-1]
	if last == "" {
		return origin, "unknown"
	}
	return origin, last
}

func retryAfterFromHeaders(h http.Header, now time.Time) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
		if secs < 0 {
			secs = 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		d := t.Sub(now)
		if d < 0 {
			d = 0
		}
		return d
	}
	return 0
}
