// Package retry implements the §4.9 retry policy: exponential backoff with
// jitter, wrapping the fetch attempt only (never the cache or dedup
// phases), with the server's own Retry-After always taking precedence over
// a shorter computed delay.
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"time"
)

// Jitter selects how the computed backoff delay is randomized.
type Jitter string

const (
	JitterFull Jitter = "full"
	JitterNone Jitter = "none"
)

// defaultRetryableStatus is the status-code set retried when no custom
// RetryCondition is configured.
var defaultRetryableStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// Condition decides whether a given outcome should be retried. status is
// zero when err is a network failure rather than an HTTP response.
type Condition func(status int, err error) bool

// Config holds the retry policy parameters. A zero-value Config disables
// retry entirely (MaxRetries defaults to 0).
type Config struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	MaxRetries int
	Jitter     Jitter

	RetryCondition Condition
	OnRetry        func(attempt int, delay time.Duration, err error)
}

// Decision is the outcome of evaluating whether attempt number `attempt`
// (1-based, the attempt that just failed) should be retried.
type Decision struct {
	Retry bool
	Delay time.Duration
}

// Next evaluates the outcome of one attempt and decides whether to retry.
// serverRetryAfter is the delay parsed from the failed response's
// Retry-After header, if any (zero if absent); per §4.9/§9 it always wins
// over a shorter computed delay, never a smaller one.
func (c Config) Next(attempt int, status int, err error, serverRetryAfter time.Duration) Decision {
	if c.MaxRetries <= 0 || attempt >= c.MaxRetries {
		return Decision{}
	}
	if errors.Is(err, context.Canceled) {
		return Decision{}
	}
	if !c.retryable(status, err) {
		return Decision{}
	}

	delay := c.delay(attempt, serverRetryAfter)
	return Decision{Retry: true, Delay: delay}
}

func (c Config) retryable(status int, err error) bool {
	if c.RetryCondition != nil {
		return c.RetryCondition(status, err)
	}
	if err != nil {
		return true
	}
	return defaultRetryableStatus[status]
}

// delay computes min(baseDelay*2^(attempt-1), maxDelay), applies jitter,
// and then takes the larger of that and serverRetryAfter.
func (c Config) delay(attempt int, serverRetryAfter time.Duration) time.Duration {
	base := c.BaseDelay
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	max := c.MaxDelay
	if max <= 0 {
		max = 10 * time.Second
	}

	capped := base * time.Duration(1<<uint(attempt-1))
	if capped > max || capped <= 0 {
		capped = max
	}

	computed := capped
	if c.Jitter == JitterFull && capped > 0 {
		computed = time.Duration(rand.Int64N(int64(capped)))
	}

	if serverRetryAfter > computed {
		return serverRetryAfter
	}
	return computed
}
