package httpguard

import (
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

// ResilienceConfig is an optional outer layer around the fetch step,
// independent of retry.Config: where retry.Config implements the exact
// §4.9 backoff/jitter/Retry-After formulas, ResilienceConfig's circuit
// breaker protects the client from hammering an origin that retry.Config
// alone would keep retrying against.
type ResilienceConfig struct {
	// RetryPolicy, if set, wraps each transport call with a failsafe-go
	// retry in addition to the bespoke retry.Config loop; it runs inside
	// every attempt of that loop. Most callers should leave this nil and use
	// retry.Config instead.
	RetryPolicy retrypolicy.RetryPolicy[*http.Response]

	// CircuitBreaker, if set, opens after repeated fetch failures and
	// short-circuits further attempts until its delay elapses.
	CircuitBreaker circuitbreaker.CircuitBreaker[*http.Response]
}

// CircuitBreakerBuilder returns a pre-configured circuit breaker builder:
// opens on network errors or 5xx responses after 5 consecutive failures,
// half-opens after 60s, and requires 2 consecutive successes to close.
func CircuitBreakerBuilder() circuitbreaker.Builder[*http.Response] {
	return circuitbreaker.NewBuilder[*http.Response]().
		HandleIf(func(r *http.Response, err error) bool {
			if err != nil {
				return true
			}
			return r != nil && r.StatusCode >= 500
		}).
		WithFailureThreshold(5).
		WithSuccessThreshold(2).
		WithDelay(60 * time.Second)
}

// executeWithResilience wraps fn with the configured circuit breaker and/or
// failsafe retry policy, if any. A nil resilience config calls fn directly.
func (c *Client) executeWithResilience(fn func() (*http.Response, error)) (*http.Response, error) {
	if c.resilience == nil {
		return fn()
	}

	var policies []failsafe.Policy[*http.Response]
	if c.resilience.RetryPolicy != nil {
		policies = append(policies, c.resilience.RetryPolicy)
	}
	if c.resilience.CircuitBreaker != nil {
		policies = append(policies, c.resilience.CircuitBreaker)
	}
	if len(policies) == 0 {
		return fn()
	}

	return failsafe.With(policies...).Get(fn)
}
