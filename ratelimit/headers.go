package ratelimit

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// HeaderNames lets a caller add extra header names to check for each
// server-hint family (§6); user-supplied names are prepended to the
// defaults below and are always matched case-insensitively.
type HeaderNames struct {
	RetryAfter []string
	Limit      []string
	Remaining  []string
	Reset      []string
	Combined   []string
}

func (h HeaderNames) retryAfter() []string { return append(append([]string{}, h.RetryAfter...), "Retry-After") }
func (h HeaderNames) remaining() []string {
	return append(append([]string{}, h.Remaining...), "RateLimit-Remaining", "X-RateLimit-Remaining")
}
func (h HeaderNames) reset() []string {
	return append(append([]string{}, h.Reset...), "RateLimit-Reset", "X-RateLimit-Reset")
}
func (h HeaderNames) combined() []string { return append(append([]string{}, h.Combined...), "RateLimit") }

// ServerHint is the parsed outcome of applying §4.7's server-advertised
// cooldown rules to a response.
type ServerHint struct {
	Engage  bool
	WaitFor time.Duration
}

// ParseServerHint inspects status and headers and decides whether to
// engage a cooldown, per §4.7: a Retry-After always engages one; a Reset
// only engages one when paired with a 429/503 status or a non-positive
// Remaining count.
func ParseServerHint(status int, headers http.Header, names HeaderNames, now time.Time) ServerHint {
	if d, ok := retryAfterDelay(headers, names, now); ok {
		return ServerHint{Engage: true, WaitFor: d}
	}

	resetAt, hasReset := resetDelay(headers, names, now)
	remaining, hasRemaining := remainingCount(headers, names)

	combinedReset, combinedOK := combinedHint(headers, names)
	if combinedOK {
		hasReset = true
		resetAt = combinedReset
	}

	if !hasReset {
		return ServerHint{}
	}

	statusSuggestsLimited := status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable
	remainingExhausted := hasRemaining && remaining <= 0

	if statusSuggestsLimited || remainingExhausted {
		return ServerHint{Engage: true, WaitFor: resetAt}
	}
	return ServerHint{}
}

func retryAfterDelay(headers http.Header, names HeaderNames, now time.Time) (time.Duration, bool) {
	for _, name := range names.retryAfter() {
		v := headers.Get(name)
		if v == "" {
			continue
		}
		if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			if secs < 0 {
				secs = 0
			}
			return time.Duration(secs) * time.Second, true
		}
		if t, err := http.ParseTime(v); err == nil {
			d := t.Sub(now)
			if d < 0 {
				d = 0
			}
			return d, true
		}
	}
	return 0, false
}

func resetDelay(headers http.Header, names HeaderNames, now time.Time) (time.Duration, bool) {
	for _, name := range names.reset() {
		v := headers.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			continue
		}
		// Heuristic from §4.7: values far enough in the future to be an
		// absolute epoch-seconds timestamp are treated as such; small
		// values are a relative second count.
		nowUnix := now.Unix()
		if n > nowUnix+1 {
			d := time.Duration(n-nowUnix) * time.Second
			if d < 0 {
				d = 0
			}
			return d, true
		}
		if n < 0 {
			n = 0
		}
		return time.Duration(n) * time.Second, true
	}
	return 0, false
}

func remainingCount(headers http.Header, names HeaderNames) (int, bool) {
	for _, name := range names.remaining() {
		v := headers.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n < 0 {
			continue
		}
		return n, true
	}
	return 0, false
}

// combinedHint parses the IETF "RateLimit: r=<n>;t=<n>" header family,
// returning a delay derived from t (seconds until reset).
func combinedHint(headers http.Header, names HeaderNames) (time.Duration, bool) {
	for _, name := range names.combined() {
		v := headers.Get(name)
		if v == "" {
			continue
		}
		for _, part := range strings.Split(v, ";") {
			part = strings.TrimSpace(part)
			kv := strings.SplitN(part, "=", 2)
			if len(kv) != 2 {
				continue
			}
			if strings.EqualFold(strings.TrimSpace(kv[0]), "t") {
				n, err := strconv.Atoi(strings.TrimSpace(kv[1]))
				if err != nil || n < 0 {
					continue
				}
				return time.Duration(n) * time.Second, true
			}
		}
	}
	return 0, false
}
