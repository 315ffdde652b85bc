package ratelimit

import (
	"net/http"
	"strconv"
	"testing"
	"time"
)

func TestParseServerHintRetryAfterSeconds(t *testing.T) {
	h := http.Header{}
	h.Set("Retry-After", "30")
	hint := ParseServerHint(http.StatusTooManyRequests, h, HeaderNames{}, time.Now())
	if !hint.Engage || hint.WaitFor != 30*time.Second {
		t.Fatalf("expected 30s engage, got %+v", hint)
	}
}

func TestParseServerHintRetryAfterHTTPDate(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	future := now.Add(45 * time.Second)
	h := http.Header{}
	h.Set("Retry-After", future.UTC().Format(http.TimeFormat))
	hint := ParseServerHint(http.StatusServiceUnavailable, h, HeaderNames{}, now)
	if !hint.Engage || hint.WaitFor != 45*time.Second {
		t.Fatalf("expected ~45s engage, got %+v", hint)
	}
}

func TestParseServerHintRetryAfterAlwaysEngages(t *testing.T) {
	h := http.Header{}
	h.Set("Retry-After", "10")
	hint := ParseServerHint(http.StatusOK, h, HeaderNames{}, time.Now())
	if !hint.Engage {
		t.Fatal("expected Retry-After to engage regardless of status")
	}
}

func TestParseServerHintResetRequiresLimitingStatus(t *testing.T) {
	h := http.Header{}
	h.Set("RateLimit-Reset", "10")
	hint := ParseServerHint(http.StatusOK, h, HeaderNames{}, time.Now())
	if hint.Engage {
		t.Fatal("expected a bare reset header with a 200 and no exhausted remaining to not engage")
	}

	hint = ParseServerHint(http.StatusTooManyRequests, h, HeaderNames{}, time.Now())
	if !hint.Engage {
		t.Fatal("expected reset + 429 to engage")
	}
}

func TestParseServerHintResetWithExhaustedRemaining(t *testing.T) {
	h := http.Header{}
	h.Set("RateLimit-Reset", "10")
	h.Set("RateLimit-Remaining", "0")
	hint := ParseServerHint(http.StatusOK, h, HeaderNames{}, time.Now())
	if !hint.Engage {
		t.Fatal("expected exhausted remaining to engage even on a 200")
	}
}

func TestParseServerHintResetAbsoluteEpoch(t *testing.T) {
	now := time.Now()
	h := http.Header{}
	h.Set("RateLimit-Reset", strconv.FormatInt(now.Add(time.Minute).Unix(), 10))
	h.Set("RateLimit-Remaining", "0")
	hint := ParseServerHint(http.StatusOK, h, HeaderNames{}, now)
	if !hint.Engage {
		t.Fatal("expected absolute-epoch reset to engage with exhausted remaining")
	}
	if hint.WaitFor <= 0 || hint.WaitFor > time.Minute+time.Second {
		t.Fatalf("expected wait close to 60s, got %v", hint.WaitFor)
	}
}

func TestParseServerHintCombinedHeader(t *testing.T) {
	h := http.Header{}
	h.Set("RateLimit", "r=0;t=20")
	hint := ParseServerHint(http.StatusTooManyRequests, h, HeaderNames{}, time.Now())
	if !hint.Engage || hint.WaitFor != 20*time.Second {
		t.Fatalf("expected combined header to engage with 20s, got %+v", hint)
	}
}

func TestParseServerHintNoHeadersNoEngage(t *testing.T) {
	hint := ParseServerHint(http.StatusOK, http.Header{}, HeaderNames{}, time.Now())
	if hint.Engage {
		t.Fatal("expected no hint when no relevant headers are present")
	}
}

func TestParseServerHintCustomHeaderNames(t *testing.T) {
	h := http.Header{}
	h.Set("X-Custom-Retry-After", "5")
	names := HeaderNames{RetryAfter: []string{"X-Custom-Retry-After"}}
	hint := ParseServerHint(http.StatusOK, h, names, time.Now())
	if !hint.Engage || hint.WaitFor != 5*time.Second {
		t.Fatalf("expected custom header name to be recognized, got %+v", hint)
	}
}
