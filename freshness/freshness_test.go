package freshness

import (
	"testing"
	"time"

	"github.com/haldane/httpguard/cachecontrol"
)

func intPtr(n int) *int { return &n }

func floatPtr(f float64) *float64 { return &f }

func TestApparentAgeClampsToZero(t *testing.T) {
	now := time.Now()
	md := Metadata{ResponseDate: now, ResponseTime: now.Add(-5 * time.Second)}
	if got := ApparentAge(md); got != 0 {
		t.Fatalf("expected 0 when response predates date, got %v", got)
	}

	md = Metadata{ResponseDate: now.Add(-5 * time.Second), ResponseTime: now}
	if got := ApparentAge(md); got != 5 {
		t.Fatalf("expected 5, got %v", got)
	}
}

func TestCorrectedInitialAgeTakesMax(t *testing.T) {
	now := time.Now()
	md := Metadata{ResponseDate: now.Add(-2 * time.Second), ResponseTime: now, AgeHeader: 10}
	if got := CorrectedInitialAge(md); got != 10 {
		t.Fatalf("expected age header to win, got %v", got)
	}

	md = Metadata{ResponseDate: now.Add(-20 * time.Second), ResponseTime: now, AgeHeader: 10}
	if got := CorrectedInitialAge(md); got != 20 {
		t.Fatalf("expected apparent age to win, got %v", got)
	}
}

func TestCurrentAgeAddsResidentTime(t *testing.T) {
	responseTime := time.Now().Add(-30 * time.Second)
	md := Metadata{ResponseDate: responseTime, ResponseTime: responseTime, AgeHeader: 0}
	now := responseTime.Add(30 * time.Second)
	if got := CurrentAge(md, now); got != 30 {
		t.Fatalf("expected 30, got %v", got)
	}
}

func TestLifetimeMaxAgeWins(t *testing.T) {
	md := Metadata{
		CacheControl: cachecontrol.Directives{MaxAge: intPtr(100)},
		Expires:      timePtr(time.Now().Add(time.Hour)),
	}
	if got := Lifetime(md); got != 100 {
		t.Fatalf("expected max-age to take priority, got %v", got)
	}
}

func timePtr(t time.Time) *time.Time { return &t }

func TestLifetimeExpiresAlreadyIsZero(t *testing.T) {
	md := Metadata{ExpiresAlready: true}
	if got := Lifetime(md); got != 0 {
		t.Fatalf("expected 0 for already-expired Expires header, got %v", got)
	}
}

func TestLifetimeFromExpires(t *testing.T) {
	responseDate := time.Now()
	md := Metadata{
		ResponseDate: responseDate,
		Expires:      timePtr(responseDate.Add(60 * time.Second)),
	}
	if got := Lifetime(md); got != 60 {
		t.Fatalf("expected 60, got %v", got)
	}
}

func TestLifetimeHeuristicFromLastModified(t *testing.T) {
	responseDate := time.Now()
	md := Metadata{
		ResponseDate: responseDate,
		LastModified: timePtr(responseDate.Add(-100 * time.Second)),
	}
	if got := Lifetime(md); got != 10 {
		t.Fatalf("expected 10%% heuristic of 100s to be 10, got %v", got)
	}
}

func TestLifetimeDefaultsToZero(t *testing.T) {
	if got := Lifetime(Metadata{}); got != 0 {
		t.Fatalf("expected 0 with no freshness signal, got %v", got)
	}
}

func TestClassifyNoCache(t *testing.T) {
	now := time.Now()
	md := Metadata{
		CacheControl: cachecontrol.Directives{NoCache: true, MaxAge: intPtr(100)},
		ResponseDate: now,
		ResponseTime: now,
	}
	if got := Classify(md, now, false); got != NoCache {
		t.Fatalf("expected NoCache, got %v", got)
	}
	if got := Classify(md, now, true); got != Fresh {
		t.Fatalf("expected ignoreNoCache to bypass NoCache classification, got %v", got)
	}
}

func TestClassifyFreshWithinLifetime(t *testing.T) {
	now := time.Now()
	md := Metadata{
		CacheControl: cachecontrol.Directives{MaxAge: intPtr(100)},
		ResponseDate: now,
		ResponseTime: now,
	}
	if got := Classify(md, now.Add(50*time.Second), false); got != Fresh {
		t.Fatalf("expected Fresh, got %v", got)
	}
}

func TestClassifyMustRevalidateAfterExpiry(t *testing.T) {
	now := time.Now()
	md := Metadata{
		CacheControl: cachecontrol.Directives{MaxAge: intPtr(10), MustRevalidate: true},
		ResponseDate: now,
		ResponseTime: now,
	}
	if got := Classify(md, now.Add(20*time.Second), false); got != MustRevalidate {
		t.Fatalf("expected MustRevalidate, got %v", got)
	}
}

func TestClassifyStaleWhileRevalidateWindow(t *testing.T) {
	now := time.Now()
	md := Metadata{
		CacheControl: cachecontrol.Directives{MaxAge: intPtr(10), StaleWhileRevalidate: intPtr(30)},
		ResponseDate: now,
		ResponseTime: now,
	}
	if got := Classify(md, now.Add(20*time.Second), false); got != StaleWhileRevalidate {
		t.Fatalf("expected StaleWhileRevalidate, got %v", got)
	}
	if got := Classify(md, now.Add(100*time.Second), false); got != Stale {
		t.Fatalf("expected Stale once past the SWR window, got %v", got)
	}
}

func TestClassifyStaleIfErrorWindow(t *testing.T) {
	now := time.Now()
	md := Metadata{
		CacheControl: cachecontrol.Directives{MaxAge: intPtr(10), StaleIfError: intPtr(40)},
		ResponseDate: now,
		ResponseTime: now,
	}
	if got := Classify(md, now.Add(30*time.Second), false); got != StaleIfError {
		t.Fatalf("expected StaleIfError, got %v", got)
	}
}

func TestClassifyStaleWithNoExtensions(t *testing.T) {
	now := time.Now()
	md := Metadata{
		CacheControl: cachecontrol.Directives{MaxAge: intPtr(10)},
		ResponseDate: now,
		ResponseTime: now,
	}
	if got := Classify(md, now.Add(20*time.Second), false); got != Stale {
		t.Fatalf("expected Stale, got %v", got)
	}
}

func TestStatusString(t *testing.T) {
	cases := map[Status]string{
		Fresh:                "fresh",
		NoCache:              "no-cache",
		MustRevalidate:       "must-revalidate",
		StaleWhileRevalidate: "stale-while-revalidate",
		StaleIfError:         "stale-if-error",
		Stale:                "stale",
		Status(99):           "unknown",
	}
	for status, want := range cases {
		if got := status.String(); got != want {
			t.Errorf("Status(%d).String() = %q, want %q", status, got, want)
		}
	}
}

func TestStoreTTLUsesDefaultWhenLifetimeZero(t *testing.T) {
	got := StoreTTL(Metadata{}, 300, nil, nil)
	if got != 300 {
		t.Fatalf("expected default TTL 300, got %v", got)
	}
}

func TestStoreTTLExplicitZeroMaxAgeIsNotDefaulted(t *testing.T) {
	md := Metadata{CacheControl: cachecontrol.Directives{MaxAge: intPtr(0)}}
	got := StoreTTL(md, 300, nil, nil)
	if got != 0 {
		t.Fatalf("expected explicit max-age=0 to stay 0 (not fall back to default), got %v", got)
	}
}

func TestStoreTTLAddsStaleExtensions(t *testing.T) {
	md := Metadata{CacheControl: cachecontrol.Directives{
		MaxAge:               intPtr(100),
		StaleWhileRevalidate: intPtr(30),
		StaleIfError:         intPtr(60),
	}}
	got := StoreTTL(md, 300, nil, nil)
	if got != 160 {
		t.Fatalf("expected lifetime + max(swr, sie) = 160, got %v", got)
	}
}

func TestStoreTTLClampsToMinAndMax(t *testing.T) {
	md := Metadata{CacheControl: cachecontrol.Directives{MaxAge: intPtr(10)}}
	if got := StoreTTL(md, 300, floatPtr(60), nil); got != 60 {
		t.Fatalf("expected clamp to min 60, got %v", got)
	}
	md = Metadata{CacheControl: cachecontrol.Directives{MaxAge: intPtr(1000)}}
	if got := StoreTTL(md, 300, nil, floatPtr(500)); got != 500 {
		t.Fatalf("expected clamp to max 500, got %v", got)
	}
}
