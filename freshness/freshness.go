// Package freshness implements the RFC 9111 age and freshness-lifetime math
// described in §4.3: a pure function of (metadata, now) with no I/O, so it
// stays trivially testable against fixed clocks.
package freshness

import (
	"math"
	"time"

	"github.com/haldane/httpguard/cachecontrol"
)

// Metadata is the subset of a cache entry's fields the freshness engine
// needs. ResponseTime is when the client received the response (used as the
// Date fallback and as the anchor for resident time); ResponseDate is the
// value of the response's Date header once resolved.
type Metadata struct {
	CacheControl cachecontrol.Directives
	ResponseDate time.Time
	ResponseTime time.Time
	AgeHeader    int

	// Expires is nil when the header was absent. ExpiresAlready is true when
	// the header was present but is the literal "0" form some origins send or
	// cannot be parsed as a date; any parseable date, past or future, is held
	// in Expires instead.
	Expires        *time.Time
	ExpiresAlready bool

	// LastModified is nil when the header was absent.
	LastModified *time.Time
}

// Status is the outcome of classifying a cache entry's freshness.
type Status int

const (
	Fresh Status = iota
	NoCache
	MustRevalidate
	StaleWhileRevalidate
	StaleIfError
	Stale
)

func (s Status) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case NoCache:
		return "no-cache"
	case MustRevalidate:
		return "must-revalidate"
	case StaleWhileRevalidate:
		return "stale-while-revalidate"
	case StaleIfError:
		return "stale-if-error"
	case Stale:
		return "stale"
	default:
		return "unknown"
	}
}

// ApparentAge is max(0, (responseTime - responseDate)) in seconds.
func ApparentAge(md Metadata) float64 {
	return math.Max(0, md.ResponseTime.Sub(md.ResponseDate).Seconds())
}

// CorrectedInitialAge is max(apparentAge, ageHeader).
func CorrectedInitialAge(md Metadata) float64 {
	return math.Max(ApparentAge(md), float64(md.AgeHeader))
}

// ResidentTime is (now - responseTime) in seconds.
func ResidentTime(md Metadata, now time.Time) float64 {
	return now.Sub(md.ResponseTime).Seconds()
}

// CurrentAge is correctedInitialAge + residentTime, per §4.3.
func CurrentAge(md Metadata, now time.Time) float64 {
	return CorrectedInitialAge(md) + ResidentTime(md, now)
}

// Lifetime computes the freshness lifetime in seconds following the priority
// order of §4.3: max-age, then Expires, then the heuristic 10%-of-age rule
// based on Last-Modified, then zero.
func Lifetime(md Metadata) float64 {
	if md.CacheControl.MaxAge != nil {
		return float64(*md.CacheControl.MaxAge)
	}

	if md.ExpiresAlready {
		return 0
	}
	if md.Expires != nil {
		return math.Max(0, md.Expires.Sub(md.ResponseDate).Seconds())
	}

	if md.LastModified != nil && md.LastModified.Before(md.ResponseDate) {
		return math.Floor(0.1 * md.ResponseDate.Sub(*md.LastModified).Seconds())
	}

	return 0
}

// Classify determines the freshness status of an entry at time now.
// ignoreNoCache lets a caller (via CacheOverrides.IgnoreNoCache) treat a
// no-cache entry as fresh instead of forcing revalidation.
func Classify(md Metadata, now time.Time, ignoreNoCache bool) Status {
	if md.CacheControl.NoCache && !ignoreNoCache {
		return NoCache
	}

	lifetime := Lifetime(md)
	age := CurrentAge(md, now)
	staleness := age - lifetime

	if lifetime > age {
		return Fresh
	}

	if md.CacheControl.MustRevalidate {
		return MustRevalidate
	}

	if swr := md.CacheControl.StaleWhileRevalidate; swr != nil && staleness <= float64(*swr) {
		return StaleWhileRevalidate
	}

	if sie := md.CacheControl.StaleIfError; sie != nil && staleness <= float64(*sie) {
		return StaleIfError
	}

	return Stale
}

// StoreTTL computes how many seconds a written entry should live in the
// backing store, per §4.3: lifetime plus the larger of stale-while-revalidate
// and stale-if-error, except that when max-age is absent and the computed
// lifetime is zero, defaultTTL is used instead (otherwise a heuristic-free
// response with no explicit freshness signal would never be cached at all).
// minTTL/maxTTL, when non-nil, clamp the final result.
func StoreTTL(md Metadata, defaultTTL float64, minTTL, maxTTL *float64) float64 {
	lifetime := Lifetime(md)

	extra := 0.0
	if md.CacheControl.StaleWhileRevalidate != nil {
		extra = math.Max(extra, float64(*md.CacheControl.StaleWhileRevalidate))
	}
	if md.CacheControl.StaleIfError != nil {
		extra = math.Max(extra, float64(*md.CacheControl.StaleIfError))
	}

	ttl := lifetime + extra
	if md.CacheControl.MaxAge == nil && lifetime == 0 {
		ttl = defaultTTL
	}

	if minTTL != nil && ttl < *minTTL {
		ttl = *minTTL
	}
	if maxTTL != nil && ttl > *maxTTL {
		ttl = *maxTTL
	}

	return ttl
}
