package cachecontrol

import (
	"net/http"
	"testing"
)

func headers(value string) http.Header {
	h := http.Header{}
	if value != "" {
		h.Set("Cache-Control", value)
	}
	return h
}

func intPtrEquals(t *testing.T, name string, got *int, want *int) {
	t.Helper()
	switch {
	case got == nil && want == nil:
		return
	case got == nil || want == nil:
		t.Fatalf("%s: got %v, want %v", name, got, want)
	case *got != *want:
		t.Fatalf("%s: got %d, want %d", name, *got, *want)
	}
}

func TestParseEmptyHeader(t *testing.T) {
	d := Parse(headers(""))
	if d != (Directives{}) {
		t.Fatalf("expected zero-value Directives, got %+v", d)
	}
}

func TestParseBooleanDirectives(t *testing.T) {
	d := Parse(headers("no-cache, no-store, must-revalidate, proxy-revalidate, immutable, public"))
	if !d.NoCache || !d.NoStore || !d.MustRevalidate || !d.ProxyRevalidate || !d.Immutable || !d.Public {
		t.Fatalf("expected all boolean directives set, got %+v", d)
	}
}

func TestParsePrivateWinsOverPublic(t *testing.T) {
	d := Parse(headers("public, private"))
	if !d.Private {
		t.Fatal("expected Private to be set")
	}
	if d.Public {
		t.Fatal("private should clear public regardless of directive order")
	}
}

func TestParsePrivateBeforePublic(t *testing.T) {
	d := Parse(headers("private, public"))
	if d.Public {
		t.Fatal("private should win even when it appears before public")
	}
}

func TestParseMaxAge(t *testing.T) {
	d := Parse(headers("max-age=3600"))
	want := 3600
	intPtrEquals(t, "MaxAge", d.MaxAge, &want)
}

func TestParseSMaxAge(t *testing.T) {
	d := Parse(headers("s-maxage=60"))
	want := 60
	intPtrEquals(t, "SMaxAge", d.SMaxAge, &want)
}

func TestParseStaleWhileRevalidateAndStaleIfError(t *testing.T) {
	d := Parse(headers("stale-while-revalidate=30, stale-if-error=120"))
	wantSWR := 30
	wantSIE := 120
	intPtrEquals(t, "StaleWhileRevalidate", d.StaleWhileRevalidate, &wantSWR)
	intPtrEquals(t, "StaleIfError", d.StaleIfError, &wantSIE)
}

func TestParseMalformedNumericIsAbsentNotZero(t *testing.T) {
	d := Parse(headers("max-age=not-a-number"))
	intPtrEquals(t, "MaxAge", d.MaxAge, nil)
}

func TestParseMissingNumericValueIsAbsent(t *testing.T) {
	d := Parse(headers("max-age"))
	intPtrEquals(t, "MaxAge", d.MaxAge, nil)
}

func TestParseQuotedValue(t *testing.T) {
	d := Parse(headers(`max-age="120"`))
	want := 120
	intPtrEquals(t, "MaxAge", d.MaxAge, &want)
}

func TestParseDuplicateDirectiveKeepsFirst(t *testing.T) {
	d := Parse(headers("max-age=10, max-age=20"))
	want := 10
	intPtrEquals(t, "MaxAge", d.MaxAge, &want)
}

func TestParseUnknownDirectiveIgnored(t *testing.T) {
	d := Parse(headers("no-transform, no-cache"))
	if !d.NoCache {
		t.Fatal("expected no-cache to still be parsed alongside an unrecognized directive")
	}
}

func TestParseCaseInsensitiveDirectiveNames(t *testing.T) {
	d := Parse(headers("NO-CACHE, Max-Age=5"))
	if !d.NoCache {
		t.Fatal("expected directive names to be case-folded")
	}
	want := 5
	intPtrEquals(t, "MaxAge", d.MaxAge, &want)
}

func TestParseWhitespaceTolerant(t *testing.T) {
	d := Parse(headers("  no-cache ,  max-age = 42  "))
	if !d.NoCache {
		t.Fatal("expected no-cache despite surrounding whitespace")
	}
	want := 42
	intPtrEquals(t, "MaxAge", d.MaxAge, &want)
}
