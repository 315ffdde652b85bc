// Package envelope implements the cache entry wrapper described in §4.4:
// creation from a fresh response, metadata-only refresh on a 304, and a
// discriminant so a store holding legacy raw bytes can be told apart from
// one holding an envelope.
package envelope

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/haldane/httpguard/cachecontrol"
	"github.com/haldane/httpguard/freshness"
	"github.com/haldane/httpguard/vary"
)

// discriminant marks the JSON payload as an httpguard envelope. A store
// holding raw, pre-existing JSON under a key fails Decode's discriminant
// check and the orchestrator treats the lookup as a miss rather than
// misinterpreting it as cache metadata; bytes that are not JSON at all make
// Decode return an error.
const discriminant = "httpguard.cache.v1"

// Entry is the on-disk representation of a cached value plus the metadata
// needed to classify its freshness later.
type Entry struct {
	Discriminant string `json:"$httpguard"`

	Value      json.RawMessage `json:"value"`
	StatusCode int             `json:"statusCode"`

	CacheControl cachecontrol.Directives `json:"cacheControl"`
	ETag         string                  `json:"etag,omitempty"`
	LastModified *time.Time              `json:"lastModified,omitempty"`
	ResponseDate time.Time               `json:"responseDate"`
	StoredAt     time.Time               `json:"storedAt"`
	AgeHeader    int                     `json:"ageHeader"`

	Expires        *time.Time `json:"expires,omitempty"`
	ExpiresAlready bool       `json:"expiresAlready,omitempty"`

	VaryHeaders []string          `json:"varyHeaders,omitempty"`
	VaryValues  map[string]string `json:"varyValues,omitempty"`
}

// Create builds a new Entry from a successful response, capturing the
// request headers named by vary (if any) at write time (§4.5).
func Create(value []byte, respHeaders http.Header, statusCode int, reqHeaders http.Header, now time.Time) Entry {
	e := Entry{
		Discriminant: discriminant,
		Value:        json.RawMessage(value),
		StatusCode:   statusCode,
		CacheControl: cachecontrol.Parse(respHeaders),
		ETag:         respHeaders.Get("ETag"),
		ResponseDate: resolveDate(respHeaders, now),
		StoredAt:     now,
		AgeHeader:    parseAge(respHeaders),
	}

	if lm := respHeaders.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			e.LastModified = &t
		}
	}

	if exp := respHeaders.Get("Expires"); exp != "" {
		if strings.TrimSpace(exp) == "0" {
			e.ExpiresAlready = true
		} else if t, err := http.ParseTime(exp); err == nil {
			e.Expires = &t
		} else {
			e.ExpiresAlready = true
		}
	}

	if names := vary.FieldNames(respHeaders); len(names) > 0 && reqHeaders != nil {
		e.VaryHeaders = names
		e.VaryValues = vary.Capture(names, reqHeaders)
	}

	return e
}

// Refresh applies a 304 response's headers onto an existing entry. The
// value and status code are never touched; only metadata the 304 carried is
// overwritten, and storedAt/responseDate are reset to now (§4.4).
func Refresh(existing Entry, respHeaders http.Header, reqHeaders http.Header, now time.Time) Entry {
	refreshed := existing
	refreshed.ResponseDate = resolveDate(respHeaders, now)
	refreshed.StoredAt = now

	if respHeaders.Get("Age") != "" {
		refreshed.AgeHeader = parseAge(respHeaders)
	}
	if respHeaders.Get("Cache-Control") != "" {
		refreshed.CacheControl = cachecontrol.Parse(respHeaders)
	}

	if etag := respHeaders.Get("ETag"); etag != "" {
		refreshed.ETag = etag
	}
	if lm := respHeaders.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			refreshed.LastModified = &t
		}
	}

	if exp := respHeaders.Get("Expires"); exp != "" {
		refreshed.Expires = nil
		refreshed.ExpiresAlready = false
		if strings.TrimSpace(exp) == "0" {
			refreshed.ExpiresAlready = true
		} else if t, err := http.ParseTime(exp); err == nil {
			refreshed.Expires = &t
		} else {
			refreshed.ExpiresAlready = true
		}
	}

	if names := vary.FieldNames(respHeaders); len(names) > 0 && reqHeaders != nil {
		refreshed.VaryHeaders = names
		refreshed.VaryValues = vary.Capture(names, reqHeaders)
	}

	return refreshed
}

// Metadata projects an Entry into the freshness engine's input shape.
func (e Entry) Metadata() freshness.Metadata {
	return freshness.Metadata{
		CacheControl:   e.CacheControl,
		ResponseDate:   e.ResponseDate,
		ResponseTime:   e.StoredAt,
		AgeHeader:      e.AgeHeader,
		Expires:        e.Expires,
		ExpiresAlready: e.ExpiresAlready,
		LastModified:   e.LastModified,
	}
}

// Encode serializes the entry for storage.
func Encode(e Entry) ([]byte, error) {
	return json.Marshal(e)
}

// Decode deserializes a stored entry. ok is false (with a nil error) when
// the bytes do not carry the httpguard discriminant, meaning the store
// holds a legacy raw value rather than an envelope.
func Decode(raw []byte) (Entry, bool, error) {
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry{}, false, err
	}
	if e.Discriminant != discriminant {
		return Entry{}, false, nil
	}
	return e, true, nil
}

func resolveDate(headers http.Header, fallback time.Time) time.Time {
	if d := headers.Get("Date"); d != "" {
		if t, err := http.ParseTime(d); err == nil {
			return t
		}
	}
	return fallback
}

func parseAge(headers http.Header) int {
	v := headers.Get("Age")
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
