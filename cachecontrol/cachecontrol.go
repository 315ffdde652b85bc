// Package cachecontrol parses the Cache-Control response header into the
// directive record used by the freshness engine (§4.2).
package cachecontrol

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/haldane/httpguard/internal/htlog"
)

// Directives holds the parsed boolean and integer Cache-Control directives.
// A nil *int field means the directive was absent or malformed, never zero;
// callers must not confuse "absent" with "present and zero".
type Directives struct {
	NoCache        bool
	NoStore        bool
	MustRevalidate bool
	ProxyRevalidate bool
	Public         bool
	Private        bool
	Immutable      bool

	MaxAge              *int
	SMaxAge             *int
	StaleWhileRevalidate *int
	StaleIfError        *int
}

// Parse reads the Cache-Control header from headers and returns the parsed
// directive record. An absent or empty header yields a zeroed Directives.
// Unknown directives are ignored; malformed numeric directives are dropped
// (never coerced to zero), matching §4.2.
func Parse(headers http.Header) Directives {
	return ParseLogger(headers, htlog.Get())
}

// ParseLogger is Parse with an explicit logger, mirroring the teacher's
// parseCacheControl(headers, log) signature for call sites that already
// carry a request-scoped logger.
func ParseLogger(headers http.Header, log *slog.Logger) Directives {
	var d Directives
	raw := headers.Get("Cache-Control")
	if raw == "" {
		return d
	}

	seen := make(map[string]bool)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		var name, value string
		if idx := strings.IndexByte(part, '='); idx >= 0 {
			name = strings.TrimSpace(part[:idx])
			value = strings.TrimSpace(part[idx+1:])
			value = strings.Trim(value, `"`)
		} else {
			name = part
		}
		name = strings.ToLower(name)

		if seen[name] {
			log.Debug("duplicate cache-control directive, ignoring repeat", "directive", name)
			continue
		}
		seen[name] = true

		applyDirective(&d, name, value, log)
	}

	if d.Private {
		d.Public = false
	}

	return d
}

func applyDirective(d *Directives, name, value string, log *slog.Logger) {
	switch name {
	case "no-cache":
		d.NoCache = true
	case "no-store":
		d.NoStore = true
	case "must-revalidate":
		d.MustRevalidate = true
	case "proxy-revalidate":
		d.ProxyRevalidate = true
	case "public":
		d.Public = true
	case "private":
		d.Private = true
	case "immutable":
		d.Immutable = true
	case "max-age":
		d.MaxAge = parseSeconds(value, name, log)
	case "s-maxage":
		d.SMaxAge = parseSeconds(value, name, log)
	case "stale-while-revalidate":
		d.StaleWhileRevalidate = parseSeconds(value, name, log)
	case "stale-if-error":
		d.StaleIfError = parseSeconds(value, name, log)
	default:
		// unrecognized directive, silently ignored per §4.2
	}
}

// parseSeconds returns nil (absent, not zero) for any malformed numeric value.
func parseSeconds(value, directive string, log *slog.Logger) *int {
	if value == "" {
		log.Debug("cache-control directive missing numeric value, ignoring", "directive", directive)
		return nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Debug("cache-control directive has non-numeric value, ignoring", "directive", directive, "value", value)
		return nil
	}
	return &n
}
