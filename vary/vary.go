// Package vary implements the §4.5 Vary header matcher: it decides whether
// a stored entry's captured request-header values still match the current
// request before the entry is considered usable at all.
package vary

import (
	"net/http"
	"net/textproto"
	"strings"
)

// FieldNames parses a Vary response header into a lowercased field-name
// list. A bare "*" is returned verbatim so callers can special-case it.
func FieldNames(headers http.Header) []string {
	raw := headers.Get("Vary")
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		names = append(names, strings.ToLower(p))
	}
	return names
}

// Capture records the values of the named request headers at write time, so
// they can later be compared against a new request's headers.
func Capture(names []string, reqHeaders http.Header) map[string]string {
	values := make(map[string]string, len(names))
	for _, name := range names {
		if name == "*" {
			continue
		}
		values[name] = reqHeaders.Get(textproto.CanonicalMIMEHeaderKey(name))
	}
	return values
}

// Matches reports whether a stored entry (identified by the Vary field
// names captured at write time and their recorded values) still matches
// the current request's headers. A "*" entry in names never matches (per
// §4.5, since it means the response could vary on anything). Both values
// being absent counts as a match.
func Matches(names []string, captured map[string]string, reqHeaders http.Header) bool {
	for _, name := range names {
		if name == "*" {
			return false
		}
	}
	for _, name := range names {
		want := captured[name]
		got := reqHeaders.Get(textproto.CanonicalMIMEHeaderKey(name))
		if want != got {
			return false
		}
	}
	return true
}
