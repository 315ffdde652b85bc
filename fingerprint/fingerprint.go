// Package fingerprint computes the stable, deterministic digest used to key
// every cache, dedup, and rate-limit lookup in httpguard: two requests that
// are semantically the same GET must fingerprint identically regardless of
// query parameter order, and two requests that differ only by origin must
// never collide.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Null is a sentinel passed as an Extra value to mean "this parameter is
// present with a JSON null value", as distinct from simply omitting the key
// (which mirrors a JavaScript `undefined` parameter and is dropped entirely).
var Null = struct{ isNull bool }{isNull: true}

// Extra carries additional query-style parameters to fold into the
// fingerprint alongside whatever the URL's own query string already
// contains, with the coercion rules spec'd for §4.1:
//   - a value of fingerprint.Null is preserved as the literal "null"
//   - any other value is coerced to its string form (bools, ints, floats)
//   - a key simply absent from the map contributes nothing (the "undefined"
//     case), it is never encoded as an empty string
type Extra map[string]any

// Fingerprint returns the 256-bit hex digest for rawURL, optionally folding
// in extra query parameters. It never fails for a well-formed absolute URL.
func Fingerprint(rawURL string, extra Extra) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("fingerprint: parse url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("fingerprint: url %q is not absolute", rawURL)
	}

	port := u.Port()
	host := u.Hostname()
	origin := strings.ToLower(u.Scheme) + "://" + strings.ToLower(host)
	if port != "" {
		origin += ":" + port
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}

	query := normalizeQuery(u.Query(), extra)

	canonical := origin + path + "?" + query
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:]), nil
}

// normalizeQuery produces a canonical, order-independent-by-key
// representation of the combined query parameters. Within a single key,
// repeated values keep their original relative order (§4.1 rule (e));
// across keys, names are sorted for determinism (rule (a)).
func normalizeQuery(base url.Values, extra Extra) string {
	merged := make(map[string][]string, len(base)+len(extra))
	for k, vs := range base {
		merged[k] = append(merged[k], vs...)
	}
	for k, v := range extra {
		merged[k] = append(merged[k], coerce(v)...)
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		for j, v := range merged[k] {
			if j > 0 {
				b.WriteByte(',')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

// coerce turns a single Extra value into zero or one string tokens,
// implementing the undefined-omitted / null-preserved / primitive-coercion
// rules of §4.1.
func coerce(v any) []string {
	switch t := v.(type) {
	case nil:
		// A Go nil interface from a map literal means the caller explicitly
		// stored nil, which has no unambiguous JSON meaning here; treat it
		// the same as omission so callers reach for fingerprint.Null for
		// JSON null instead.
		return nil
	case string:
		return []string{t}
	case bool:
		return []string{strconv.FormatBool(t)}
	case int:
		return []string{strconv.Itoa(t)}
	case int64:
		return []string{strconv.FormatInt(t, 10)}
	case float64:
		return []string{strconv.FormatFloat(t, 'g', -1, 64)}
	default:
		if t == Null {
			return []string{"null"}
		}
		return []string{fmt.Sprintf("%v", t)}
	}
}
