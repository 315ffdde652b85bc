package httpguard

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
)

// parseBody implements the §6 content-negotiation rules: 204/205 and empty
// bodies parse to nil; a JSON content type or a body that looks like JSON
// after leading whitespace is parsed as JSON (falling back to raw text on
// failure); everything else is raw text.
func parseBody(statusCode int, headers http.Header, data []byte) any {
	if statusCode == http.StatusNoContent || statusCode == http.StatusResetContent {
		return nil
	}
	if len(data) == 0 {
		return nil
	}

	contentType := headers.Get("Content-Type")
	looksJSON := strings.Contains(contentType, "application/json") || strings.HasSuffix(strings.Split(contentType, ";")[0], "+json")

	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if !looksJSON && len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		looksJSON = true
	}

	if looksJSON {
		var v any
		if err := json.Unmarshal(data, &v); err == nil {
			return v
		}
	}

	return string(data)
}

// DecodeJSON re-encodes a Result's parsed Value and decodes it into T,
// giving callers the generics-based `get<T>(url, options) -> T` ergonomics
// described in §4.10 on top of a Client.Get that returns a dynamic Result.
func DecodeJSON[T any](r *Result) (T, error) {
	var out T
	raw, err := json.Marshal(r.Value)
	if err != nil {
		return out, &Error{Kind: KindSerialization, Message: err.Error(), Cause: err}
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, &Error{Kind: KindSerialization, Message: err.Error(), Cause: err}
	}
	return out, nil
}
