package httpguard

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a returned error per §7.
type Kind string

const (
	KindHTTP            Kind = "http"
	KindNetwork         Kind = "network"
	KindRateLimited     Kind = "rateLimited"
	KindBudgetExhausted Kind = "budgetExhausted"
	KindSerialization   Kind = "serialization"
	KindHandlerThrew    Kind = "handlerThrew"
	KindAbort           Kind = "abort"
)

// Error is the default domain error shape described in §7: a message, an
// optional HTTP status code, and (for HTTP errors) the response body and
// headers. Abort errors are never wrapped in this type — ctx.Err() is
// returned as-is, unwrapped, per §7's propagation policy.
type Error struct {
	Kind       Kind
	Message    string
	StatusCode int
	Data       []byte
	Headers    http.Header
	Cause      error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("httpguard: %s (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("httpguard: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// HTTPErrorContext is handed to a configured ErrorHandler for a non-2xx
// response, giving it the chance to produce a custom error (§4.10.1).
type HTTPErrorContext struct {
	URL        string
	StatusCode int
	Data       []byte
	Headers    http.Header
}

// ErrorHandler customizes how HTTP error responses are turned into errors.
// Returning nil falls back to the default *Error.
type ErrorHandler func(*HTTPErrorContext) error

// classifyError implements §4.10.1: a previously-constructed *Error (or an
// aborted context) propagates unchanged; an HTTP error context goes to the
// configured handler or the default wrapping; anything else becomes a
// network-kind error. errorHandler is never consulted for network failures
// or for an aborted context.
func classifyError(httpCtx *HTTPErrorContext, err error, handler ErrorHandler) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	if httpCtx != nil {
		if handler != nil {
			if custom := handler(httpCtx); custom != nil {
				return custom
			}
		}
		return &Error{
			Kind:       KindHTTP,
			Message:    http.StatusText(httpCtx.StatusCode),
			StatusCode: httpCtx.StatusCode,
			Data:       httpCtx.Data,
			Headers:    httpCtx.Headers,
		}
	}

	var domainErr *Error
	if asError(err, &domainErr) {
		return domainErr
	}

	return &Error{
		Kind:    KindNetwork,
		Message: err.Error(),
		Cause:   err,
	}
}

func asError(err error, target **Error) bool {
	if e, ok := err.(*Error); ok {
		*target = e
		return true
	}
	return false
}
