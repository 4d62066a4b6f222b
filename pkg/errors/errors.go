// Package errors defines the closed error taxonomy of the AI orchestration layer.
// Every upstream failure is reduced to exactly one Kind before it is retried,
// recorded, or returned to a caller.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies an upstream failure.
type Kind string

// The closed set of error kinds.
const (
	KindRateLimited        Kind = "rate_limited"
	KindServiceUnavailable Kind = "service_unavailable"
	KindTimeout            Kind = "timeout"
	KindNetworkError       Kind = "network_error"
	KindAuthError          Kind = "auth_error"
	KindUnknown            Kind = "unknown"
)

// Kinds lists every Kind in classification order.
var Kinds = []Kind{
	KindRateLimited,
	KindServiceUnavailable,
	KindTimeout,
	KindNetworkError,
	KindAuthError,
	KindUnknown,
}

// String implements fmt.Stringer.
func (k Kind) String() string { return string(k) }

// Retryable reports whether a failure of this kind may succeed on a later attempt.
// AuthError and Unknown fail fast.
func (k Kind) Retryable() bool {
	switch k {
	case KindRateLimited, KindServiceUnavailable, KindTimeout, KindNetworkError:
		return true
	case KindAuthError, KindUnknown:
		return false
	default:
		return false
	}
}

// HTTPStatusCode maps the kind to the status returned by the HTTP API.
func (k Kind) HTTPStatusCode() int {
	switch k {
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindServiceUnavailable, KindNetworkError:
		return http.StatusServiceUnavailable
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindAuthError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Classify maps a raw failure message to a Kind.
// The first matching rule wins, checked in this order: "429", "503",
// "timeout", "network", "API key". Matching of the word rules ignores case.
func Classify(message string) Kind {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(message, "429"):
		return KindRateLimited
	case strings.Contains(message, "503"):
		return KindServiceUnavailable
	case strings.Contains(lower, "timeout"):
		return KindTimeout
	case strings.Contains(lower, "network"):
		return KindNetworkError
	case strings.Contains(lower, "api key"):
		return KindAuthError
	default:
		return KindUnknown
	}
}

// ClassifyError classifies err, preferring a Kind already attached to it.
func ClassifyError(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return Classify(err.Error())
}

// Error is a terminal orchestration failure carrying its classified Kind.
type Error struct {
	Kind     Kind   `json:"kind"`
	Message  string `json:"message"`
	Attempts int    `json:"attempts,omitempty"`
	Err      error  `json:"-"`
}

// New creates an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap classifies err and wraps it. A nil err returns nil; an err that is
// already an *Error is returned unchanged.
func Wrap(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e
	}
	return &Error{
		Kind:    ClassifyError(err),
		Message: err.Error(),
		Err:     err,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("[%s] %s (attempts=%d)", e.Kind, e.Message, e.Attempts)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the failure kind is eligible for retry.
func (e *Error) Retryable() bool { return e.Kind.Retryable() }

// HTTPStatusCode returns the HTTP status code for the error.
func (e *Error) HTTPStatusCode() int { return e.Kind.HTTPStatusCode() }

// KindOf returns the Kind of err, or "" for a nil error.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return ClassifyError(err)
}
