package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorType tags every scrape fault with a member of a closed set so that
// callers (retry, paginator, batch runner) dispatch on the tag instead of
// on driver-specific error types.
type ErrorType string

const (
	// Transport/browser faults.
	ErrorTypeTimeout      ErrorType = "timeout"
	ErrorTypeDNS          ErrorType = "dns"
	ErrorTypeConnRefused  ErrorType = "connection_refused"
	ErrorTypeProxy        ErrorType = "proxy"
	ErrorTypeRedirectLoop ErrorType = "redirect_loop"
	ErrorTypeDriver       ErrorType = "driver"

	// Structural faults. Callers skip the item instead of retrying.
	ErrorTypeMissingElement   ErrorType = "missing_element"
	ErrorTypeStaleElement     ErrorType = "stale_element"
	ErrorTypeClickIntercepted ErrorType = "click_intercepted"

	// Authentication faults. Terminal.
	ErrorTypeCheckpoint ErrorType = "checkpoint_required"
	ErrorTypeChallenge  ErrorType = "login_challenge"
	ErrorTypeBlocked    ErrorType = "account_blocked"
	ErrorTypeAuth       ErrorType = "auth"

	ErrorTypeNotFound ErrorType = "not_found"
	ErrorTypeMedia    ErrorType = "media"
	ErrorTypeUnknown  ErrorType = "unknown"
)

// Error represents a scrape fault with type information and the URL being
// accessed when it occurred.
type Error struct {
	Type    ErrorType
	Message string
	URL     string
}

func (e *Error) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("%s error at %s: %s", e.Type, e.URL, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

// New builds a classified error.
func New(t ErrorType, url, format string, args ...interface{}) *Error {
	return &Error{Type: t, URL: url, Message: fmt.Sprintf(format, args...)}
}

// IsRetryable checks if an error type should be retried. Structural faults
// are excluded: retrying a stale selector rarely helps.
func IsRetryable(t ErrorType) bool {
	switch t {
	case ErrorTypeTimeout, ErrorTypeDNS, ErrorTypeConnRefused, ErrorTypeProxy, ErrorTypeDriver:
		return true
	default:
		return false
	}
}

// IsStructural reports whether the fault concerns DOM structure rather than
// transport. The paginator converts these into "skip this item".
func IsStructural(t ErrorType) bool {
	switch t {
	case ErrorTypeMissingElement, ErrorTypeStaleElement, ErrorTypeClickIntercepted:
		return true
	default:
		return false
	}
}

// TypeOf extracts the fault tag from any error, ErrorTypeUnknown if it does
// not carry one.
func TypeOf(err error) ErrorType {
	var se *Error
	if errors.As(err, &se) {
		return se.Type
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeTimeout
	}
	return ErrorTypeUnknown
}

// Chromium net-stack markers surfaced in driver error strings.
const (
	markerConnTimedOut = "net::ERR_CONNECTION_TIMED_OUT"
	markerNameNotFound = "net::ERR_NAME_NOT_RESOLVED"
	markerConnRefused  = "net::ERR_CONNECTION_REFUSED"
	markerProxyFailed  = "net::ERR_PROXY_CONNECTION_FAILED"
	markerTooManyRedir = "net::ERR_TOO_MANY_REDIRECTS"
)

// Classify maps an underlying driver error to a single classified error
// with a human-readable cause. It is a pure function of the error and the
// URL being accessed; it performs no I/O.
func Classify(err error, url string) *Error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return se
	}

	msg := err.Error()
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return New(ErrorTypeTimeout, url, "timeout: the server took too long to respond")
	case strings.Contains(msg, markerConnTimedOut):
		return New(ErrorTypeTimeout, url, "connection timed out: check your internet connection")
	case strings.Contains(msg, markerNameNotFound):
		return New(ErrorTypeDNS, url, "could not resolve the host name: check the URL")
	case strings.Contains(msg, markerConnRefused):
		return New(ErrorTypeConnRefused, url, "connection refused: the server might be down or blocking requests")
	case strings.Contains(msg, markerProxyFailed):
		return New(ErrorTypeProxy, url, "proxy connection failed: check your proxy settings")
	case strings.Contains(msg, markerTooManyRedir):
		return New(ErrorTypeRedirectLoop, url, "too many redirects: the page might be in a redirect loop")
	case strings.Contains(msg, "could not find node") ||
		strings.Contains(msg, "waiting for selector") ||
		strings.Contains(msg, "no nodes found"):
		return New(ErrorTypeMissingElement, url, "required element not found: the page structure might have changed")
	case strings.Contains(strings.ToLower(msg), "node is detached"):
		return New(ErrorTypeStaleElement, url, "element is no longer attached to the DOM: the page might have been updated")
	case strings.Contains(msg, "click intercepted") ||
		(strings.Contains(msg, "intercept") && strings.Contains(msg, "click")):
		return New(ErrorTypeClickIntercepted, url, "could not interact with element: it might be obscured or not clickable")
	default:
		return New(ErrorTypeDriver, url, "unexpected driver error: %v", err)
	}
}
