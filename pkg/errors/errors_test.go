package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestClassifyNetworkMarkers(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorType
	}{
		{"connection timed out", errors.New("page load error net::ERR_CONNECTION_TIMED_OUT"), ErrorTypeTimeout},
		{"dns failure", errors.New("navigate: net::ERR_NAME_NOT_RESOLVED"), ErrorTypeDNS},
		{"connection refused", errors.New("net::ERR_CONNECTION_REFUSED"), ErrorTypeConnRefused},
		{"proxy failure", errors.New("net::ERR_PROXY_CONNECTION_FAILED"), ErrorTypeProxy},
		{"redirect loop", errors.New("net::ERR_TOO_MANY_REDIRECTS"), ErrorTypeRedirectLoop},
		{"deadline", context.DeadlineExceeded, ErrorTypeTimeout},
		{"missing element", errors.New("could not find node with selector"), ErrorTypeMissingElement},
		{"stale element", errors.New("Node is detached from document"), ErrorTypeStaleElement},
		{"intercepted click", errors.New("click intercepted by overlay"), ErrorTypeClickIntercepted},
		{"anything else", errors.New("websocket closed"), ErrorTypeDriver},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err, "https://www.threads.net/@target")
			if got.Type != tt.expected {
				t.Errorf("Classify(%v) type = %s, want %s", tt.err, got.Type, tt.expected)
			}
			if got.URL != "https://www.threads.net/@target" {
				t.Errorf("Classify did not carry the URL, got %q", got.URL)
			}
		})
	}
}

func TestClassifyNil(t *testing.T) {
	if got := Classify(nil, "url"); got != nil {
		t.Errorf("Classify(nil) = %v, want nil", got)
	}
}

func TestClassifyPreservesClassified(t *testing.T) {
	orig := New(ErrorTypeCheckpoint, "u", "account requires additional verification")
	wrapped := fmt.Errorf("login: %w", orig)
	if got := Classify(wrapped, "other"); got != orig {
		t.Errorf("Classify re-classified an already classified error: %v", got)
	}
}

func TestIsRetryable(t *testing.T) {
	retryable := []ErrorType{ErrorTypeTimeout, ErrorTypeDNS, ErrorTypeConnRefused, ErrorTypeProxy, ErrorTypeDriver}
	for _, typ := range retryable {
		if !IsRetryable(typ) {
			t.Errorf("expected %s to be retryable", typ)
		}
	}

	fatal := []ErrorType{
		ErrorTypeMissingElement, ErrorTypeStaleElement, ErrorTypeClickIntercepted,
		ErrorTypeCheckpoint, ErrorTypeChallenge, ErrorTypeBlocked, ErrorTypeAuth,
		ErrorTypeNotFound, ErrorTypeUnknown,
	}
	for _, typ := range fatal {
		if IsRetryable(typ) {
			t.Errorf("expected %s to not be retryable", typ)
		}
	}
}

func TestTypeOf(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(ErrorTypeBlocked, "", "temporarily blocked"))
	if got := TypeOf(err); got != ErrorTypeBlocked {
		t.Errorf("TypeOf = %s, want %s", got, ErrorTypeBlocked)
	}
	if got := TypeOf(errors.New("plain")); got != ErrorTypeUnknown {
		t.Errorf("TypeOf(plain) = %s, want %s", got, ErrorTypeUnknown)
	}
}
