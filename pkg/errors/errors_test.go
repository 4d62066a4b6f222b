package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    Kind
	}{
		{"rate limit", "429 Too Many Requests", KindRateLimited},
		{"service unavailable", "503 Service Unavailable", KindServiceUnavailable},
		{"timeout", "Request timeout", KindTimeout},
		{"network", "Network error", KindNetworkError},
		{"auth", "Invalid API key", KindAuthError},
		{"unknown", "Something else", KindUnknown},
		{"empty", "", KindUnknown},

		// Order matters: the first matching rule wins.
		{"429 beats timeout", "429 after timeout", KindRateLimited},
		{"503 beats network", "network 503", KindServiceUnavailable},
		{"timeout beats api key", "API key check timeout", KindTimeout},
		{"network beats api key", "network failure validating API key", KindNetworkError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.message); got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.message, got, tt.want)
			}
		})
	}
}

func TestKind_Retryable(t *testing.T) {
	want := map[Kind]bool{
		KindRateLimited:        true,
		KindServiceUnavailable: true,
		KindTimeout:            true,
		KindNetworkError:       true,
		KindAuthError:          false,
		KindUnknown:            false,
	}
	for _, kind := range Kinds {
		if got := kind.Retryable(); got != want[kind] {
			t.Errorf("%s.Retryable() = %v, want %v", kind, got, want[kind])
		}
	}
	if Kind("bogus").Retryable() {
		t.Error("unrecognized kind should not be retryable")
	}
}

func TestKind_HTTPStatusCode(t *testing.T) {
	if got := KindRateLimited.HTTPStatusCode(); got != http.StatusTooManyRequests {
		t.Errorf("rate limited status = %d, want 429", got)
	}
	if got := KindTimeout.HTTPStatusCode(); got != http.StatusGatewayTimeout {
		t.Errorf("timeout status = %d, want 504", got)
	}
	if got := KindUnknown.HTTPStatusCode(); got != http.StatusInternalServerError {
		t.Errorf("unknown status = %d, want 500", got)
	}
}

func TestWrap(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		if Wrap(nil) != nil {
			t.Error("Wrap(nil) should be nil")
		}
	})

	t.Run("classifies plain errors", func(t *testing.T) {
		cause := fmt.Errorf("upstream: 503 Service Unavailable")
		e := Wrap(cause)
		if e.Kind != KindServiceUnavailable {
			t.Errorf("Kind = %v, want %v", e.Kind, KindServiceUnavailable)
		}
		if !stderrors.Is(e, cause) {
			t.Error("wrapped error should unwrap to its cause")
		}
	})

	t.Run("keeps existing kind", func(t *testing.T) {
		orig := New(KindAuthError, "429 in message but auth failure")
		wrapped := fmt.Errorf("call: %w", orig)
		if got := Wrap(wrapped); got != orig {
			t.Errorf("Wrap() = %v, want original error", got)
		}
	})

	t.Run("deadline exceeded is a timeout", func(t *testing.T) {
		if got := KindOf(context.DeadlineExceeded); got != KindTimeout {
			t.Errorf("KindOf(DeadlineExceeded) = %v, want %v", got, KindTimeout)
		}
	})
}

func TestError_Message(t *testing.T) {
	e := &Error{Kind: KindTimeout, Message: "Request timeout", Attempts: 3}
	want := "[timeout] Request timeout (attempts=3)"
	if got := e.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	single := New(KindAuthError, "Invalid API key")
	if got := single.Error(); got != "[auth_error] Invalid API key" {
		t.Errorf("Error() = %q", got)
	}
	if single.Retryable() {
		t.Error("auth error should not be retryable")
	}
}

func TestKindOf_Nil(t *testing.T) {
	if got := KindOf(nil); got != "" {
		t.Errorf("KindOf(nil) = %q, want empty", got)
	}
}
