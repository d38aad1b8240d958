package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"transient wrapper", NewTransientError(errors.New("503"), 503), true},
		{"fatal wrapper", NewFatalError(errors.New("404"), 404), false},
		{"wrapped transient", fmt.Errorf("fetch: %w", NewTransientError(errors.New("x"), 0)), true},
		{"wrapped fatal", fmt.Errorf("fetch: %w", NewFatalError(errors.New("x"), 0)), false},
		{"connection reset string", errors.New("read tcp: connection reset by peer"), true},
		{"no such host", errors.New("dial tcp: lookup example.com: no such host"), true},
		{"io timeout", errors.New("read: i/o timeout"), true},
		{"plain error", errors.New("something unrelated"), false},
		{"context canceled", context.Canceled, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestFatalWinsOverTransient(t *testing.T) {
	// A fatal error wrapped in a transient envelope must not be retried.
	err := NewTransientError(NewFatalError(errors.New("bad page shape"), 0), 0)
	if IsTransient(err) {
		t.Error("fatal anywhere in the chain must disable retry")
	}
	if !IsFatal(err) {
		t.Error("expected IsFatal to see through the chain")
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		if !IsTransientHTTPStatus(code) {
			t.Errorf("status %d should be transient", code)
		}
	}
	for _, code := range []int{200, 301, 400, 401, 403, 404, 410} {
		if IsTransientHTTPStatus(code) {
			t.Errorf("status %d should not be transient", code)
		}
	}
}

func TestErrorUnwrap(t *testing.T) {
	inner := errors.New("inner")

	te := NewTransientError(inner, 500)
	if !errors.Is(te, inner) {
		t.Error("TransientError should unwrap to inner")
	}
	if te.StatusCode != 500 {
		t.Errorf("expected status 500, got %d", te.StatusCode)
	}

	fe := NewFatalError(inner, 404)
	if !errors.Is(fe, inner) {
		t.Error("FatalError should unwrap to inner")
	}
}
