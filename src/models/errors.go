package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidRequest is surfaced immediately, before any provider
	// is attempted.
	ErrInvalidRequest = errors.New("invalid request: missing or malformed prompt")

	// ErrCacheUnavailable marks cache/vector-store failures. It is
	// always recovered locally by degrading to a cache miss.
	ErrCacheUnavailable = errors.New("cache unavailable")

	// ErrClassificationUnparseable marks a model classification whose
	// output could not be parsed as structured data. Recovered locally
	// by the heuristic fallback, never retried against another provider.
	ErrClassificationUnparseable = errors.New("classification response unparseable")
)

// ProviderFailure records why a single provider attempt failed.
type ProviderFailure struct {
	Provider string `json:"provider"`
	Reason   string `json:"reason"`
	Timeout  bool   `json:"timeout,omitempty"`
}

// ProviderError wraps a vendor-side failure for one attempt. When
// Emitted is true the provider had already streamed output, so the
// failure is terminal for the request rather than retried elsewhere.
type ProviderError struct {
	Provider string
	Err      error
	Timeout  bool
	Emitted  bool
}

func (e *ProviderError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("provider %s timed out: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("provider %s failed: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// AllProvidersExhaustedError is the terminal failure of the fallback
// chain: every configured provider failed before emitting a fragment.
type AllProvidersExhaustedError struct {
	Failures []ProviderFailure
}

func (e *AllProvidersExhaustedError) Error() string {
	reasons := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		reasons = append(reasons, fmt.Sprintf("%s: %s", f.Provider, f.Reason))
	}
	return "all providers exhausted: " + strings.Join(reasons, "; ")
}
