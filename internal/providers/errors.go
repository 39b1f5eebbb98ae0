package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// Adapters translate backend-native failures into this shared taxonomy at
// the adapter boundary; callers above never see backend-specific error
// shapes.

// AuthenticationError indicates the backend rejected the credentials.
type AuthenticationError struct {
	Provider ProviderName
	Message  string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("%s: authentication failed: %s", e.Provider, e.Message)
}

// RateLimitError indicates the backend is throttling requests.
type RateLimitError struct {
	Provider   ProviderName
	RetryAfter time.Duration // zero if the backend gave no hint
	Message    string
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: rate limit exceeded, retry after %s", e.Provider, e.RetryAfter)
	}
	return fmt.Sprintf("%s: rate limit exceeded: %s", e.Provider, e.Message)
}

// UnavailableError indicates the backend is unreachable, the request timed
// out, or the provider name itself is not supported.
type UnavailableError struct {
	Provider ProviderName
	Message  string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: provider unavailable: %s", e.Provider, e.Message)
}

// ModelNotFoundError indicates the requested model ID is unknown to the
// backend.
type ModelNotFoundError struct {
	Provider ProviderName
	Model    string
}

func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("%s: model %q not found", e.Provider, e.Model)
}

// ParseError indicates the backend returned output that could not be parsed
// as the requested structure, even after repair. Raw carries the response
// for diagnostics.
type ParseError struct {
	Provider ProviderName
	Raw      string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: failed to parse structured response: %v", e.Provider, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// APIError is the catch-all for backend failures not covered by a more
// specific type. It carries the backend's status code and message.
type APIError struct {
	Provider   ProviderName
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: API error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// mapStatusError maps an HTTP status code from a backend into the taxonomy.
// model is the model ID the request named, used for 404 responses.
func mapStatusError(provider ProviderName, status int, model, message string, retryAfter time.Duration) error {
	switch status {
	case 401, 403:
		return &AuthenticationError{Provider: provider, Message: message}
	case 429:
		return &RateLimitError{Provider: provider, RetryAfter: retryAfter, Message: message}
	case 404:
		return &ModelNotFoundError{Provider: provider, Model: model}
	default:
		return &APIError{Provider: provider, StatusCode: status, Message: message}
	}
}

// mapTransportError maps a transport-level failure (connection refused, DNS,
// timeout, cancelled context) into the taxonomy.
func mapTransportError(provider ProviderName, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &UnavailableError{Provider: provider, Message: "request timed out"}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &UnavailableError{Provider: provider, Message: "request timed out"}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return &UnavailableError{Provider: provider, Message: opErr.Error()}
	}

	return &UnavailableError{Provider: provider, Message: err.Error()}
}
