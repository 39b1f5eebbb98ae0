package actions

import (
	"errors"
	"fmt"

	"easyprompt/internal/providers"
)

// InvalidInputError is returned for bad prompts before any network call is
// made.
type InvalidInputError struct {
	Message string
}

func (e *InvalidInputError) Error() string {
	return e.Message
}

// ActionError wraps a downstream failure with a message safe to show the end
// user. The original error stays reachable through Unwrap for logging and
// errors.As checks; the sanitized message never carries raw backend bodies.
type ActionError struct {
	Provider providers.ProviderName
	Message  string
	Err      error
}

func (e *ActionError) Error() string {
	return e.Message
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

// sanitize converts a provider error into an ActionError with a short
// user-presentable message.
func sanitize(name providers.ProviderName, err error) *ActionError {
	wrap := func(msg string) *ActionError {
		return &ActionError{Provider: name, Message: msg, Err: err}
	}

	var authErr *providers.AuthenticationError
	var rateErr *providers.RateLimitError
	var unavailErr *providers.UnavailableError
	var modelErr *providers.ModelNotFoundError
	var parseErr *providers.ParseError

	switch {
	case errors.As(err, &authErr):
		return wrap(fmt.Sprintf("%s rejected the configured credentials", name))
	case errors.As(err, &rateErr):
		return wrap("Rate limit exceeded - try again later")
	case errors.As(err, &unavailErr):
		return wrap(fmt.Sprintf("%s is not available", name))
	case errors.As(err, &modelErr):
		return wrap(fmt.Sprintf("The requested model is not available on %s", name))
	case errors.As(err, &parseErr):
		return wrap(fmt.Sprintf("%s returned an unreadable response", name))
	default:
		return wrap(fmt.Sprintf("Request to %s failed", name))
	}
}
