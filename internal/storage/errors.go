package storage

import "errors"

var (
	// ErrProviderConfigNotFound is returned when a provider configuration is not found
	ErrProviderConfigNotFound = errors.New("provider configuration not found")

	// ErrUserNotFound is returned when a user is not found
	ErrUserNotFound = errors.New("user not found")

	// ErrDuplicateEmail is returned when creating a user with an email that already exists
	ErrDuplicateEmail = errors.New("an account with this email already exists")

	// ErrSessionNotFound is returned when a session is not found
	ErrSessionNotFound = errors.New("session not found")
)
