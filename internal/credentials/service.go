// Package credentials manages per-user provider credentials: encrypted
// storage, sanitized listing, and resolution into plaintext credentials for
// adapter construction.
package credentials

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"easyprompt/internal/models"
	"easyprompt/internal/providers"
	"easyprompt/internal/security"
	"easyprompt/internal/storage"
	"easyprompt/internal/utils"
)

var (
	// ErrUnsupportedProvider is returned when the provider name is not one
	// of the known backends.
	ErrUnsupportedProvider = errors.New("unsupported provider")
	// ErrNothingToSave is returned when a save request carries no fields.
	ErrNothingToSave = errors.New("no credential fields provided")
	// ErrNotFound is returned when the referenced config does not exist or
	// belongs to another user.
	ErrNotFound = errors.New("provider configuration not found")
)

// Store is the subset of the provider config repository the service needs.
type Store interface {
	GetByUserAndProvider(ctx context.Context, userID uuid.UUID, providerName string) (*models.ProviderConfig, error)
	Upsert(ctx context.Context, userID uuid.UUID, providerName string, params storage.UpsertParams) (*models.ProviderConfig, error)
	SetEnabled(ctx context.Context, userID, configID uuid.UUID, enabled bool) (*models.ProviderConfig, error)
	Delete(ctx context.Context, userID, configID uuid.UUID) (bool, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.ProviderConfig, error)
	TouchLastUsed(ctx context.Context, configID uuid.UUID) error
}

// Service encrypts and persists provider credentials. Plaintext secrets
// exist only transiently inside Save and Resolve; everything stored or
// listed is ciphertext or sanitized.
type Service struct {
	store  Store
	enc    *security.Encryption
	logger *utils.Logger
}

// NewService creates a credential service
func NewService(store Store, enc *security.Encryption, logger *utils.Logger) *Service {
	return &Service{
		store:  store,
		enc:    enc,
		logger: logger,
	}
}

// SaveInput carries the optional fields of a save request. Nil fields leave
// the stored value untouched.
type SaveInput struct {
	DisplayName *string
	APIKey      *string
	Endpoint    *string
}

// Save encrypts the provided secrets and upserts the config for
// (userID, provider).
func (s *Service) Save(ctx context.Context, userID uuid.UUID, provider providers.ProviderName, input SaveInput) (*models.ProviderConfigSummary, error) {
	if !providers.IsSupported(provider) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, provider)
	}
	if input.DisplayName == nil && input.APIKey == nil && input.Endpoint == nil {
		return nil, ErrNothingToSave
	}

	params := storage.UpsertParams{DisplayName: input.DisplayName}

	if input.APIKey != nil {
		secret, err := s.enc.Encrypt(*input.APIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt API key: %w", err)
		}
		params.EncryptedAPIKey = &secret.Ciphertext
		params.APIKeyIV = &secret.IV
		params.APIKeyAuthTag = &secret.AuthTag
	}

	if input.Endpoint != nil {
		secret, err := s.enc.Encrypt(*input.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt endpoint: %w", err)
		}
		params.EncryptedEndpoint = &secret.Ciphertext
		params.EndpointIV = &secret.IV
		params.EndpointAuthTag = &secret.AuthTag
	}

	config, err := s.store.Upsert(ctx, userID, string(provider), params)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Saved provider credentials", "user_id", userID, "provider", provider)

	summary := config.Summary()
	return &summary, nil
}

// List returns sanitized summaries of all configs for userID. Ciphertext
// never leaves the storage layer through this path.
func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]models.ProviderConfigSummary, error) {
	configs, err := s.store.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	summaries := make([]models.ProviderConfigSummary, 0, len(configs))
	for _, config := range configs {
		summaries = append(summaries, config.Summary())
	}
	return summaries, nil
}

// SetEnabled toggles a config owned by userID.
func (s *Service) SetEnabled(ctx context.Context, userID, configID uuid.UUID, enabled bool) (*models.ProviderConfigSummary, error) {
	config, err := s.store.SetEnabled(ctx, userID, configID, enabled)
	if err != nil {
		if errors.Is(err, storage.ErrProviderConfigNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	summary := config.Summary()
	return &summary, nil
}

// Delete removes a config owned by userID.
func (s *Service) Delete(ctx context.Context, userID, configID uuid.UUID) error {
	found, err := s.store.Delete(ctx, userID, configID)
	if err != nil {
		return err
	}
	if !found {
		return ErrNotFound
	}

	s.logger.Info("Deleted provider credentials", "user_id", userID, "config_id", configID)
	return nil
}
