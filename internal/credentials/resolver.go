package credentials

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/google/uuid"

	"easyprompt/internal/providers"
	"easyprompt/internal/security"
	"easyprompt/internal/storage"
	"easyprompt/internal/utils"
)

// Resolver produces effective credentials for a provider. Stored, enabled
// user configurations win; anything missing falls back to process
// environment variables (OPENAI_API_KEY, OLLAMA_ENDPOINT, and so on). A
// resolution never fails just because no credentials exist: adapters handle
// the unconfigured case themselves.
type Resolver struct {
	store  Store
	enc    *security.Encryption
	logger *utils.Logger
}

// NewResolver creates a credential resolver
func NewResolver(store Store, enc *security.Encryption, logger *utils.Logger) *Resolver {
	return &Resolver{
		store:  store,
		enc:    enc,
		logger: logger,
	}
}

// Resolve returns the credentials to use for the given provider and user.
// A nil userID skips storage and resolves from the environment only.
func (r *Resolver) Resolve(ctx context.Context, name providers.ProviderName, userID *uuid.UUID) (providers.Credentials, error) {
	creds := envCredentials(name)

	if userID == nil {
		return creds, nil
	}

	config, err := r.store.GetByUserAndProvider(ctx, *userID, string(name))
	if err != nil {
		if errors.Is(err, storage.ErrProviderConfigNotFound) {
			return creds, nil
		}
		return providers.Credentials{}, err
	}
	if !config.Enabled {
		return creds, nil
	}

	used := false

	if secret, ok := config.APIKeySecret(); ok {
		apiKey, err := r.enc.Decrypt(secret)
		if err != nil {
			// A decryption failure (rotated master key, corrupt row) must not
			// take the provider down; fall back to the environment.
			r.logger.Warn("Failed to decrypt stored API key",
				"user_id", *userID, "provider", name, "error", err)
		} else {
			creds.APIKey = apiKey
			used = true
		}
	}

	if secret, ok := config.EndpointSecret(); ok {
		endpoint, err := r.enc.Decrypt(secret)
		if err != nil {
			r.logger.Warn("Failed to decrypt stored endpoint",
				"user_id", *userID, "provider", name, "error", err)
		} else {
			creds.Endpoint = endpoint
			used = true
		}
	}

	if used {
		if err := r.store.TouchLastUsed(ctx, config.ID); err != nil {
			r.logger.Warn("Failed to record credential use",
				"config_id", config.ID, "error", err)
		}
	}

	return creds, nil
}

// envCredentials reads <PROVIDER>_API_KEY and <PROVIDER>_ENDPOINT from the
// environment.
func envCredentials(name providers.ProviderName) providers.Credentials {
	prefix := strings.ToUpper(string(name))
	return providers.Credentials{
		APIKey:   os.Getenv(prefix + "_API_KEY"),
		Endpoint: os.Getenv(prefix + "_ENDPOINT"),
	}
}
