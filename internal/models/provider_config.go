package models

import (
	"time"

	"github.com/google/uuid"

	"easyprompt/internal/security"
)

// ProviderConfig is a user's stored configuration for one provider,
// identified by the unique pair (UserID, ProviderName). API key and endpoint
// are encrypted at rest; ciphertext, IV, and auth tag are persisted as
// separate columns. Configs are never shared across users.
type ProviderConfig struct {
	ID           uuid.UUID `db:"id"`
	UserID       uuid.UUID `db:"user_id"`
	ProviderName string    `db:"provider_name"`
	DisplayName  *string   `db:"display_name"`

	EncryptedAPIKey *string `db:"encrypted_api_key"`
	APIKeyIV        *string `db:"api_key_iv"`
	APIKeyAuthTag   *string `db:"api_key_auth_tag"`

	EncryptedEndpoint *string `db:"encrypted_endpoint"`
	EndpointIV        *string `db:"endpoint_iv"`
	EndpointAuthTag   *string `db:"endpoint_auth_tag"`

	Enabled    bool       `db:"enabled"`
	CreatedAt  time.Time  `db:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at"`
	LastUsedAt *time.Time `db:"last_used_at"`
}

// HasAPIKey reports whether an encrypted API key is stored.
func (c *ProviderConfig) HasAPIKey() bool {
	return c.EncryptedAPIKey != nil && *c.EncryptedAPIKey != ""
}

// HasEndpoint reports whether an encrypted endpoint is stored.
func (c *ProviderConfig) HasEndpoint() bool {
	return c.EncryptedEndpoint != nil && *c.EncryptedEndpoint != ""
}

// APIKeySecret assembles the stored API key fields into an EncryptedSecret.
// The second return is false when no key is stored.
func (c *ProviderConfig) APIKeySecret() (security.EncryptedSecret, bool) {
	if !c.HasAPIKey() || c.APIKeyIV == nil || c.APIKeyAuthTag == nil {
		return security.EncryptedSecret{}, false
	}
	return security.EncryptedSecret{
		Ciphertext: *c.EncryptedAPIKey,
		IV:         *c.APIKeyIV,
		AuthTag:    *c.APIKeyAuthTag,
	}, true
}

// EndpointSecret assembles the stored endpoint fields into an
// EncryptedSecret. The second return is false when no endpoint is stored.
func (c *ProviderConfig) EndpointSecret() (security.EncryptedSecret, bool) {
	if !c.HasEndpoint() || c.EndpointIV == nil || c.EndpointAuthTag == nil {
		return security.EncryptedSecret{}, false
	}
	return security.EncryptedSecret{
		Ciphertext: *c.EncryptedEndpoint,
		IV:         *c.EndpointIV,
		AuthTag:    *c.EndpointAuthTag,
	}, true
}

// ProviderConfigSummary is the sanitized view of a ProviderConfig exposed to
// callers: it reveals whether secrets exist, never the secrets themselves.
type ProviderConfigSummary struct {
	ID           uuid.UUID  `json:"id"`
	ProviderName string     `json:"provider_name"`
	DisplayName  *string    `json:"display_name,omitempty"`
	Enabled      bool       `json:"enabled"`
	HasAPIKey    bool       `json:"has_api_key"`
	HasEndpoint  bool       `json:"has_endpoint"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastUsedAt   *time.Time `json:"last_used_at,omitempty"`
}

// Summary returns the sanitized view of the config.
func (c *ProviderConfig) Summary() ProviderConfigSummary {
	return ProviderConfigSummary{
		ID:           c.ID,
		ProviderName: c.ProviderName,
		DisplayName:  c.DisplayName,
		Enabled:      c.Enabled,
		HasAPIKey:    c.HasAPIKey(),
		HasEndpoint:  c.HasEndpoint(),
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
		LastUsedAt:   c.LastUsedAt,
	}
}
