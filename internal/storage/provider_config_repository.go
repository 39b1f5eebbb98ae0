package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"easyprompt/internal/models"
)

// ProviderConfigRepository handles per-user provider configuration storage.
// Every mutating query is scoped by user_id so a user can only ever touch
// their own configurations.
type ProviderConfigRepository struct {
	db *DB
}

// NewProviderConfigRepository creates a new provider config repository
func NewProviderConfigRepository(db *DB) *ProviderConfigRepository {
	return &ProviderConfigRepository{db: db}
}

const providerConfigColumns = `
	id, user_id, provider_name, display_name,
	encrypted_api_key, api_key_iv, api_key_auth_tag,
	encrypted_endpoint, endpoint_iv, endpoint_auth_tag,
	enabled, created_at, updated_at, last_used_at
`

// GetByUserAndProvider retrieves the config for the unique pair
// (userID, providerName).
func (r *ProviderConfigRepository) GetByUserAndProvider(ctx context.Context, userID uuid.UUID, providerName string) (*models.ProviderConfig, error) {
	var config models.ProviderConfig
	query := fmt.Sprintf(`
		SELECT %s
		FROM provider_configs
		WHERE user_id = $1 AND provider_name = $2
	`, providerConfigColumns)

	err := r.db.conn.GetContext(ctx, &config, query, userID, providerName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProviderConfigNotFound
		}
		return nil, fmt.Errorf("failed to get provider config: %w", err)
	}

	return &config, nil
}

// UpsertParams holds the fields for creating or updating a provider config.
// Nil secret fields mean "keep the stored value"; the COALESCE in the upsert
// only overwrites what the caller actually provided.
type UpsertParams struct {
	DisplayName *string

	EncryptedAPIKey *string
	APIKeyIV        *string
	APIKeyAuthTag   *string

	EncryptedEndpoint *string
	EndpointIV        *string
	EndpointAuthTag   *string
}

// Upsert creates or updates the config for (userID, providerName). New
// configs start enabled.
func (r *ProviderConfigRepository) Upsert(ctx context.Context, userID uuid.UUID, providerName string, params UpsertParams) (*models.ProviderConfig, error) {
	var config models.ProviderConfig
	query := fmt.Sprintf(`
		INSERT INTO provider_configs (
			id, user_id, provider_name, display_name,
			encrypted_api_key, api_key_iv, api_key_auth_tag,
			encrypted_endpoint, endpoint_iv, endpoint_auth_tag,
			enabled, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, TRUE, NOW(), NOW())
		ON CONFLICT (user_id, provider_name) DO UPDATE SET
			display_name       = COALESCE(EXCLUDED.display_name, provider_configs.display_name),
			encrypted_api_key  = COALESCE(EXCLUDED.encrypted_api_key, provider_configs.encrypted_api_key),
			api_key_iv         = COALESCE(EXCLUDED.api_key_iv, provider_configs.api_key_iv),
			api_key_auth_tag   = COALESCE(EXCLUDED.api_key_auth_tag, provider_configs.api_key_auth_tag),
			encrypted_endpoint = COALESCE(EXCLUDED.encrypted_endpoint, provider_configs.encrypted_endpoint),
			endpoint_iv        = COALESCE(EXCLUDED.endpoint_iv, provider_configs.endpoint_iv),
			endpoint_auth_tag  = COALESCE(EXCLUDED.endpoint_auth_tag, provider_configs.endpoint_auth_tag),
			updated_at         = NOW()
		RETURNING %s
	`, providerConfigColumns)

	err := r.db.conn.GetContext(ctx, &config, query,
		uuid.New(), userID, providerName, params.DisplayName,
		params.EncryptedAPIKey, params.APIKeyIV, params.APIKeyAuthTag,
		params.EncryptedEndpoint, params.EndpointIV, params.EndpointAuthTag,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert provider config: %w", err)
	}

	return &config, nil
}

// SetEnabled toggles the enabled flag on a config owned by userID.
func (r *ProviderConfigRepository) SetEnabled(ctx context.Context, userID, configID uuid.UUID, enabled bool) (*models.ProviderConfig, error) {
	var config models.ProviderConfig
	query := fmt.Sprintf(`
		UPDATE provider_configs
		SET enabled = $3, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING %s
	`, providerConfigColumns)

	err := r.db.conn.GetContext(ctx, &config, query, configID, userID, enabled)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProviderConfigNotFound
		}
		return nil, fmt.Errorf("failed to toggle provider config: %w", err)
	}

	return &config, nil
}

// Delete removes a config owned by userID. Returns false if no such config
// exists.
func (r *ProviderConfigRepository) Delete(ctx context.Context, userID, configID uuid.UUID) (bool, error) {
	result, err := r.db.conn.ExecContext(ctx, `
		DELETE FROM provider_configs
		WHERE id = $1 AND user_id = $2
	`, configID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete provider config: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete provider config: %w", err)
	}

	return affected > 0, nil
}

// ListForUser returns all configs belonging to userID, newest first.
func (r *ProviderConfigRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.ProviderConfig, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM provider_configs
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, providerConfigColumns)

	var configs []*models.ProviderConfig
	if err := r.db.conn.SelectContext(ctx, &configs, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list provider configs: %w", err)
	}

	return configs, nil
}

// TouchLastUsed records that a config's credentials were just read.
func (r *ProviderConfigRepository) TouchLastUsed(ctx context.Context, configID uuid.UUID) error {
	_, err := r.db.conn.ExecContext(ctx, `
		UPDATE provider_configs
		SET last_used_at = NOW()
		WHERE id = $1
	`, configID)
	if err != nil {
		return fmt.Errorf("failed to update last_used_at: %w", err)
	}
	return nil
}
