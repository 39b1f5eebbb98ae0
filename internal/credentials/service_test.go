package credentials

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"easyprompt/internal/models"
	"easyprompt/internal/providers"
	"easyprompt/internal/security"
	"easyprompt/internal/storage"
	"easyprompt/internal/utils"
)

const testMasterKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

// fakeStore keeps provider configs in memory, keyed like the database's
// (user_id, provider_name) unique constraint.
type fakeStore struct {
	configs    map[string]*models.ProviderConfig
	touched    []uuid.UUID
	failUpsert bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{configs: make(map[string]*models.ProviderConfig)}
}

func (f *fakeStore) key(userID uuid.UUID, providerName string) string {
	return userID.String() + "/" + providerName
}

func (f *fakeStore) GetByUserAndProvider(ctx context.Context, userID uuid.UUID, providerName string) (*models.ProviderConfig, error) {
	config, ok := f.configs[f.key(userID, providerName)]
	if !ok {
		return nil, storage.ErrProviderConfigNotFound
	}
	return config, nil
}

func (f *fakeStore) Upsert(ctx context.Context, userID uuid.UUID, providerName string, params storage.UpsertParams) (*models.ProviderConfig, error) {
	if f.failUpsert {
		return nil, fmt.Errorf("simulated database error")
	}

	key := f.key(userID, providerName)
	config, ok := f.configs[key]
	if !ok {
		config = &models.ProviderConfig{
			ID:           uuid.New(),
			UserID:       userID,
			ProviderName: providerName,
			Enabled:      true,
			CreatedAt:    time.Now(),
		}
		f.configs[key] = config
	}

	if params.DisplayName != nil {
		config.DisplayName = params.DisplayName
	}
	if params.EncryptedAPIKey != nil {
		config.EncryptedAPIKey = params.EncryptedAPIKey
		config.APIKeyIV = params.APIKeyIV
		config.APIKeyAuthTag = params.APIKeyAuthTag
	}
	if params.EncryptedEndpoint != nil {
		config.EncryptedEndpoint = params.EncryptedEndpoint
		config.EndpointIV = params.EndpointIV
		config.EndpointAuthTag = params.EndpointAuthTag
	}
	config.UpdatedAt = time.Now()

	return config, nil
}

func (f *fakeStore) SetEnabled(ctx context.Context, userID, configID uuid.UUID, enabled bool) (*models.ProviderConfig, error) {
	for _, config := range f.configs {
		if config.ID == configID && config.UserID == userID {
			config.Enabled = enabled
			return config, nil
		}
	}
	return nil, storage.ErrProviderConfigNotFound
}

func (f *fakeStore) Delete(ctx context.Context, userID, configID uuid.UUID) (bool, error) {
	for key, config := range f.configs {
		if config.ID == configID && config.UserID == userID {
			delete(f.configs, key)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.ProviderConfig, error) {
	var configs []*models.ProviderConfig
	for _, config := range f.configs {
		if config.UserID == userID {
			configs = append(configs, config)
		}
	}
	return configs, nil
}

func (f *fakeStore) TouchLastUsed(ctx context.Context, configID uuid.UUID) error {
	f.touched = append(f.touched, configID)
	return nil
}

func setupService(t *testing.T) (*Service, *fakeStore, *security.Encryption) {
	t.Helper()

	enc, err := security.NewEncryption(testMasterKey)
	require.NoError(t, err)

	store := newFakeStore()
	logger := utils.NewLogger("credentials-test", utils.Error)
	return NewService(store, enc, logger), store, enc
}

func strPtr(s string) *string { return &s }

func TestService_Save(t *testing.T) {
	service, store, enc := setupService(t)
	ctx := context.Background()
	userID := uuid.New()

	summary, err := service.Save(ctx, userID, providers.ProviderOpenAI, SaveInput{
		DisplayName: strPtr("Work"),
		APIKey:      strPtr("sk-test-123"),
	})
	require.NoError(t, err)

	assert.Equal(t, "openai", summary.ProviderName)
	assert.True(t, summary.HasAPIKey)
	assert.False(t, summary.HasEndpoint)
	assert.True(t, summary.Enabled)

	// The stored secret must decrypt back to the plaintext
	config, err := store.GetByUserAndProvider(ctx, userID, "openai")
	require.NoError(t, err)
	secret, ok := config.APIKeySecret()
	require.True(t, ok)
	plaintext, err := enc.Decrypt(secret)
	require.NoError(t, err)
	assert.Equal(t, "sk-test-123", plaintext)
}

func TestService_SaveRejectsUnknownProvider(t *testing.T) {
	service, _, _ := setupService(t)

	_, err := service.Save(context.Background(), uuid.New(), "grok", SaveInput{
		APIKey: strPtr("key"),
	})
	assert.ErrorIs(t, err, ErrUnsupportedProvider)
}

func TestService_SaveRejectsEmptyInput(t *testing.T) {
	service, _, _ := setupService(t)

	_, err := service.Save(context.Background(), uuid.New(), providers.ProviderOpenAI, SaveInput{})
	assert.ErrorIs(t, err, ErrNothingToSave)
}

func TestService_SavePreservesExistingSecret(t *testing.T) {
	service, _, _ := setupService(t)
	ctx := context.Background()
	userID := uuid.New()

	_, err := service.Save(ctx, userID, providers.ProviderOllama, SaveInput{
		Endpoint: strPtr("http://localhost:11434"),
	})
	require.NoError(t, err)

	// Renaming must not drop the stored endpoint
	summary, err := service.Save(ctx, userID, providers.ProviderOllama, SaveInput{
		DisplayName: strPtr("Home server"),
	})
	require.NoError(t, err)
	assert.True(t, summary.HasEndpoint)
}

func TestService_ListReturnsSanitizedSummaries(t *testing.T) {
	service, _, _ := setupService(t)
	ctx := context.Background()
	userID := uuid.New()

	_, err := service.Save(ctx, userID, providers.ProviderAnthropic, SaveInput{
		APIKey: strPtr("sk-ant-123"),
	})
	require.NoError(t, err)

	summaries, err := service.List(ctx, userID)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.True(t, summaries[0].HasAPIKey)

	other, err := service.List(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestService_SetEnabledAndDelete(t *testing.T) {
	service, store, _ := setupService(t)
	ctx := context.Background()
	userID := uuid.New()

	_, err := service.Save(ctx, userID, providers.ProviderGoogle, SaveInput{
		APIKey: strPtr("key"),
	})
	require.NoError(t, err)

	config, err := store.GetByUserAndProvider(ctx, userID, "google")
	require.NoError(t, err)

	summary, err := service.SetEnabled(ctx, userID, config.ID, false)
	require.NoError(t, err)
	assert.False(t, summary.Enabled)

	// Wrong owner
	_, err = service.SetEnabled(ctx, uuid.New(), config.ID, true)
	assert.ErrorIs(t, err, ErrNotFound)
	err = service.Delete(ctx, uuid.New(), config.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, service.Delete(ctx, userID, config.ID))
	err = service.Delete(ctx, userID, config.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
