package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"easyprompt/internal/actions"
	"easyprompt/internal/auth"
	"easyprompt/internal/config"
	"easyprompt/internal/credentials"
	"easyprompt/internal/models"
	"easyprompt/internal/providers"
	"easyprompt/internal/security"
	"easyprompt/internal/storage"
	"easyprompt/internal/utils"
)

const testMasterKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

// In-memory stand-ins for the storage repositories, shared by the handler
// tests so routes can be exercised end to end without a database.

type memUserStore struct {
	users map[string]*models.User
}

func (m *memUserStore) Create(ctx context.Context, email, passwordHash string, name *string) (*models.User, error) {
	key := strings.ToLower(email)
	if _, ok := m.users[key]; ok {
		return nil, storage.ErrDuplicateEmail
	}
	user := &models.User{ID: uuid.New(), Email: key, Name: name, PasswordHash: passwordHash, CreatedAt: time.Now()}
	m.users[key] = user
	return user, nil
}

func (m *memUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if user, ok := m.users[strings.ToLower(email)]; ok {
		return user, nil
	}
	return nil, storage.ErrUserNotFound
}

func (m *memUserStore) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	for _, user := range m.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

type memSessionStore struct {
	sessions map[string]*models.Session
}

func (m *memSessionStore) Create(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) (*models.Session, error) {
	session := &models.Session{ID: uuid.New(), UserID: userID, TokenHash: tokenHash, ExpiresAt: expiresAt, CreatedAt: time.Now()}
	m.sessions[tokenHash] = session
	return session, nil
}

func (m *memSessionStore) GetByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error) {
	if session, ok := m.sessions[tokenHash]; ok {
		return session, nil
	}
	return nil, storage.ErrSessionNotFound
}

func (m *memSessionStore) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	delete(m.sessions, tokenHash)
	return nil
}

func (m *memSessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	var deleted int64
	for hash, session := range m.sessions {
		if session.IsExpired() {
			delete(m.sessions, hash)
			deleted++
		}
	}
	return deleted, nil
}

type memConfigStore struct {
	configs map[string]*models.ProviderConfig
}

func (m *memConfigStore) key(userID uuid.UUID, providerName string) string {
	return userID.String() + "/" + providerName
}

func (m *memConfigStore) GetByUserAndProvider(ctx context.Context, userID uuid.UUID, providerName string) (*models.ProviderConfig, error) {
	if config, ok := m.configs[m.key(userID, providerName)]; ok {
		return config, nil
	}
	return nil, storage.ErrProviderConfigNotFound
}

func (m *memConfigStore) Upsert(ctx context.Context, userID uuid.UUID, providerName string, params storage.UpsertParams) (*models.ProviderConfig, error) {
	key := m.key(userID, providerName)
	config, ok := m.configs[key]
	if !ok {
		config = &models.ProviderConfig{ID: uuid.New(), UserID: userID, ProviderName: providerName, Enabled: true, CreatedAt: time.Now()}
		m.configs[key] = config
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

func (m *memConfigStore) SetEnabled(ctx context.Context, userID, configID uuid.UUID, enabled bool) (*models.ProviderConfig, error) {
	for _, config := range m.configs {
		if config.ID == configID && config.UserID == userID {
			config.Enabled = enabled
			return config, nil
		}
	}
	return nil, storage.ErrProviderConfigNotFound
}

func (m *memConfigStore) Delete(ctx context.Context, userID, configID uuid.UUID) (bool, error) {
	for key, config := range m.configs {
		if config.ID == configID && config.UserID == userID {
			delete(m.configs, key)
			return true, nil
		}
	}
	return false, nil
}

func (m *memConfigStore) ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.ProviderConfig, error) {
	var configs []*models.ProviderConfig
	for _, config := range m.configs {
		if config.UserID == userID {
			configs = append(configs, config)
		}
	}
	return configs, nil
}

func (m *memConfigStore) TouchLastUsed(ctx context.Context, configID uuid.UUID) error {
	return nil
}

// scriptedFactory hands out a single scripted provider for every name.
type scriptedFactory struct {
	provider providers.Provider
	err      error
}

func (f *scriptedFactory) GetProvider(ctx context.Context, name providers.ProviderName, userID *uuid.UUID) (providers.Provider, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.provider, nil
}

func (f *scriptedFactory) AvailableProviders(ctx context.Context, userID *uuid.UUID) []providers.ProviderInfo {
	infos := make([]providers.ProviderInfo, 0, len(providers.SupportedProviders()))
	for _, name := range providers.SupportedProviders() {
		infos = append(infos, providers.ProviderInfo{Metadata: providers.Metadata{Name: name}})
	}
	return infos
}

func (f *scriptedFactory) CheckHealth(ctx context.Context, name providers.ProviderName, userID *uuid.UUID) (providers.HealthStatus, error) {
	return providers.HealthStatus{Available: true}, nil
}

// scriptedProvider answers every operation with fixed content.
type scriptedProvider struct {
	name providers.ProviderName
	err  error
}

func (s *scriptedProvider) Metadata() providers.Metadata         { return providers.Metadata{Name: s.name} }
func (s *scriptedProvider) Capabilities() providers.Capabilities { return providers.Capabilities{} }
func (s *scriptedProvider) Models() []providers.Model            { return nil }
func (s *scriptedProvider) DefaultModel() string                 { return "test-model" }
func (s *scriptedProvider) IsAvailable() bool                    { return true }

func (s *scriptedProvider) AnalyzePrompt(ctx context.Context, prompt, modelID string) (*providers.AnalysisResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &providers.AnalysisResult{Issues: []string{"vague"}, Suggestions: []string{"clarify"}, Score: 70, Provider: s.name}, nil
}

func (s *scriptedProvider) OptimizePrompt(ctx context.Context, prompt string, analysis *providers.AnalysisResult, modelID string) (*providers.OptimizedPrompt, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &providers.OptimizedPrompt{Text: "Improved: " + prompt, Improvements: []string{"clarified"}, Reasoning: "ok"}, nil
}

func (s *scriptedProvider) GeneratePreview(ctx context.Context, prompt, modelID string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "preview", nil
}

func (s *scriptedProvider) HealthCheck(ctx context.Context) providers.HealthStatus {
	return providers.HealthStatus{Available: true}
}

func setupTestMux(t *testing.T) (*http.ServeMux, *Dependencies) {
	t.Helper()

	enc, err := security.NewEncryption(testMasterKey)
	require.NoError(t, err)

	logger := utils.NewLogger("httpapi-test", utils.Error)

	users := &memUserStore{users: make(map[string]*models.User)}
	sessions := &memSessionStore{sessions: make(map[string]*models.Session)}
	configs := &memConfigStore{configs: make(map[string]*models.ProviderConfig)}

	factory := &scriptedFactory{provider: &scriptedProvider{name: providers.ProviderOpenAI}}

	deps := &Dependencies{
		Auth:        auth.NewService(users, sessions, logger),
		Credentials: credentials.NewService(configs, enc, logger),
		Actions:     actions.New(factory, actions.DefaultOptions()),
	}

	cfg := &config.Config{RateLimit: config.RateLimitConfig{RequestsPerMinute: 30}}

	mux := http.NewServeMux()
	registerRoutes(mux, deps, cfg)
	return mux, deps
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func signUp(t *testing.T, mux *http.ServeMux, email string) string {
	t.Helper()

	rec := doJSON(t, mux, http.MethodPost, "/auth/signup", "", SignUpRequest{
		Email:    email,
		Password: "correct-horse",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestAuthEndpoints(t *testing.T) {
	mux, _ := setupTestMux(t)

	token := signUp(t, mux, "alice@example.com")

	// Session works
	rec := doJSON(t, mux, http.MethodGet, "/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, "alice@example.com", me.Email)

	// Duplicate email
	rec = doJSON(t, mux, http.MethodPost, "/auth/signup", "", SignUpRequest{Email: "alice@example.com", Password: "correct-horse"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Wrong password
	rec = doJSON(t, mux, http.MethodPost, "/auth/login", "", LogInRequest{Email: "alice@example.com", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Login, logout, token dies
	rec = doJSON(t, mux, http.MethodPost, "/auth/login", "", LogInRequest{Email: "alice@example.com", Password: "correct-horse"})
	require.Equal(t, http.StatusOK, rec.Code)
	var session SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))

	rec = doJSON(t, mux, http.MethodPost, "/auth/logout", session.Token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/auth/me", session.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAnalyzeEndpoint(t *testing.T) {
	mux, _ := setupTestMux(t)

	rec := doJSON(t, mux, http.MethodPost, "/prompts/analyze", "", AnalyzeRequest{
		Prompt:   "Write a story about a lighthouse keeper.",
		Provider: "openai",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var analysis providers.AnalysisResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &analysis))
	assert.Equal(t, 70, analysis.Score)
}

func TestAnalyzeEndpoint_Validation(t *testing.T) {
	mux, _ := setupTestMux(t)

	// Too short
	rec := doJSON(t, mux, http.MethodPost, "/prompts/analyze", "", AnalyzeRequest{Prompt: "hi", Provider: "openai"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Missing provider
	rec = doJSON(t, mux, http.MethodPost, "/prompts/analyze", "", AnalyzeRequest{Prompt: "Write a story about a lighthouse keeper."})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyzeEndpoint_ProviderErrorStatuses(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"authentication", &providers.AuthenticationError{Provider: providers.ProviderOpenAI}, http.StatusUnauthorized},
		{"rate limit", &providers.RateLimitError{Provider: providers.ProviderOpenAI}, http.StatusTooManyRequests},
		{"unavailable", &providers.UnavailableError{Provider: providers.ProviderOpenAI}, http.StatusServiceUnavailable},
		{"generic", &providers.APIError{Provider: providers.ProviderOpenAI, StatusCode: 500}, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux, deps := setupTestMux(t)
			deps.Actions = actions.New(&scriptedFactory{provider: &scriptedProvider{name: providers.ProviderOpenAI, err: tt.err}}, actions.DefaultOptions())

			// Rebuild routes over the replaced action layer
			fresh := http.NewServeMux()
			registerRoutes(fresh, deps, &config.Config{RateLimit: config.RateLimitConfig{RequestsPerMinute: 30}})
			mux = fresh

			rec := doJSON(t, mux, http.MethodPost, "/prompts/analyze", "", AnalyzeRequest{
				Prompt:   "Write a story about a lighthouse keeper.",
				Provider: "openai",
			})
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestOptimizeEndpoint(t *testing.T) {
	mux, _ := setupTestMux(t)

	rec := doJSON(t, mux, http.MethodPost, "/prompts/optimize", "", OptimizeRequest{
		Prompt: "Write a story about a lighthouse keeper.",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result actions.OptimizationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Contains(t, result.OptimizedPrompt, "Improved:")
	assert.NotNil(t, result.Analysis)
	assert.NotEmpty(t, result.Timestamp)
}

func TestCompareEndpoint(t *testing.T) {
	mux, _ := setupTestMux(t)

	rec := doJSON(t, mux, http.MethodPost, "/prompts/compare", "", CompareRequest{
		Prompt:    "Write a story about a lighthouse keeper.",
		Providers: []string{"openai", "anthropic"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var results map[string]actions.CompareEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	assert.Len(t, results, 2)
}

func TestProvidersEndpoint(t *testing.T) {
	mux, _ := setupTestMux(t)

	rec := doJSON(t, mux, http.MethodGet, "/providers", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var infos []providers.ProviderInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &infos))
	assert.Len(t, infos, len(providers.SupportedProviders()))
}

func TestProviderHealthEndpoint(t *testing.T) {
	mux, _ := setupTestMux(t)

	rec := doJSON(t, mux, http.MethodGet, "/providers/openai/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var health providers.HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.True(t, health.Available)

	// Unknown provider name
	rec = doJSON(t, mux, http.MethodGet, "/providers/grok/health", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProviderConfigEndpoints(t *testing.T) {
	mux, _ := setupTestMux(t)

	// All config endpoints require a session
	rec := doJSON(t, mux, http.MethodGet, "/provider-configs", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token := signUp(t, mux, "bob@example.com")

	// Save
	apiKey := "sk-test-123"
	rec = doJSON(t, mux, http.MethodPost, "/provider-configs", token, SaveConfigRequest{
		Provider: "openai",
		APIKey:   &apiKey,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var summary models.ProviderConfigSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.True(t, summary.HasAPIKey)
	assert.NotContains(t, rec.Body.String(), apiKey, "plaintext key must never appear in a response")

	// List
	rec = doJSON(t, mux, http.MethodGet, "/provider-configs", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var summaries []models.ProviderConfigSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summaries))
	require.Len(t, summaries, 1)

	// Toggle
	rec = doJSON(t, mux, http.MethodPatch, fmt.Sprintf("/provider-configs/%s", summary.ID), token, ToggleConfigRequest{Enabled: false})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.False(t, summary.Enabled)

	// Another user cannot touch it
	otherToken := signUp(t, mux, "carol@example.com")
	rec = doJSON(t, mux, http.MethodDelete, fmt.Sprintf("/provider-configs/%s", summary.ID), otherToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Owner deletes
	rec = doJSON(t, mux, http.MethodDelete, fmt.Sprintf("/provider-configs/%s", summary.ID), token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// Unsupported provider rejected
	rec = doJSON(t, mux, http.MethodPost, "/provider-configs", token, SaveConfigRequest{Provider: "grok", APIKey: &apiKey})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
