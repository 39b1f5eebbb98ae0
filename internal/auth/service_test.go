package auth

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"easyprompt/internal/models"
	"easyprompt/internal/security"
	"easyprompt/internal/storage"
	"easyprompt/internal/utils"
)

// fakeUserStore keeps users in memory with the same uniqueness rules as the
// database.
type fakeUserStore struct {
	users map[string]*models.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]*models.User)}
}

func (f *fakeUserStore) Create(ctx context.Context, email, passwordHash string, name *string) (*models.User, error) {
	key := strings.ToLower(email)
	if _, exists := f.users[key]; exists {
		return nil, storage.ErrDuplicateEmail
	}

	user := &models.User{
		ID:           uuid.New(),
		Email:        key,
		Name:         name,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}
	f.users[key] = user
	return user, nil
}

func (f *fakeUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	user, ok := f.users[strings.ToLower(email)]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeUserStore) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	for _, user := range f.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

// fakeSessionStore keeps sessions in memory. It is mutex-guarded so the
// background cleanup loop can run against it.
type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[string]*models.Session)}
}

func (f *fakeSessionStore) Create(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	session := &models.Session{
		ID:        uuid.New(),
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}
	f.sessions[tokenHash] = session
	return session, nil
}

func (f *fakeSessionStore) GetByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	session, ok := f.sessions[tokenHash]
	if !ok {
		return nil, storage.ErrSessionNotFound
	}
	return session, nil
}

func (f *fakeSessionStore) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.sessions, tokenHash)
	return nil
}

func (f *fakeSessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var deleted int64
	for hash, session := range f.sessions {
		if session.IsExpired() {
			delete(f.sessions, hash)
			deleted++
		}
	}
	return deleted, nil
}

func (f *fakeSessionStore) expire(tokenHash string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[tokenHash].ExpiresAt = time.Now().Add(-time.Minute)
}

func (f *fakeSessionStore) expireAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, session := range f.sessions {
		session.ExpiresAt = time.Now().Add(-time.Minute)
	}
}

func (f *fakeSessionStore) has(tokenHash string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.sessions[tokenHash]
	return ok
}

func setupAuthService() (*Service, *fakeSessionStore) {
	sessions := newFakeSessionStore()
	logger := utils.NewLogger("auth-test", utils.Error)
	return NewService(newFakeUserStore(), sessions, logger), sessions
}

func TestService_SignUpAndLogIn(t *testing.T) {
	service, _ := setupAuthService()
	ctx := context.Background()

	user, token, err := service.SignUp(ctx, "alice@example.com", "correct-horse", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.NotEqual(t, "correct-horse", user.PasswordHash)

	// Fresh session token resolves back to the user
	current, err := service.CurrentUser(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, current.ID)

	// Password round-trips through login
	loggedIn, token2, err := service.LogIn(ctx, "Alice@Example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)
	assert.NotEqual(t, token, token2)
}

func TestService_SignUpValidation(t *testing.T) {
	service, _ := setupAuthService()
	ctx := context.Background()

	_, _, err := service.SignUp(ctx, "not-an-email", "correct-horse", nil)
	assert.ErrorIs(t, err, ErrInvalidEmail)

	_, _, err = service.SignUp(ctx, "bob@example.com", "short", nil)
	assert.ErrorIs(t, err, ErrWeakPassword)

	_, _, err = service.SignUp(ctx, "carol@example.com", "correct-horse", nil)
	require.NoError(t, err)
	_, _, err = service.SignUp(ctx, "Carol@example.com", "correct-horse", nil)
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestService_LogInWrongCredentials(t *testing.T) {
	service, _ := setupAuthService()
	ctx := context.Background()

	_, _, err := service.SignUp(ctx, "dave@example.com", "correct-horse", nil)
	require.NoError(t, err)

	_, _, err = service.LogIn(ctx, "dave@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// Unknown emails produce the same error as wrong passwords
	_, _, err = service.LogIn(ctx, "nobody@example.com", "correct-horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestService_LogOut(t *testing.T) {
	service, _ := setupAuthService()
	ctx := context.Background()

	_, token, err := service.SignUp(ctx, "erin@example.com", "correct-horse", nil)
	require.NoError(t, err)

	require.NoError(t, service.LogOut(ctx, token))

	_, err = service.CurrentUser(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidSession)

	// Logging out twice is fine
	require.NoError(t, service.LogOut(ctx, token))
}

func TestService_CurrentUserRejectsBadTokens(t *testing.T) {
	service, sessions := setupAuthService()
	ctx := context.Background()

	_, err := service.CurrentUser(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidSession)

	_, err = service.CurrentUser(ctx, "no-such-token")
	assert.ErrorIs(t, err, ErrInvalidSession)

	// Expired sessions are rejected even if still stored
	_, token, err := service.SignUp(ctx, "frank@example.com", "correct-horse", nil)
	require.NoError(t, err)
	sessions.expireAll()
	_, err = service.CurrentUser(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestService_PurgeExpiredSessions(t *testing.T) {
	service, sessions := setupAuthService()
	ctx := context.Background()

	_, liveToken, err := service.SignUp(ctx, "grace@example.com", "correct-horse", nil)
	require.NoError(t, err)
	_, deadToken, err := service.LogIn(ctx, "grace@example.com", "correct-horse")
	require.NoError(t, err)

	deadHash := security.HashToken(deadToken)
	sessions.expire(deadHash)

	require.NoError(t, service.PurgeExpiredSessions(ctx))

	// Only the expired session is gone
	assert.False(t, sessions.has(deadHash))
	_, err = service.CurrentUser(ctx, liveToken)
	assert.NoError(t, err)
}

func TestService_SessionCleanupLoop(t *testing.T) {
	service, sessions := setupAuthService()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, token, err := service.SignUp(ctx, "heidi@example.com", "correct-horse", nil)
	require.NoError(t, err)
	hash := security.HashToken(token)
	sessions.expire(hash)

	service.StartSessionCleanup(ctx, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		return !sessions.has(hash)
	}, time.Second, 5*time.Millisecond)
}
