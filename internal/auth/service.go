// Package auth implements account signup and opaque session tokens. Raw
// tokens are handed to the client once; the database only ever sees their
// SHA-256 hashes.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"easyprompt/internal/models"
	"easyprompt/internal/security"
	"easyprompt/internal/storage"
	"easyprompt/internal/utils"
)

var (
	// ErrInvalidCredentials is returned for a bad email/password pair. The
	// same error covers unknown emails so login failures don't reveal which
	// accounts exist.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrInvalidEmail is returned when the email does not parse.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrWeakPassword is returned when the password is too short.
	ErrWeakPassword = errors.New("password must be at least 8 characters")
	// ErrEmailTaken is returned when the email is already registered.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidSession is returned for missing, unknown, or expired tokens.
	ErrInvalidSession = errors.New("invalid or expired session")
)

const (
	minPasswordLength = 8
	sessionTokenBytes = 32
	sessionLifetime   = 30 * 24 * time.Hour
)

// UserStore is the subset of the user repository the service needs.
type UserStore interface {
	Create(ctx context.Context, email, passwordHash string, name *string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// SessionStore is the subset of the session repository the service needs.
type SessionStore interface {
	Create(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) (*models.Session, error)
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error)
	DeleteByTokenHash(ctx context.Context, tokenHash string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// Service manages accounts and sessions.
type Service struct {
	users    UserStore
	sessions SessionStore
	logger   *utils.Logger
}

// NewService creates an auth service
func NewService(users UserStore, sessions SessionStore, logger *utils.Logger) *Service {
	return &Service{
		users:    users,
		sessions: sessions,
		logger:   logger,
	}
}

// SignUp registers a new account and opens a session for it. Returns the
// user and the raw session token.
func (s *Service) SignUp(ctx context.Context, email, password string, name *string) (*models.User, string, error) {
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, "", ErrInvalidEmail
	}
	if len(password) < minPasswordLength {
		return nil, "", ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.users.Create(ctx, email, string(hash), name)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateEmail) {
			return nil, "", ErrEmailTaken
		}
		return nil, "", err
	}

	token, err := s.openSession(ctx, user.ID)
	if err != nil {
		return nil, "", err
	}

	s.logger.Info("User registered", "user_id", user.ID)
	return user, token, nil
}

// LogIn verifies the password and opens a session. Returns the user and the
// raw session token.
func (s *Service) LogIn(ctx context.Context, email, password string) (*models.User, string, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			// Burn comparable time so unknown emails are indistinguishable
			// from wrong passwords.
			bcrypt.CompareHashAndPassword([]byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"), []byte(password))
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.openSession(ctx, user.ID)
	if err != nil {
		return nil, "", err
	}

	s.logger.Info("User logged in", "user_id", user.ID)
	return user, token, nil
}

// LogOut deletes the session for the given raw token. Unknown tokens are a
// no-op.
func (s *Service) LogOut(ctx context.Context, token string) error {
	return s.sessions.DeleteByTokenHash(ctx, security.HashToken(token))
}

// CurrentUser resolves a raw session token to its user.
func (s *Service) CurrentUser(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrInvalidSession
	}

	session, err := s.sessions.GetByTokenHash(ctx, security.HashToken(token))
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, err
	}
	if session.IsExpired() {
		return nil, ErrInvalidSession
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, err
	}

	return user, nil
}

// PurgeExpiredSessions deletes every expired session row.
func (s *Service) PurgeExpiredSessions(ctx context.Context) error {
	deleted, err := s.sessions.DeleteExpired(ctx)
	if err != nil {
		return fmt.Errorf("failed to purge expired sessions: %w", err)
	}
	if deleted > 0 {
		s.logger.Info("Purged expired sessions", "count", deleted)
	}
	return nil
}

// StartSessionCleanup purges expired sessions every interval until ctx is
// cancelled. Purge failures are logged and retried on the next tick.
func (s *Service) StartSessionCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.PurgeExpiredSessions(ctx); err != nil {
					s.logger.Error("Session cleanup failed", "error", err)
				}
			}
		}
	}()
}

func (s *Service) openSession(ctx context.Context, userID uuid.UUID) (string, error) {
	token, err := security.GenerateSecureToken(sessionTokenBytes)
	if err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}

	if _, err := s.sessions.Create(ctx, userID, security.HashToken(token), time.Now().Add(sessionLifetime)); err != nil {
		return "", err
	}

	return token, nil
}
