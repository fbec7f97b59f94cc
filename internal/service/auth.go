package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/rkamal/authcore/internal/apperror"
	"github.com/rkamal/authcore/internal/auth"
	"github.com/rkamal/authcore/internal/model"
	"github.com/rkamal/authcore/internal/repository"
)

const (
	MinPasswordLength = 8
	MaxNameLength     = 200
)

// AuthService implements password-based registration and login, token
// refresh, and logout.
type AuthService struct {
	users    repository.UserRepository
	hasher   *auth.Hasher
	tokens   *TokenManager
	logger   *slog.Logger
	recorder Recorder
}

// NewAuthService creates an AuthService. Pass a nil recorder to disable
// event recording.
func NewAuthService(users repository.UserRepository, hasher *auth.Hasher, tokens *TokenManager, logger *slog.Logger, recorder Recorder) *AuthService {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &AuthService{
		users:    users,
		hasher:   hasher,
		tokens:   tokens,
		logger:   logger,
		recorder: recorder,
	}
}

// AuthResult bundles a user with their freshly issued credentials.
type AuthResult struct {
	User   *model.User
	Tokens *model.TokenPair
}

// NormalizeEmail lower-cases and trims an email. This is the one
// normalization applied everywhere an email is stored or looked up —
// registration, login, and OAuth linking must agree on it or the same
// person splits into two accounts.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a password account and issues its first token pair.
//
// Duplicate emails fail with "Email already registered". The up-front
// GetByEmail check gives the common case a clean error; the UNIQUE
// constraint in the user store catches the race where two registrations
// for the same email pass the check concurrently.
func (s *AuthService) Register(ctx context.Context, email, password, name string) (*AuthResult, error) {
	email = NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if len(password) < MinPasswordLength {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("Password must be at least %d characters", MinPasswordLength))
	}
	if len(name) > MaxNameLength {
		return nil, apperror.ValidationFailed("name", "Name is too long")
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperror.Conflict("Email already registered")
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/auth: checking email %s: %w", email, err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", err.Error())
	}

	user := &model.User{
		Email:        email,
		PasswordHash: hash,
		Name:         name,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	pair, err := s.tokens.IssuePair(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered", slog.String("userID", user.ID))
	s.recorder.UserRegistered()
	return &AuthResult{User: user, Tokens: pair}, nil
}

// Login verifies a password and issues a fresh token pair, revoking the
// previous one as a side effect of issuance.
//
// Unknown email and wrong password return the identical CredentialError;
// an OAuth-only account (no password hash) fails the same way. None of
// these reveal whether the email is registered.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = NormalizeEmail(email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.recorder.LoginFailed()
			return nil, apperror.InvalidCredentials()
		}
		return nil, fmt.Errorf("service/auth: looking up %s: %w", email, err)
	}

	// Verify returns false on an empty hash, so OAuth-only accounts
	// take the same rejection path as a wrong password.
	if !s.hasher.Verify(user.PasswordHash, password) {
		s.recorder.LoginFailed()
		return nil, apperror.InvalidCredentials()
	}

	now := time.Now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, fmt.Errorf("service/auth: stamping last login for %s: %w", user.ID, err)
	}
	user.LastLogin = &now

	pair, err := s.tokens.IssuePair(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))
	s.recorder.LoginSucceeded()
	return &AuthResult{User: user, Tokens: pair}, nil
}

// Refresh exchanges a valid refresh token for a new access token. The
// refresh token itself is untouched — it keeps working until it expires
// or a new pair supersedes it.
//
// Expired and invalid refresh tokens both come back as ErrTokenInvalid:
// a client whose refresh token stopped working re-authenticates either
// way, so there is nothing useful (and something leakable) in the
// distinction here.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	res := s.tokens.Verify(ctx, refreshToken, auth.TokenTypeRefresh)
	if res.Status != auth.StatusValid {
		return "", apperror.TokenInvalid()
	}
	return s.tokens.IssueAccess(res.UserID)
}

// Logout revokes every token pair the user holds ("logout everywhere").
// Outstanding access tokens remain cryptographically valid until they
// expire — at most one access-token lifetime — but refresh stops
// immediately.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	if err := s.tokens.RevokeAll(ctx, userID); err != nil {
		return err
	}
	s.logger.Info("user logged out", slog.String("userID", userID))
	return nil
}

// GetUser returns the user record for an internal ID.
func (s *AuthService) GetUser(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.ValidationFailed("id", "user ID must not be empty")
	}
	return s.users.GetByID(ctx, id)
}

func validateEmail(email string) error {
	if email == "" {
		return apperror.ValidationFailed("email", "Email is required")
	}
	// mail.ParseAddress accepts the RFC 5322 forms we care about and
	// rejects the junk; "Name <a@b>" style input is also rejected by
	// requiring the parsed address to round-trip to the bare input.
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return apperror.ValidationFailed("email", "Invalid email")
	}
	return nil
}
