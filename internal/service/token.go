// Package service contains the business logic layer: token lifecycle,
// password authentication, and OAuth identity linking. Handlers call
// into here; this package calls the repositories and auth primitives.
// Nothing in this package knows about HTTP.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rkamal/authcore/internal/auth"
	"github.com/rkamal/authcore/internal/model"
	"github.com/rkamal/authcore/internal/repository"
)

// Default token lifetimes; overridable through TokenManagerOptions
// (wired from config in main).
const (
	DefaultAccessTokenTTL  = 30 * time.Minute
	DefaultRefreshTokenTTL = 30 * 24 * time.Hour
)

// TokenManager orchestrates issuance and verification of token pairs.
//
// Issuance = encode two claims (access + refresh) and persist them via
// the token store's atomic issue. Verification = decode via the codec,
// then for refresh tokens consult the store so revocation works.
type TokenManager struct {
	codec      *auth.Codec
	tokens     repository.TokenRepository
	accessTTL  time.Duration
	refreshTTL time.Duration
	logger     *slog.Logger
	recorder   Recorder
}

// TokenManagerOptions tune a TokenManager. Zero values fall back to the
// package defaults.
type TokenManagerOptions struct {
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	Recorder        Recorder
}

// NewTokenManager creates a TokenManager.
func NewTokenManager(codec *auth.Codec, tokens repository.TokenRepository, logger *slog.Logger, opts TokenManagerOptions) *TokenManager {
	if opts.AccessTokenTTL <= 0 {
		opts.AccessTokenTTL = DefaultAccessTokenTTL
	}
	if opts.RefreshTokenTTL <= 0 {
		opts.RefreshTokenTTL = DefaultRefreshTokenTTL
	}
	if opts.Recorder == nil {
		opts.Recorder = NopRecorder{}
	}
	return &TokenManager{
		codec:      codec,
		tokens:     tokens,
		accessTTL:  opts.AccessTokenTTL,
		refreshTTL: opts.RefreshTokenTTL,
		logger:     logger,
		recorder:   opts.Recorder,
	}
}

// IssuePair encodes a fresh access+refresh pair for the user and stores
// it as their single active pair. Any previously active pair is
// deactivated in the same transaction, which is what makes old refresh
// tokens stop verifying.
func (m *TokenManager) IssuePair(ctx context.Context, userID string) (*model.TokenPair, error) {
	accessToken, err := m.codec.Encode(userID, auth.TokenTypeAccess, m.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("service/token: encoding access token for user %s: %w", userID, err)
	}
	refreshToken, err := m.codec.Encode(userID, auth.TokenTypeRefresh, m.refreshTTL)
	if err != nil {
		return nil, fmt.Errorf("service/token: encoding refresh token for user %s: %w", userID, err)
	}

	pair := &model.TokenPair{
		UserID:       userID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    time.Now().Add(m.refreshTTL),
	}
	if err := m.tokens.Issue(ctx, pair); err != nil {
		return nil, fmt.Errorf("service/token: storing pair for user %s: %w", userID, err)
	}

	m.recorder.TokensIssued()
	return pair, nil
}

// IssueAccess encodes a standalone access token. Used by the refresh
// flow, which replaces only the short-lived half of the pair.
func (m *TokenManager) IssueAccess(userID string) (string, error) {
	token, err := m.codec.Encode(userID, auth.TokenTypeAccess, m.accessTTL)
	if err != nil {
		return "", fmt.Errorf("service/token: encoding access token for user %s: %w", userID, err)
	}
	return token, nil
}

// Verify decides what a presented token is worth:
//
//	malformed, forged, wrong type, revoked → StatusInvalid
//	genuine but past its expiry            → StatusExpired
//	otherwise                              → StatusValid + user ID
//
// Only refresh tokens touch the store: an access token is pure
// cryptography, but a refresh token must still be the user's active one
// (logout or a newer pair revokes it).
//
// A store failure during the revocation check fails closed — the token
// reports Invalid rather than being accepted unverified.
func (m *TokenManager) Verify(ctx context.Context, token string, expected auth.TokenType) auth.VerifyResult {
	result := m.verify(ctx, token, expected)
	m.recorder.TokenVerified(result.Status)
	return result
}

func (m *TokenManager) verify(ctx context.Context, token string, expected auth.TokenType) auth.VerifyResult {
	claims, err := m.codec.Decode(token)
	if err != nil {
		if errors.Is(err, auth.ErrExpired) {
			return auth.VerifyResult{Status: auth.StatusExpired}
		}
		return auth.VerifyResult{Status: auth.StatusInvalid}
	}

	if claims.TokenType != expected {
		return auth.VerifyResult{Status: auth.StatusInvalid}
	}

	if expected == auth.TokenTypeRefresh {
		active, err := m.tokens.IsActiveRefresh(ctx, claims.UserID(), token)
		if err != nil {
			m.logger.Error("token revocation check failed",
				slog.String("userID", claims.UserID()),
				slog.String("error", err.Error()),
			)
			return auth.VerifyResult{Status: auth.StatusInvalid}
		}
		if !active {
			return auth.VerifyResult{Status: auth.StatusInvalid}
		}
	}

	return auth.VerifyResult{Status: auth.StatusValid, UserID: claims.UserID()}
}

// RevokeAll deactivates every pair the user holds; their outstanding
// refresh tokens verify as Invalid from this point on.
func (m *TokenManager) RevokeAll(ctx context.Context, userID string) error {
	if err := m.tokens.DeactivateAll(ctx, userID); err != nil {
		return fmt.Errorf("service/token: revoking pairs for user %s: %w", userID, err)
	}
	return nil
}
