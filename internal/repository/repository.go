// Package repository declares the storage interfaces the service layer
// programs against. The sqlite subpackage provides the implementation;
// tests substitute in-memory fakes.
package repository

import (
	"context"
	"time"

	"github.com/rkamal/authcore/internal/model"
)

// UserRepository is the persistence boundary for user records.
//
// Emails are stored case-normalized; callers are expected to normalize
// before lookups (the service layer owns that rule).
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}

// IdentityRepository handles the OAuth find-or-create-and-link step.
type IdentityRepository interface {
	// FindOrCreateWithLink resolves a provider-asserted profile to a
	// local user, creating the user and/or the provider link as needed.
	// The whole operation is one transaction: a user created for OAuth
	// is never observable without its link, and repeating the call with
	// the same profile is a no-op beyond the lookup.
	//
	// created reports whether a new user row was inserted.
	FindOrCreateWithLink(ctx context.Context, email, name string, provider model.Provider, providerUserID string) (user *model.User, created bool, err error)

	// LinksForUser returns the provider links owned by a user, in
	// creation order.
	LinksForUser(ctx context.Context, userID string) ([]model.OAuthLink, error)
}

// TokenRepository is the persistence boundary for issued token pairs.
type TokenRepository interface {
	// Issue atomically deactivates every active pair for the user and
	// inserts the new pair as the single active one. Two concurrent
	// issues for the same user serialize on the transaction; neither
	// outcome leaves two active rows.
	Issue(ctx context.Context, pair *model.TokenPair) error

	// DeactivateAll flips is_active off on every pair for the user.
	// Idempotent; a user with no active pairs is a no-op.
	DeactivateAll(ctx context.Context, userID string) error

	// HasActive reports whether the user currently has an active pair.
	HasActive(ctx context.Context, userID string) (bool, error)

	// IsActiveRefresh reports whether refreshToken belongs to the
	// user's currently active pair. Refresh verification uses this to
	// detect revocation: a superseded pair's refresh token is inactive
	// even though the user has a (newer) active pair.
	IsActiveRefresh(ctx context.Context, userID, refreshToken string) (bool, error)
}
