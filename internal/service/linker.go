package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rkamal/authcore/internal/apperror"
	"github.com/rkamal/authcore/internal/auth"
	"github.com/rkamal/authcore/internal/repository"
)

// IdentityLinker turns a verified provider profile into a local session:
// find or create the user, make sure the provider is linked, stamp
// last_login, and issue a token pair.
//
// IDENTITY MERGE POLICY — "trust provider-asserted email":
// The email in the profile is the join key. If any provider asserts an
// email that an existing account owns, that login is treated as the
// existing account's owner and the provider is linked to it, without
// re-verifying that the person controls the mailbox. This mirrors how
// the providers themselves behave but it is a coarse policy: a provider
// that lets users claim unverified emails could be used to take over a
// local account. TrustProviderEmail(false) disables the merge — a
// profile whose email belongs to an account without a link for that
// provider is then rejected with a conflict instead of auto-linked.
type IdentityLinker struct {
	identities   repository.IdentityRepository
	users        repository.UserRepository
	tokens       *TokenManager
	logger       *slog.Logger
	recorder     Recorder
	mergeByEmail bool
}

// LinkerOption customizes an IdentityLinker.
type LinkerOption func(*IdentityLinker)

// TrustProviderEmail controls the email merge policy described on
// IdentityLinker. Default true.
func TrustProviderEmail(trust bool) LinkerOption {
	return func(l *IdentityLinker) { l.mergeByEmail = trust }
}

// WithLinkerRecorder wires a metrics recorder.
func WithLinkerRecorder(r Recorder) LinkerOption {
	return func(l *IdentityLinker) { l.recorder = r }
}

// NewIdentityLinker creates an IdentityLinker.
func NewIdentityLinker(identities repository.IdentityRepository, users repository.UserRepository, tokens *TokenManager, logger *slog.Logger, opts ...LinkerOption) *IdentityLinker {
	l := &IdentityLinker{
		identities:   identities,
		users:        users,
		tokens:       tokens,
		logger:       logger,
		recorder:     NopRecorder{},
		mergeByEmail: true,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Login handles one OAuth callback end to end.
//
// Idempotent by construction: repeating a callback with the identical
// profile finds the same user and leaves the single existing link in
// place; the only observable difference is a fresh token pair (which
// revokes the previous one, as any login does).
func (l *IdentityLinker) Login(ctx context.Context, profile auth.Profile) (*AuthResult, error) {
	email := NormalizeEmail(profile.Email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if profile.ProviderUserID == "" {
		return nil, apperror.ValidationFailed("provider_user_id", "Provider profile has no user ID")
	}

	if !l.mergeByEmail {
		if err := l.rejectUnlinkedMerge(ctx, email, profile); err != nil {
			return nil, err
		}
	}

	user, created, err := l.identities.FindOrCreateWithLink(ctx, email, profile.Name, profile.Provider, profile.ProviderUserID)
	if err != nil {
		return nil, fmt.Errorf("service/linker: resolving %s profile for %s: %w", profile.Provider, email, err)
	}

	now := time.Now().UTC()
	if err := l.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, fmt.Errorf("service/linker: stamping last login for %s: %w", user.ID, err)
	}
	user.LastLogin = &now

	pair, err := l.tokens.IssuePair(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	l.logger.Info("oauth login",
		slog.String("userID", user.ID),
		slog.String("provider", string(profile.Provider)),
		slog.Bool("newUser", created),
	)
	l.recorder.OAuthLogin(string(profile.Provider))
	return &AuthResult{User: user, Tokens: pair}, nil
}

// rejectUnlinkedMerge enforces the strict policy: an existing account
// may only be logged into by a provider that is already linked to it.
func (l *IdentityLinker) rejectUnlinkedMerge(ctx context.Context, email string, profile auth.Profile) error {
	user, err := l.users.GetByEmail(ctx, email)
	if errors.Is(err, apperror.ErrNotFound) {
		// No such account — a brand-new user is always allowed.
		return nil
	}
	if err != nil {
		// Any other failure means we could not check the policy at all.
		// Fail the login rather than quietly fall back to auto-linking.
		return fmt.Errorf("service/linker: looking up account for merge check: %w", err)
	}
	links, err := l.identities.LinksForUser(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("service/linker: listing links for %s: %w", user.ID, err)
	}
	for _, link := range links {
		if link.Provider == profile.Provider && link.ProviderUserID == profile.ProviderUserID {
			return nil
		}
	}
	return apperror.Conflict("An account with this email already exists")
}
