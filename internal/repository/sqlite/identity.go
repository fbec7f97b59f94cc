package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/rkamal/authcore/internal/apperror"
	"github.com/rkamal/authcore/internal/model"
	"github.com/rkamal/authcore/internal/repository"
)

var _ repository.IdentityRepository = (*IdentityStore)(nil)

// IdentityStore persists the user↔provider links created by OAuth logins.
type IdentityStore struct {
	conn *sql.DB
}

// FindOrCreateWithLink resolves a provider-asserted profile to a local
// user inside one transaction:
//
//	user exists, link exists   → no writes
//	user exists, link missing  → insert the link
//	user missing               → insert user + link together
//
// The user+link insert pair commits atomically, so a user created for
// OAuth is never observable without its link — a crash between the two
// inserts rolls both back.
//
// Two concurrent first logins for the same brand-new email both reach
// the insert; one loses on the users.email UNIQUE constraint. The loser
// retries once, now finding the winner's row — the conflict is the
// serialization mechanism, not a failure.
func (s *IdentityStore) FindOrCreateWithLink(ctx context.Context, email, name string, provider model.Provider, providerUserID string) (*model.User, bool, error) {
	user, created, err := s.findOrCreateWithLink(ctx, email, name, provider, providerUserID)
	if err != nil && (isUniqueViolation(err, "users.email") || isUniqueViolation(err, "oauth_links.user_id, oauth_links.provider")) {
		user, created, err = s.findOrCreateWithLink(ctx, email, name, provider, providerUserID)
	}
	return user, created, err
}

func (s *IdentityStore) findOrCreateWithLink(ctx context.Context, email, name string, provider model.Provider, providerUserID string) (*model.User, bool, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("sqlite: beginning identity transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after Commit

	user, err := s.lookupUser(ctx, tx, email)
	created := false
	switch {
	case err == nil:
		// Existing account; make sure this provider is linked.
	case errors.Is(err, sql.ErrNoRows):
		user = &model.User{
			ID:        xid.New().String(),
			Email:     email,
			Name:      name,
			CreatedAt: time.Now().UTC(),
			UpdatedAt: time.Now().UTC(),
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO users (id, email, password_hash, name, created_at, updated_at)
			 VALUES (?, ?, '', ?, ?, ?)`,
			user.ID, user.Email, user.Name, user.CreatedAt, user.UpdatedAt,
		)
		if err != nil {
			return nil, false, fmt.Errorf("sqlite: inserting OAuth user %s: %w", email, err)
		}
		created = true
	default:
		return nil, false, fmt.Errorf("sqlite: looking up user %s: %w", email, err)
	}

	// Repeat logins are idempotent: an existing (user, provider) link
	// is left untouched. A provider identity already linked to a
	// different user is a conflict — silently re-pointing it would let
	// one provider account log into two local accounts.
	var one int
	err = tx.QueryRowContext(ctx,
		`SELECT 1 FROM oauth_links WHERE user_id = ? AND provider = ?`,
		user.ID, string(provider),
	).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx,
			`INSERT INTO oauth_links (id, user_id, provider, provider_user_id, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			xid.New().String(), user.ID, string(provider), providerUserID, time.Now().UTC(),
		)
		if err != nil {
			if isUniqueViolation(err, "oauth_links.provider, oauth_links.provider_user_id") {
				return nil, false, apperror.Conflict("This provider account is already linked to another user")
			}
			return nil, false, fmt.Errorf("sqlite: linking %s to user %s: %w", provider, user.ID, err)
		}
	case err != nil:
		return nil, false, fmt.Errorf("sqlite: checking %s link for user %s: %w", provider, user.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("sqlite: committing identity transaction: %w", err)
	}
	return user, created, nil
}

func (s *IdentityStore) lookupUser(ctx context.Context, tx *sql.Tx, email string) (*model.User, error) {
	var (
		u         model.User
		lastLogin sql.NullTime
	)
	err := tx.QueryRowContext(ctx,
		`SELECT id, email, password_hash, name, last_login, created_at, updated_at
		 FROM users WHERE email = ?`, email,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &lastLogin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLogin = &t
	}
	return &u, nil
}

// LinksForUser returns a user's provider links in creation order.
func (s *IdentityStore) LinksForUser(ctx context.Context, userID string) ([]model.OAuthLink, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, user_id, provider, provider_user_id, created_at
		 FROM oauth_links WHERE user_id = ? ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing links for user %s: %w", userID, err)
	}
	defer rows.Close()

	var links []model.OAuthLink
	for rows.Next() {
		var (
			l        model.OAuthLink
			provider string
		)
		if err := rows.Scan(&l.ID, &l.UserID, &provider, &l.ProviderUserID, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning link row: %w", err)
		}
		l.Provider = model.Provider(provider)
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating link rows: %w", err)
	}
	return links, nil
}
