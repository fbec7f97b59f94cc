package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/rkamal/authcore/internal/model"
	"github.com/rkamal/authcore/internal/repository"
)

var _ repository.TokenRepository = (*TokenStore)(nil)

// TokenStore persists issued token pairs and enforces the one rule the
// table lives by: at most one active pair per user.
type TokenStore struct {
	conn *sql.DB
}

// Issue deactivates every active pair for pair.UserID and inserts the
// new pair as the single active row, all inside one transaction.
//
// SQLite serializes write transactions, so two concurrent Issue calls
// for the same user cannot interleave their deactivate and insert
// steps — whichever commits second deactivates the first one's row.
func (s *TokenStore) Issue(ctx context.Context, pair *model.TokenPair) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning issue transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after Commit

	if _, err := tx.ExecContext(ctx,
		`UPDATE token_pairs SET is_active = 0 WHERE user_id = ? AND is_active = 1`,
		pair.UserID,
	); err != nil {
		return fmt.Errorf("sqlite: deactivating pairs for user %s: %w", pair.UserID, err)
	}

	pair.ID = xid.New().String()
	pair.IsActive = true
	pair.CreatedAt = time.Now().UTC()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO token_pairs (id, user_id, access_token, refresh_token, expires_at, is_active, created_at)
		 VALUES (?, ?, ?, ?, ?, 1, ?)`,
		pair.ID, pair.UserID, pair.AccessToken, pair.RefreshToken, pair.ExpiresAt.UTC(), pair.CreatedAt,
	); err != nil {
		return fmt.Errorf("sqlite: inserting pair for user %s: %w", pair.UserID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing issue transaction: %w", err)
	}
	return nil
}

// DeactivateAll revokes every pair for the user. Idempotent.
func (s *TokenStore) DeactivateAll(ctx context.Context, userID string) error {
	if _, err := s.conn.ExecContext(ctx,
		`UPDATE token_pairs SET is_active = 0 WHERE user_id = ? AND is_active = 1`,
		userID,
	); err != nil {
		return fmt.Errorf("sqlite: deactivating pairs for user %s: %w", userID, err)
	}
	return nil
}

// HasActive reports whether the user has an active pair.
func (s *TokenStore) HasActive(ctx context.Context, userID string) (bool, error) {
	var one int
	err := s.conn.QueryRowContext(ctx,
		`SELECT 1 FROM token_pairs WHERE user_id = ? AND is_active = 1 LIMIT 1`,
		userID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlite: checking active pair for user %s: %w", userID, err)
	}
	return true, nil
}

// IsActiveRefresh reports whether refreshToken is the refresh token of
// the user's active pair. A pair superseded by a newer Issue no longer
// matches, so its refresh token is treated as revoked.
func (s *TokenStore) IsActiveRefresh(ctx context.Context, userID, refreshToken string) (bool, error) {
	var one int
	err := s.conn.QueryRowContext(ctx,
		`SELECT 1 FROM token_pairs WHERE user_id = ? AND refresh_token = ? AND is_active = 1 LIMIT 1`,
		userID, refreshToken,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlite: checking refresh token for user %s: %w", userID, err)
	}
	return true, nil
}
