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

// compile-time check that *UserStore implements repository.UserRepository
var _ repository.UserRepository = (*UserStore)(nil)

// UserStore persists user records.
type UserStore struct {
	conn *sql.DB
}

// Create inserts a new user. The ID and timestamps are assigned here;
// the caller's struct is updated in place.
//
// A duplicate email surfaces as apperror.ErrConflict — the UNIQUE
// constraint on users.email is the authoritative duplicate check, not
// the read-then-write in the service layer (which can race).
func (s *UserStore) Create(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, name, last_login, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Name,
		nullTime(user.LastLogin),
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "users.email") {
			return apperror.Conflict("Email already registered")
		}
		return fmt.Errorf("sqlite: inserting user %s: %w", user.Email, err)
	}
	return nil
}

// GetByID returns the user with the given internal ID, or
// apperror.ErrNotFound.
func (s *UserStore) GetByID(ctx context.Context, id string) (*model.User, error) {
	return scanUser(s.conn.QueryRowContext(ctx,
		`SELECT id, email, password_hash, name, last_login, created_at, updated_at
		 FROM users WHERE id = ?`, id), id)
}

// GetByEmail returns the user with the given (already normalized)
// email, or apperror.ErrNotFound.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return scanUser(s.conn.QueryRowContext(ctx,
		`SELECT id, email, password_hash, name, last_login, created_at, updated_at
		 FROM users WHERE email = ?`, email), email)
}

// UpdateLastLogin stamps the user's last_login. Losing this write in a
// race only makes last_login a few requests stale, which is acceptable,
// so it runs outside any transaction.
func (s *UserStore) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	res, err := s.conn.ExecContext(ctx,
		`UPDATE users SET last_login = ?, updated_at = ? WHERE id = ?`,
		at.UTC(), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating last_login for user %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}

func scanUser(row *sql.Row, key string) (*model.User, error) {
	var (
		u         model.User
		lastLogin sql.NullTime
	)
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Name,
		&lastLogin,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", key)
		}
		return nil, fmt.Errorf("sqlite: scanning user %s: %w", key, err)
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLogin = &t
	}
	return &u, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
