// Package sqlite implements the repository interfaces on SQLite.
//
// The driver is modernc.org/sqlite — a pure-Go translation of the
// SQLite sources. No CGo, no C toolchain, cross-compiles everywhere Go
// does. For an auth service the embedded-database tradeoff is fine:
// one file, transactional, and the uniqueness constraints the schema
// leans on (users.email, oauth_links) are enforced in-process.
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	// Registers the "sqlite" driver with database/sql via its init().
	_ "modernc.org/sqlite"
)

// DB owns the connection pool and hands out the typed stores.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the database at path and runs migrations.
// Use ":memory:" in tests for a throwaway in-memory database.
func New(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	// An in-memory database exists per connection, so the pool must
	// stay at exactly one or queries would see different databases.
	if strings.Contains(path, ":memory:") {
		conn.SetMaxOpenConns(1)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets reads proceed while a write transaction (token issuance,
	// identity linking) is in flight.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}
	// Referential integrity: deleting a user cascades to oauth_links
	// and token_pairs. OFF by default in SQLite.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}
	return db, nil
}

// Close closes the connection pool. Always defer this after New.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Users returns the user store backed by this connection.
func (db *DB) Users() *UserStore {
	return &UserStore{conn: db.conn}
}

// Identities returns the OAuth identity store backed by this connection.
func (db *DB) Identities() *IdentityStore {
	return &IdentityStore{conn: db.conn}
}

// Tokens returns the token-pair store backed by this connection.
func (db *DB) Tokens() *TokenStore {
	return &TokenStore{conn: db.conn}
}

// migrate creates the schema. CREATE TABLE IF NOT EXISTS keeps the
// statements idempotent, so this runs safely on every start.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL DEFAULT '',
			name          TEXT NOT NULL DEFAULT '',
			last_login    DATETIME,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS oauth_links (
			id               TEXT PRIMARY KEY,
			user_id          TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			provider         TEXT NOT NULL,
			provider_user_id TEXT NOT NULL,
			created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (user_id, provider),
			UNIQUE (provider, provider_user_id)
		);
		CREATE INDEX IF NOT EXISTS idx_oauth_links_user_id ON oauth_links(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating oauth_links table: %w", err)
	}

	// token_pairs accumulates as an audit trail; superseded rows are
	// deactivated, never deleted. The (user_id, is_active) index serves
	// both HasActive and the deactivate-all step of issuance.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS token_pairs (
			id            TEXT PRIMARY KEY,
			user_id       TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			access_token  TEXT NOT NULL,
			refresh_token TEXT NOT NULL,
			expires_at    DATETIME NOT NULL,
			is_active     INTEGER NOT NULL DEFAULT 1,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_token_pairs_user_active ON token_pairs(user_id, is_active);
	`)
	if err != nil {
		return fmt.Errorf("creating token_pairs table: %w", err)
	}

	return nil
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure
// on the given column (e.g. "users.email"). modernc.org/sqlite exposes
// constraint failures through the error text.
func isUniqueViolation(err error, column string) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed: "+column)
}
