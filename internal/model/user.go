// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered account.
//
// Accounts come in two flavours that share this one record:
//   - Password accounts, created via /auth/register. PasswordHash is set.
//   - OAuth-only accounts, created on first provider login. PasswordHash
//     is empty — there is no password to verify, ever.
//
// Email is the cross-provider identity key, stored lower-cased. The UNIQUE
// constraint on users.email is what makes "two providers asserting the same
// email are the same person" safe against concurrent first logins.
//
// WHY PasswordHash string (not *string)?
// An empty string already means "no password set". A nullable pointer would
// add a second way to express the same thing. The hash is never serialized
// to JSON (`json:"-"`), so the zero value leaks nothing.
type User struct {
	ID           string     `json:"id"        db:"id"`
	Email        string     `json:"email"     db:"email"`
	PasswordHash string     `json:"-"         db:"password_hash"` // empty for OAuth-only accounts
	Name         string     `json:"name"      db:"name"`
	LastLogin    *time.Time `json:"lastLogin" db:"last_login"` // nil until the first login
	CreatedAt    time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time  `json:"updatedAt" db:"updated_at"`
}

// HasPassword reports whether this account can authenticate with a password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}
