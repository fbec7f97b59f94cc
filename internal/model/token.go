package model

import "time"

// TokenPair is one issued access+refresh credential for a user.
//
// Pairs are never deleted — when a new pair is issued the old rows are
// flipped to is_active=false and kept as an audit trail. The invariant
// "at most one row with is_active=true per user" is enforced by the
// token store's issue transaction, not by a constraint: deactivate-all
// and insert happen inside a single sql.Tx.
type TokenPair struct {
	ID           string    `json:"id"           db:"id"`
	UserID       string    `json:"userId"       db:"user_id"`
	AccessToken  string    `json:"accessToken"  db:"access_token"`
	RefreshToken string    `json:"refreshToken" db:"refresh_token"`
	ExpiresAt    time.Time `json:"expiresAt"    db:"expires_at"` // refresh horizon
	IsActive     bool      `json:"isActive"     db:"is_active"`
	CreatedAt    time.Time `json:"createdAt"    db:"created_at"`
}
