// Password hashing. bcrypt generates a fresh random salt per call and
// embeds it in the output, so the stored hash is self-contained — no
// separate salt column.
package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// defaultCost is the bcrypt work factor. Cost 12 takes roughly 250ms on
// current server hardware — negligible per login, brutal per brute-force
// guess. Tune it so hashing stays in the 200–300ms range.
const defaultCost = 12

// Hasher provides bcrypt hashing and verification.
//
// It is a struct rather than free functions so the cost can be lowered
// in tests: cost 4 (the bcrypt minimum) makes a hash take microseconds
// instead of a quarter second.
type Hasher struct {
	cost int
}

// NewHasher creates a Hasher with the production cost.
func NewHasher() *Hasher {
	return &Hasher{cost: defaultCost}
}

// NewHasherWithCost creates a Hasher with a custom cost. Intended for
// tests — do not use a cost below 12 in production.
func NewHasherWithCost(cost int) *Hasher {
	return &Hasher{cost: cost}
}

// Hash derives a salted one-way digest of the plaintext. The result is
// a self-contained string ($2a$12$<salt><digest>) safe to store as-is.
//
// bcrypt silently truncates inputs over 72 bytes; we reject them
// explicitly so callers are not surprised.
func (h *Hasher) Hash(plaintext string) (string, error) {
	if len(plaintext) > 72 {
		return "", fmt.Errorf("auth: password must be 72 bytes or fewer")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether plaintext matches the stored hash.
//
// It never returns an error: a malformed or empty hash (e.g. an
// OAuth-only account with no password) verifies as false, identically
// to a wrong password. The comparison itself is constant-time inside
// bcrypt, so response timing does not reveal how close a guess was.
func (h *Hasher) Verify(hash, plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
