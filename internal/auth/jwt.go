// Package auth provides the credential primitives for the service: the
// signed token codec, bcrypt password hashing, the OAuth provider
// registry, and the request-level auth gate.
//
// TOKEN MODEL:
// Every credential this service hands out is a JWT signed with a single
// process-wide HMAC secret. The claim set is deliberately tiny:
//
//	sub        — internal user ID
//	token_type — "access" or "refresh"
//	exp / iat  — lifetime
//
// The JWT alone is not the whole story for refresh tokens: those are
// additionally checked against the token store so they can be revoked
// before expiry (logout-everywhere, supersession). That check lives in
// the service layer — this package only encodes and decodes.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenType distinguishes short-lived access tokens from long-lived
// refresh tokens. It is a closed enum — Decode rejects anything else.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

const issuer = "authcore"

// Decode failure modes. Callers branch on these with errors.Is.
//
// Order of checks matters: the signature is verified before expiry, so a
// token that is both forged and expired reports ErrBadSignature, never
// ErrExpired. Expiry is a property only a genuine token can have.
var (
	ErrMalformed    = errors.New("auth: malformed token")
	ErrBadSignature = errors.New("auth: bad token signature")
	ErrExpired      = errors.New("auth: token expired")
)

// Claims is the decoded token payload.
type Claims struct {
	TokenType TokenType `json:"token_type"`
	jwt.RegisteredClaims
}

// UserID returns the subject claim.
func (c *Claims) UserID() string {
	return c.Subject
}

// Codec signs and verifies tokens with a fixed HMAC-SHA256 secret.
//
// The clock is injectable so expiry behaviour is testable without
// sleeping; production code uses time.Now.
type Codec struct {
	secret []byte
	now    func() time.Time
}

// NewCodec creates a Codec. The secret should be at least 32 bytes of
// random data in production (openssl rand -hex 32); anything under 16
// characters is rejected outright.
func NewCodec(secret string) (*Codec, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &Codec{secret: []byte(secret), now: time.Now}, nil
}

// NewCodecAt creates a Codec with a custom clock. Used by tests to move
// time forward past token expiry.
func NewCodecAt(secret string, now func() time.Time) (*Codec, error) {
	c, err := NewCodec(secret)
	if err != nil {
		return nil, err
	}
	c.now = now
	return c, nil
}

// Encode signs a token of the given type for userID, valid for ttl.
func (c *Codec) Encode(userID string, typ TokenType, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", errors.New("auth: user ID must not be empty")
	}
	now := c.now()

	claims := Claims{
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Decode parses and verifies a token string.
//
// Failure modes, in the order they are detected:
//   - ErrMalformed    — not parseable as a JWT, or an unknown token_type
//   - ErrBadSignature — signature does not verify against the secret
//     (includes algorithm-confusion attempts: only HS256 is accepted)
//   - ErrExpired      — genuine token past its exp claim
func (c *Codec) Decode(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
			}
			return c.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return c.now() }),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, fmt.Errorf("%w: %w", ErrBadSignature, err)
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, fmt.Errorf("%w: %w", ErrExpired, err)
		default:
			// Wrong issuer, missing exp, unexpected algorithm — none of
			// these can come from a token we issued.
			return nil, fmt.Errorf("%w: %w", ErrBadSignature, err)
		}
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrMalformed
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrMalformed)
	}
	switch claims.TokenType {
	case TokenTypeAccess, TokenTypeRefresh:
	default:
		return nil, fmt.Errorf("%w: unknown token type %q", ErrMalformed, claims.TokenType)
	}

	return claims, nil
}
