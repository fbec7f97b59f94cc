package model

import (
	"fmt"
	"time"
)

// Provider identifies an external OAuth identity provider.
//
// It is a closed enum: ParseProvider rejects anything outside the four
// supported values, so the rest of the codebase never has to re-validate
// the string.
type Provider string

const (
	ProviderGoogle   Provider = "google"
	ProviderFacebook Provider = "facebook"
	ProviderGitHub   Provider = "github"
	ProviderLinkedIn Provider = "linkedin"
)

// Providers lists every supported provider, in registration order.
var Providers = []Provider{ProviderGoogle, ProviderFacebook, ProviderGitHub, ProviderLinkedIn}

// ParseProvider validates a provider name from an untrusted source
// (URL path, database row) and returns the typed value.
func ParseProvider(s string) (Provider, error) {
	switch Provider(s) {
	case ProviderGoogle, ProviderFacebook, ProviderGitHub, ProviderLinkedIn:
		return Provider(s), nil
	}
	return "", fmt.Errorf("model: unsupported provider %q", s)
}

// OAuthLink ties a local user to one external provider identity.
//
// Uniqueness is enforced twice in the database:
//   - (user_id, provider): a user links a given provider at most once
//   - (provider, provider_user_id): one external account maps to one user
//
// Links are immutable after creation. They are only removed when the
// owning user row is deleted (ON DELETE CASCADE).
type OAuthLink struct {
	ID             string    `json:"id"             db:"id"`
	UserID         string    `json:"userId"         db:"user_id"`
	Provider       Provider  `json:"provider"       db:"provider"`
	ProviderUserID string    `json:"providerUserId" db:"provider_user_id"`
	CreatedAt      time.Time `json:"createdAt"      db:"created_at"`
}
