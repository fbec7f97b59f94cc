package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rkamal/authcore/internal/model"
)

// VerifyStatus is the tri-state outcome of token verification.
//
// Three states, not a boolean, because callers must react differently:
// Expired means "run the refresh flow and retry"; Invalid means "reject
// outright, re-authenticate". Collapsing them would force clients to
// re-login every 30 minutes.
type VerifyStatus int

const (
	StatusInvalid VerifyStatus = iota
	StatusExpired
	StatusValid
)

// VerifyResult carries the status plus the authenticated user ID when
// the status is StatusValid.
type VerifyResult struct {
	Status VerifyStatus
	UserID string
}

// Verifier verifies a bearer token of the expected type. Implemented by
// service.TokenManager.
type Verifier interface {
	Verify(ctx context.Context, token string, expected TokenType) VerifyResult
}

// UserLoader resolves a user ID to the full user record. Implemented by
// the user repository.
type UserLoader interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
}

// contextKey is unexported so only this package can put the
// authenticated user into a request context — no other package can
// collide with or shadow the value.
type contextKey struct{}

var userKey contextKey

// RequireAuth is the authentication gate for protected routes.
//
// It expects exactly `Authorization: Bearer <access token>`. Outcomes:
//
//	no header / wrong scheme      → 401 {"error":"No token provided"}
//	genuinely expired token       → 401 {"error":"Token expired","code":"TOKEN_EXPIRED"}
//	anything else wrong with it   → 401 {"error":"Invalid token"}
//	valid but user row is gone    → 401 {"error":"Invalid token"}
//
// A deleted user's token still carries a valid signature, so the gate
// loads the user row and rejects rather than letting handlers blow up
// on a missing user. On success the full user record is stored in the
// request context for UserFromContext.
func RequireAuth(verifier Verifier, users UserLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				writeAuthError(w, "No token provided", "")
				return
			}

			res := verifier.Verify(r.Context(), token, TokenTypeAccess)
			switch res.Status {
			case StatusExpired:
				writeAuthError(w, "Token expired", "TOKEN_EXPIRED")
				return
			case StatusValid:
				// fall through
			default:
				writeAuthError(w, "Invalid token", "")
				return
			}

			user, err := users.GetByID(r.Context(), res.UserID)
			if err != nil {
				writeAuthError(w, "Invalid token", "")
				return
			}

			ctx := context.WithValue(r.Context(), userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext retrieves the authenticated user set by RequireAuth.
// Returns (nil, false) on routes the gate did not run on.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(userKey).(*model.User)
	return user, ok
}

// bearerToken extracts the token from the Authorization header. The
// scheme match is strict: the value must be "Bearer" + single space +
// token, nothing else.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return "", false
	}
	return token, true
}

func writeAuthError(w http.ResponseWriter, message, code string) {
	body := map[string]string{"error": message}
	if code != "" {
		body["code"] = code
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(body) //nolint:errcheck // headers already sent
}
