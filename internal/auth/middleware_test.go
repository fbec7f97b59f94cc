package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rkamal/authcore/internal/model"
)

// =========================================================================
// FAKES
// =========================================================================

// fakeVerifier returns a canned result for a known token string and
// Invalid for everything else.
type fakeVerifier struct {
	token  string
	result VerifyResult
}

func (f *fakeVerifier) Verify(_ context.Context, token string, expected TokenType) VerifyResult {
	if expected != TokenTypeAccess {
		return VerifyResult{Status: StatusInvalid}
	}
	if token == f.token {
		return f.result
	}
	return VerifyResult{Status: StatusInvalid}
}

type fakeUserLoader struct {
	users map[string]*model.User
}

func (f *fakeUserLoader) GetByID(_ context.Context, id string) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, errors.New("user not found")
	}
	return u, nil
}

// gateTest runs one request through RequireAuth and returns the
// recorder plus whether the inner handler ran.
func gateTest(t *testing.T, verifier Verifier, users UserLoader, authHeader string) (*httptest.ResponseRecorder, bool, *model.User) {
	t.Helper()

	var (
		reached bool
		ctxUser *model.User
	)
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		ctxUser, _ = UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()

	RequireAuth(verifier, users)(inner).ServeHTTP(rec, req)
	return rec, reached, ctxUser
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response body is not JSON: %v", err)
	}
	return body
}

// =========================================================================
// GATE BEHAVIOUR
// =========================================================================

func TestRequireAuth_MissingToken(t *testing.T) {
	verifier := &fakeVerifier{}
	users := &fakeUserLoader{}

	for _, header := range []string{
		"",
		"Bearer",     // no token at all
		"Bearer ",    // empty token
		"bearer abc", // scheme is case-sensitive
		"Token abc",  // wrong scheme
		"Basic dXNlcjpwdw==",
	} {
		rec, reached, _ := gateTest(t, verifier, users, header)
		if reached {
			t.Errorf("header %q: inner handler ran", header)
		}
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("header %q: status = %d, want 401", header, rec.Code)
		}
		if body := decodeBody(t, rec); body["error"] != "No token provided" {
			t.Errorf("header %q: error = %q, want %q", header, body["error"], "No token provided")
		}
	}
}

func TestRequireAuth_ExpiredToken(t *testing.T) {
	verifier := &fakeVerifier{token: "expired-token", result: VerifyResult{Status: StatusExpired}}

	rec, reached, _ := gateTest(t, verifier, &fakeUserLoader{}, "Bearer expired-token")
	if reached {
		t.Error("inner handler ran for an expired token")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}

	body := decodeBody(t, rec)
	if body["error"] != "Token expired" {
		t.Errorf("error = %q, want %q", body["error"], "Token expired")
	}
	// The machine-readable code is what tells clients to refresh
	// instead of re-login.
	if body["code"] != "TOKEN_EXPIRED" {
		t.Errorf("code = %q, want TOKEN_EXPIRED", body["code"])
	}
}

func TestRequireAuth_InvalidToken(t *testing.T) {
	rec, reached, _ := gateTest(t, &fakeVerifier{}, &fakeUserLoader{}, "Bearer forged")
	if reached {
		t.Error("inner handler ran for an invalid token")
	}
	body := decodeBody(t, rec)
	if body["error"] != "Invalid token" {
		t.Errorf("error = %q, want %q", body["error"], "Invalid token")
	}
	if body["code"] != "" {
		t.Errorf("invalid token must not carry a code, got %q", body["code"])
	}
}

func TestRequireAuth_ValidToken(t *testing.T) {
	user := &model.User{ID: "user-1", Email: "a@x.com"}
	verifier := &fakeVerifier{token: "good", result: VerifyResult{Status: StatusValid, UserID: "user-1"}}
	users := &fakeUserLoader{users: map[string]*model.User{"user-1": user}}

	rec, reached, ctxUser := gateTest(t, verifier, users, "Bearer good")
	if !reached {
		t.Fatal("inner handler did not run for a valid token")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if ctxUser == nil || ctxUser.ID != "user-1" {
		t.Errorf("context user = %+v, want user-1", ctxUser)
	}
}

// A token can outlive its user. The gate must reject, not crash.
func TestRequireAuth_DeletedUser(t *testing.T) {
	verifier := &fakeVerifier{token: "good", result: VerifyResult{Status: StatusValid, UserID: "gone"}}

	rec, reached, _ := gateTest(t, verifier, &fakeUserLoader{}, "Bearer good")
	if reached {
		t.Error("inner handler ran for a deleted user")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "Invalid token" {
		t.Errorf("error = %q, want %q", body["error"], "Invalid token")
	}
}

func TestUserFromContext_Unset(t *testing.T) {
	if _, ok := UserFromContext(context.Background()); ok {
		t.Error("UserFromContext() = ok on an empty context")
	}
}
