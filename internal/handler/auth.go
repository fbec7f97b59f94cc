package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/rkamal/authcore/internal/apperror"
	"github.com/rkamal/authcore/internal/auth"
	"github.com/rkamal/authcore/internal/service"
)

// authService is the slice of the service layer these handlers call.
// *service.AuthService implements it.
type authService interface {
	Register(ctx context.Context, email, password, name string) (*service.AuthResult, error)
	Login(ctx context.Context, email, password string) (*service.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	Logout(ctx context.Context, userID string) error
}

// AuthHandler serves password registration, login, refresh, and logout.
type AuthHandler struct {
	auth   authService
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(authSvc authService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: authSvc, logger: logger}
}

// authResponse is the success body for register and login. The access
// token rides in "token" and the refresh token alongside it, so clients
// can run the refresh flow without re-authenticating.
type authResponse struct {
	Token        string    `json:"token"`
	RefreshToken string    `json:"refresh_token"`
	User         *userView `json:"user"`
}

// HandleRegister creates a password account.
//
// HTTP: POST /auth/register  {email, password, name?}
// 200 {token, refresh_token, user} | 400 invalid email, weak password,
// or duplicate email ("Email already registered").
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "Invalid request body"))
		return
	}

	result, err := h.auth.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, authResponse{
		Token:        result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
		User:         newUserView(result.User),
	})
}

// HandleLogin authenticates with email and password.
//
// HTTP: POST /auth/login  {email, password}
// 200 {token, refresh_token, user} | 401 on any credential failure,
// with a body that does not reveal whether the email exists.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "Invalid request body"))
		return
	}

	result, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, authResponse{
		Token:        result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
		User:         newUserView(result.User),
	})
}

// HandleRefresh exchanges a refresh token for a new access token.
//
// HTTP: POST /auth/refresh  {refresh_token}
// 200 {access_token} | 401 INVALID_OR_EXPIRED.
//
// It lives outside the auth gate: the caller's access token is expired
// by definition when this endpoint matters.
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeError(w, apperror.ValidationFailed("refresh_token", "Refresh token required"))
		return
	}

	accessToken, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		// Only a token-domain rejection earns the opaque 401. Anything
		// else is an internal failure and must surface as one.
		if errors.Is(err, apperror.ErrTokenInvalid) || errors.Is(err, apperror.ErrTokenExpired) {
			writeJSON(w, http.StatusUnauthorized, errorResponse{
				Error: "Invalid or expired refresh token",
				Code:  "INVALID_OR_EXPIRED",
			})
			return
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"access_token": accessToken})
}

// HandleLogout revokes every token pair the caller holds.
//
// HTTP: POST /auth/logout  (protected)
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		// Unreachable when the route is registered behind RequireAuth.
		writeError(w, apperror.TokenInvalid())
		return
	}

	if err := h.auth.Logout(r.Context(), user.ID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}
