// Package handler implements the HTTP surface: request parsing, response
// shaping, and nothing else. Business rules live in internal/service.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/rkamal/authcore/internal/apperror"
)

// errorResponse is the error body for every endpoint. Code is only set
// for failures clients are expected to branch on (TOKEN_EXPIRED,
// INVALID_OR_EXPIRED).
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError translates a domain error into the wire format.
//
// The mapping is deliberately lossy: all authentication-domain failures
// are 4xx, and the body never says more than the apperror message the
// service chose to expose. Anything unmatched is an internal error —
// logged server-side, returned as an opaque 500.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		code := ""

		switch {
		case errors.Is(err, apperror.ErrValidation),
			errors.Is(err, apperror.ErrConflict):
			status = http.StatusBadRequest
		case errors.Is(err, apperror.ErrCredentials):
			status = http.StatusUnauthorized
		case errors.Is(err, apperror.ErrTokenExpired):
			status = http.StatusUnauthorized
			code = "TOKEN_EXPIRED"
		case errors.Is(err, apperror.ErrTokenInvalid):
			status = http.StatusUnauthorized
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
		}

		writeJSON(w, status, errorResponse{Error: appErr.Message, Code: code})
		return
	}

	slog.Error("internal error", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "An internal error occurred"})
}
