// Package apperror defines the error taxonomy shared by the service and
// handler layers.
//
// The service layer returns these; the HTTP layer maps them to status
// codes with errors.Is. Every authentication-domain failure is a 4xx —
// only errors that match none of the sentinels surface as 500.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrValidation  = errors.New("validation error")
	ErrConflict    = errors.New("conflict")
	ErrCredentials = errors.New("invalid credentials")

	// Token failures collapse to exactly two externally visible outcomes:
	// ErrTokenExpired gets its own machine-readable code (TOKEN_EXPIRED) so
	// clients know to attempt the refresh flow; everything else — malformed,
	// bad signature, wrong type, revoked — is a generic invalid token.
	// Distinguishing them any further would leak which check failed.
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("invalid token")
)

// AppError carries a caller-safe message alongside the sentinel it wraps.
type AppError struct {
	Err     error  // sentinel, matched with errors.Is
	Message string // human-readable, safe to return to the client
	Field   string // optional: field causing a validation error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: message,
	}
}

// InvalidCredentials returns the one deliberately vague login failure.
// The message never says whether the email exists or the password was
// wrong — that difference is an account-enumeration oracle.
func InvalidCredentials() *AppError {
	return &AppError{
		Err:     ErrCredentials,
		Message: "Invalid credentials",
	}
}

func TokenExpired() *AppError {
	return &AppError{
		Err:     ErrTokenExpired,
		Message: "Token expired",
	}
}

func TokenInvalid() *AppError {
	return &AppError{
		Err:     ErrTokenInvalid,
		Message: "Invalid token",
	}
}
