package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rkamal/authcore/internal/apperror"
)

func TestWriteError_Mapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
		wantCode   string
	}{
		{
			name:       "validation",
			err:        apperror.ValidationFailed("email", "Invalid email"),
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid email",
		},
		{
			name:       "conflict",
			err:        apperror.Conflict("Email already registered"),
			wantStatus: http.StatusBadRequest,
			wantError:  "Email already registered",
		},
		{
			name:       "credentials",
			err:        apperror.InvalidCredentials(),
			wantStatus: http.StatusUnauthorized,
			wantError:  "Invalid credentials",
		},
		{
			name:       "token expired",
			err:        apperror.TokenExpired(),
			wantStatus: http.StatusUnauthorized,
			wantError:  "Token expired",
			wantCode:   "TOKEN_EXPIRED",
		},
		{
			name:       "token invalid",
			err:        apperror.TokenInvalid(),
			wantStatus: http.StatusUnauthorized,
			wantError:  "Invalid token",
		},
		{
			name:       "not found",
			err:        apperror.NotFound("user", "abc"),
			wantStatus: http.StatusNotFound,
			wantError:  "user not found with id abc",
		},
		{
			name:       "unclassified errors stay opaque",
			err:        errors.New("pq: connection reset"),
			wantStatus: http.StatusInternalServerError,
			wantError:  "An internal error occurred",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantError, body.Error)
			assert.Equal(t, tt.wantCode, body.Code)
		})
	}
}

// A wrapped AppError must map the same as a bare one; services wrap
// with fmt.Errorf("%w") on the way up.
func TestWriteError_Wrapped(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, errors.Join(errors.New("context"), apperror.InvalidCredentials()))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
