package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Sentinel error identity ---

func TestSentinelErrors_AreDistinct(t *testing.T) {
	sentinels := []error{
		ErrNotFound, ErrAlreadyExists, ErrInvalidInput, ErrUnauthorized,
		ErrForbidden, ErrInternal, ErrConflict, ErrServiceUnavail, ErrTooManyRequests,
	}

	for i := 0; i < len(sentinels); i++ {
		for j := i + 1; j < len(sentinels); j++ {
			assert.NotEqual(t, sentinels[i], sentinels[j])
		}
	}
}

// --- AppError behavior ---

func TestAppError_ErrorString(t *testing.T) {
	inner := fmt.Errorf("db connection lost")
	withInner := &AppError{Code: "INTERNAL_ERROR", Message: "something broke", Err: inner}
	assert.Equal(t, "INTERNAL_ERROR: something broke: db connection lost", withInner.Error())

	bare := &AppError{Code: "NOT_FOUND", Message: "user not found"}
	assert.Equal(t, "NOT_FOUND: user not found", bare.Error())
}

func TestAppError_Unwrap(t *testing.T) {
	appErr := &AppError{Code: "NOT_FOUND", Message: "nope", Err: ErrNotFound}
	assert.True(t, errors.Is(appErr, ErrNotFound))
	assert.Nil(t, (&AppError{Code: "TEST"}).Unwrap())
}

func TestAppError_SurvivesWrapping(t *testing.T) {
	wrapped := fmt.Errorf("activate: %w", Unauthorized("session expired"))

	var appErr *AppError
	require.True(t, errors.As(wrapped, &appErr))
	assert.Equal(t, "session expired", appErr.Message)
	assert.True(t, errors.Is(wrapped, ErrUnauthorized))
}

// --- Constructor functions ---

func TestConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		code     string
		status   int
		sentinel error
	}{
		{"not found", NotFound("user", "42"), "NOT_FOUND", http.StatusNotFound, ErrNotFound},
		{"already exists", AlreadyExists("user", "email", "a@b.com"), "ALREADY_EXISTS", http.StatusConflict, ErrAlreadyExists},
		{"invalid input", InvalidInput("name is required"), "INVALID_INPUT", http.StatusBadRequest, ErrInvalidInput},
		{"unauthorized", Unauthorized("no token"), "UNAUTHORIZED", http.StatusUnauthorized, ErrUnauthorized},
		{"forbidden", Forbidden("admin only"), "FORBIDDEN", http.StatusForbidden, ErrForbidden},
		{"conflict", Conflict("already activated"), "CONFLICT", http.StatusConflict, ErrConflict},
		{"too many requests", TooManyRequests("slow down"), "TOO_MANY_REQUESTS", http.StatusTooManyRequests, ErrTooManyRequests},
		{"service unavailable", ServiceUnavailable("matching down"), "SERVICE_UNAVAILABLE", http.StatusServiceUnavailable, ErrServiceUnavail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.Status)
			assert.True(t, errors.Is(tt.err, tt.sentinel))
		})
	}
}

func TestNew(t *testing.T) {
	err := New("CODE_EXPIRED", "Activation code has expired", http.StatusBadRequest, ErrInvalidInput)
	assert.Equal(t, "CODE_EXPIRED", err.Code)
	assert.Equal(t, http.StatusBadRequest, err.Status)
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestInternal_HidesCause(t *testing.T) {
	cause := fmt.Errorf("pg: connection refused")
	err := Internal(cause)
	assert.Equal(t, "an internal error occurred", err.Message)
	assert.Equal(t, http.StatusInternalServerError, err.Status)
	assert.ErrorIs(t, err, cause)
}

// --- HTTPStatus ---

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{InvalidInput("x"), http.StatusBadRequest},
		{ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("wrap: %w", ErrAlreadyExists), http.StatusConflict},
		{ErrConflict, http.StatusConflict},
		{ErrUnauthorized, http.StatusUnauthorized},
		{ErrForbidden, http.StatusForbidden},
		{ErrTooManyRequests, http.StatusTooManyRequests},
		{ErrServiceUnavail, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err), tt.err.Error())
	}
}

func TestWrap(t *testing.T) {
	err := Wrap(ErrNotFound, "load user")
	assert.Equal(t, "load user: resource not found", err.Error())
	assert.True(t, errors.Is(err, ErrNotFound))
}
