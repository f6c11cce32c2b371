package domain

import (
	"errors"
	"net/http"

	apperrors "github.com/utafrali/petcare-user/pkg/errors"
)

// Account and credential failures.
var (
	ErrInvalidCredentials = apperrors.New("INVALID_CREDENTIALS", "Invalid credentials",
		http.StatusUnauthorized, apperrors.ErrUnauthorized)
	ErrAccountNotActivated = apperrors.New("ACCOUNT_NOT_ACTIVATED", "Account not activated",
		http.StatusUnauthorized, apperrors.ErrUnauthorized)
	ErrAccountLocked = apperrors.New("ACCOUNT_LOCKED", "Account locked",
		http.StatusUnauthorized, apperrors.ErrUnauthorized)
	ErrEmailAlreadyRegistered = apperrors.New("EMAIL_ALREADY_REGISTERED", "Email already registered",
		http.StatusConflict, apperrors.ErrAlreadyExists)
	ErrRoleNotFound = apperrors.New("ROLE_NOT_FOUND", "Role not found",
		http.StatusBadRequest, apperrors.ErrInvalidInput)
	ErrEmailNotFound = apperrors.New("EMAIL_NOT_FOUND", "Email not found",
		http.StatusNotFound, apperrors.ErrNotFound)
	ErrPasswordTooShort = apperrors.New("PASSWORD_TOO_SHORT", "Password must be at least 8 characters",
		http.StatusBadRequest, apperrors.ErrInvalidInput)
	ErrTooManyLoginAttempts = apperrors.New("TOO_MANY_LOGIN_ATTEMPTS", "Too many failed login attempts, try again later",
		http.StatusTooManyRequests, apperrors.ErrTooManyRequests)
	ErrEmailDeliveryFailed = apperrors.New("EMAIL_DELIVERY_FAILED", "Could not send activation email",
		http.StatusInternalServerError, apperrors.ErrInternal)
)

// Activation code failures.
var (
	ErrInvalidActivationCode = apperrors.New("INVALID_ACTIVATION_CODE", "Invalid activation code",
		http.StatusBadRequest, apperrors.ErrInvalidInput)
	ErrActivationCodeExpired = apperrors.New("ACTIVATION_CODE_EXPIRED", "Activation code has expired",
		http.StatusBadRequest, apperrors.ErrInvalidInput)
	ErrActivationCodeAlreadyUsed = apperrors.New("ACTIVATION_CODE_ALREADY_USED", "Activation code has already been used",
		http.StatusBadRequest, apperrors.ErrInvalidInput)
)

// Login session failures, reported on logout.
var (
	ErrTokenNotFound = apperrors.New("TOKEN_NOT_FOUND", "Invalid token",
		http.StatusUnauthorized, apperrors.ErrUnauthorized)
	ErrTokenAlreadyRevoked = apperrors.New("TOKEN_ALREADY_REVOKED", "Token is already revoked",
		http.StatusUnauthorized, apperrors.ErrUnauthorized)
	ErrTokenExpired = apperrors.New("TOKEN_EXPIRED", "Token is already expired",
		http.StatusUnauthorized, apperrors.ErrUnauthorized)
)

// Request authorization failures, reported by the session filter.
var (
	ErrSessionInvalid = apperrors.New("SESSION_INVALID", "Session invalid",
		http.StatusUnauthorized, apperrors.ErrUnauthorized)
	ErrSessionTerminated = apperrors.New("SESSION_TERMINATED", "Session terminated",
		http.StatusUnauthorized, apperrors.ErrUnauthorized)
	ErrSessionExpired = apperrors.New("SESSION_EXPIRED", "Session expired",
		http.StatusUnauthorized, apperrors.ErrUnauthorized)
)

// Password reset token failures.
var (
	ErrInvalidToken = apperrors.New("INVALID_TOKEN", "Invalid reset token",
		http.StatusBadRequest, apperrors.ErrInvalidInput)
	ErrTokenAlreadyUsed = apperrors.New("TOKEN_ALREADY_USED", "Reset token has already been used",
		http.StatusBadRequest, apperrors.ErrInvalidInput)
	ErrResetTokenExpired = apperrors.New("TOKEN_EXPIRED", "Reset token has expired",
		http.StatusBadRequest, apperrors.ErrInvalidInput)
)

// Matching failures.
var (
	ErrNoAdoptionPreferences = apperrors.New("NO_ADOPTION_PREFERENCES", "Adoption preferences are not set",
		http.StatusBadRequest, apperrors.ErrInvalidInput)
	ErrMatchingUnavailable = apperrors.New("MATCHING_UNAVAILABLE", "Matching service is unavailable",
		http.StatusServiceUnavailable, apperrors.ErrServiceUnavail)
)

// ErrTokenStateUnknown is returned by the token store when a conditional
// update affected no row and the follow-up read found the token usable, which
// only happens if it was issued between the two statements.
var ErrTokenStateUnknown = errors.New("token state changed concurrently")
