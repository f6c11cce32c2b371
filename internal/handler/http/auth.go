package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/utafrali/petcare-user/internal/domain"
	"github.com/utafrali/petcare-user/internal/service"
	"github.com/utafrali/petcare-user/pkg/httputil"
	"github.com/utafrali/petcare-user/pkg/validator"
)

// AuthService is the account lifecycle used by AuthHandler.
// *service.AuthService satisfies it.
type AuthService interface {
	Register(ctx context.Context, input service.RegisterInput) (*domain.User, error)
	Activate(ctx context.Context, code string) (*domain.User, error)
	Authenticate(ctx context.Context, email, password string) (*service.LoginResult, error)
	Logout(ctx context.Context, token string) error
	InitiateReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
}

// AuthHandler handles HTTP requests for auth endpoints.
type AuthHandler struct {
	service AuthService
	logger  *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(svc AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{service: svc, logger: logger}
}

// --- Request DTOs ---

// RegisterRequest is the JSON request body for registration. Password
// length is checked by the service so the caller gets PASSWORD_TOO_SHORT.
type RegisterRequest struct {
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" validate:"required,max=100"`
	Email     string `json:"email" validate:"required,email,max=255"`
	Password  string `json:"password" validate:"required"`
	Role      string `json:"role" validate:"omitempty,max=50"`
}

// ActivateRequest is the JSON request body for account activation.
type ActivateRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric_code"`
}

// LoginRequest is the JSON request body for login. Email format is not
// validated so every bad login gets the same answer.
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// ForgotPasswordRequest is the JSON request body for starting a reset.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest is the JSON request body for completing a reset.
type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

// --- Response types ---

// RegisterResponse is returned with 201 on registration.
type RegisterResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	UserID  int64  `json:"userId"`
}

// LoginResponse is returned on a successful login.
type LoginResponse struct {
	Success   bool      `json:"success"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Message   string    `json:"message"`
}

// --- Handlers ---

// Register handles POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	user, err := h.service.Register(r.Context(), service.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
		Role:      req.Role,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, RegisterResponse{
		Success: true,
		Message: "Registration successful, check your email for the activation code",
		UserID:  user.ID,
	})
}

// Activate handles POST /auth/activate
func (h *AuthHandler) Activate(w http.ResponseWriter, r *http.Request) {
	var req ActivateRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}
	h.activate(w, r, req.Code)
}

// ActivateAccount handles GET /auth/activate-account?token=
func (h *AuthHandler) ActivateAccount(w http.ResponseWriter, r *http.Request) {
	h.activate(w, r, r.URL.Query().Get("token"))
}

func (h *AuthHandler) activate(w http.ResponseWriter, r *http.Request, code string) {
	if _, err := h.service.Activate(r.Context(), code); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, "Account activated successfully", nil)
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Response{
			Message: domain.ErrInvalidCredentials.Message,
			Code:    domain.ErrInvalidCredentials.Code,
		})
		return
	}

	res, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, LoginResponse{
		Success:   true,
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
		Message:   "Login successful",
	})
}

// Logout handles POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context(), r.Header.Get("Authorization")); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, "Logged out successfully", nil)
}

// ForgotPassword handles POST /auth/forgot-password
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	if err := h.service.InitiateReset(r.Context(), req.Email); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, "Password reset email sent", nil)
}

// ResetPassword handles POST /auth/reset-password
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	if err := h.service.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, "Password has been reset successfully", nil)
}
