package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/utafrali/petcare-user/internal/domain"
	"github.com/utafrali/petcare-user/internal/service"
	"github.com/utafrali/petcare-user/pkg/httputil"
	"github.com/utafrali/petcare-user/pkg/middleware"
	"github.com/utafrali/petcare-user/pkg/pagination"
	"github.com/utafrali/petcare-user/pkg/validator"
)

// ProfileService is the profile and admin listing surface used by
// UserHandler. *service.ProfileService satisfies it.
type ProfileService interface {
	GetProfile(ctx context.Context, userID int64) (*domain.User, error)
	UpdateProfile(ctx context.Context, userID int64, input service.UpdateProfileInput) (*domain.User, error)
	ListUsers(ctx context.Context, page pagination.Params) ([]domain.User, int, error)
	ListRoles(ctx context.Context) ([]domain.Role, error)
}

// UserHandler handles HTTP requests for profile and admin endpoints.
type UserHandler struct {
	service ProfileService
	logger  *slog.Logger
}

// NewUserHandler creates a new user HTTP handler.
func NewUserHandler(svc ProfileService, logger *slog.Logger) *UserHandler {
	return &UserHandler{service: svc, logger: logger}
}

// --- Request DTOs ---

// UpdateProfileRequest is the JSON request body for updating the caller's
// profile. Omitted fields are left unchanged.
type UpdateProfileRequest struct {
	FirstName           *string                     `json:"firstName" validate:"omitempty,min=1,max=100"`
	LastName            *string                     `json:"lastName" validate:"omitempty,min=1,max=100"`
	ProfileImageURL     *string                     `json:"profileImageUrl" validate:"omitempty,url,max=500"`
	Bio                 *string                     `json:"bio"`
	AdoptionPreferences *domain.AdoptionPreferences `json:"adoptionPreferences"`
}

// ProfileResponse wraps the caller's profile with its effective authorities.
type ProfileResponse struct {
	*domain.User
	Authorities []string `json:"authorities"`
}

// --- Handlers ---

// GetProfile handles GET /api/users/me
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		middleware.WriteAuthError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	user, err := h.service.GetProfile(r.Context(), p.UserID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, "", ProfileResponse{User: user, Authorities: p.Authorities})
}

// UpdateProfile handles PUT /api/users/me
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		middleware.WriteAuthError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req UpdateProfileRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	user, err := h.service.UpdateProfile(r.Context(), p.UserID, service.UpdateProfileInput{
		FirstName:           req.FirstName,
		LastName:            req.LastName,
		ProfileImageURL:     req.ProfileImageURL,
		Bio:                 req.Bio,
		AdoptionPreferences: req.AdoptionPreferences,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, "Profile updated", user)
}

// ListUsers handles GET /api/users
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page := pagination.FromRequest(r)

	users, total, err := h.service.ListUsers(r.Context(), page)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(users, total, page.Page, page.PerPage))
}

// ListRoles handles GET /api/roles
func (h *UserHandler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, "", roles)
}
