package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/utafrali/petcare-user/internal/matching"
	"github.com/utafrali/petcare-user/pkg/httputil"
	"github.com/utafrali/petcare-user/pkg/middleware"
	"github.com/utafrali/petcare-user/pkg/validator"
)

// MatchingService recommends adoptable pets. *service.MatchingService
// satisfies it.
type MatchingService interface {
	Match(ctx context.Context, userID int64, topN int) ([]matching.Match, error)
}

// MatchHandler handles pet matching requests.
type MatchHandler struct {
	service MatchingService
	logger  *slog.Logger
}

// NewMatchHandler creates a new match HTTP handler.
func NewMatchHandler(svc MatchingService, logger *slog.Logger) *MatchHandler {
	return &MatchHandler{service: svc, logger: logger}
}

// MatchRequest is the optional JSON body of POST /api/match.
type MatchRequest struct {
	TopN int `json:"topN" validate:"omitempty,min=1,max=20"`
}

// Match handles POST /api/match. An empty body uses the default topN.
func (h *MatchHandler) Match(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		middleware.WriteAuthError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req MatchRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		httputil.WriteValidationError(w, err)
		return
	}

	matches, err := h.service.Match(r.Context(), p.UserID, req.TopN)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, "", matches)
}
