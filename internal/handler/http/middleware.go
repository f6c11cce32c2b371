package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/utafrali/petcare-user/internal/auth"
	"github.com/utafrali/petcare-user/internal/service"
	apperrors "github.com/utafrali/petcare-user/pkg/errors"
	"github.com/utafrali/petcare-user/pkg/httputil"
	"github.com/utafrali/petcare-user/pkg/logger"
	"github.com/utafrali/petcare-user/pkg/middleware"
)

const bearerPrefix = "Bearer "

// DefaultPublicPaths are reachable without a session. Logout is public
// because it classifies its own token failures.
var DefaultPublicPaths = []string{
	"/auth/register",
	"/auth/login",
	"/auth/logout",
	"/auth/activate",
	"/auth/activate-account",
	"/auth/forgot-password",
	"/auth/reset-password",
	"/api/auth/register",
	"/api/auth/login",
	"/api/auth/logout",
	"/api/auth/activate",
	"/api/auth/activate-account",
	"/api/auth/forgot-password",
	"/api/auth/reset-password",
	"/health",
	"/metrics",
	"/static",
	"/debug/pprof",
}

// ContentTypeJSON rejects requests that declare a body type other than
// application/json. Requests without a Content-Type pass through.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 || r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/json") {
				httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.Response{
					Code:    "UNSUPPORTED_MEDIA_TYPE",
					Message: "Content-Type must be application/json",
				})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// SessionValidator resolves a bearer token to a live session.
// *service.SessionValidator satisfies it.
type SessionValidator interface {
	Validate(ctx context.Context, token string) (*service.Session, error)
}

// Authenticator is the request authorization filter. Requests to public
// paths pass through untouched; every other request must carry a bearer
// token backed by a live LOGIN session. The filter never answers 500.
type Authenticator struct {
	sessions SessionValidator
	public   []string
	logger   *slog.Logger
}

// NewAuthenticator creates the filter. An empty public list uses
// DefaultPublicPaths.
func NewAuthenticator(sessions SessionValidator, logger *slog.Logger, public ...string) *Authenticator {
	if len(public) == 0 {
		public = DefaultPublicPaths
	}
	return &Authenticator{sessions: sessions, public: public, logger: logger}
}

// IsPublic reports whether path is exactly a public path or below one.
func (a *Authenticator) IsPublic(path string) bool {
	for _, p := range a.public {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// Middleware returns the filter as chi middleware.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.IsPublic(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		p, ok := a.authenticate(w, r)
		if !ok {
			return
		}

		ctx := middleware.WithPrincipal(r.Context(), p)
		ctx = logger.WithUserID(ctx, strconv.FormatInt(p.UserID, 10))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authenticate writes the 401 itself and returns false on rejection.
func (a *Authenticator) authenticate(w http.ResponseWriter, r *http.Request) (p *middleware.Principal, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			a.logger.ErrorContext(r.Context(), "panic in authentication filter",
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())),
				slog.String("path", r.URL.Path),
			)
			middleware.WriteAuthError(w, http.StatusUnauthorized, "Authentication failed")
			p, ok = nil, false
		}
	}()

	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, bearerPrefix) {
		middleware.WriteAuthError(w, http.StatusUnauthorized, "Missing or invalid Authorization header")
		return nil, false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
	if !auth.HasJWTShape(token) {
		middleware.WriteAuthError(w, http.StatusUnauthorized, "Invalid token format")
		return nil, false
	}

	session, err := a.sessions.Validate(r.Context(), token)
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) && appErr.Status == http.StatusUnauthorized {
			middleware.WriteAuthError(w, http.StatusUnauthorized, appErr.Message)
			return nil, false
		}
		a.logger.ErrorContext(r.Context(), "session validation failed",
			slog.String("error", err.Error()),
			slog.String("path", r.URL.Path),
		)
		middleware.WriteAuthError(w, http.StatusUnauthorized, "Authentication failed")
		return nil, false
	}

	return &middleware.Principal{
		UserID:      session.User.ID,
		Email:       session.User.Email,
		Authorities: session.Authorities,
	}, true
}
