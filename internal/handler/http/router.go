package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/petcare-user/internal/domain"
	"github.com/utafrali/petcare-user/pkg/health"
	"github.com/utafrali/petcare-user/pkg/httputil"
	"github.com/utafrali/petcare-user/pkg/middleware"
)

const serviceName = "user"

// RouterConfig carries the HTTP-layer settings of the router.
type RouterConfig struct {
	CORS         middleware.CORSConfig
	PprofCIDRs   []string
	AuthLimiter  *middleware.IPLimiter
	RequestLimit time.Duration
}

// RouterDeps are the services behind the routes. Matching may be nil, in
// which case POST /api/match answers 503.
type RouterDeps struct {
	Auth     AuthService
	Profiles ProfileService
	Matching MatchingService
	Sessions SessionValidator
	Health   *health.Handler
}

// NewRouter creates a chi router with all user service routes registered.
func NewRouter(deps RouterDeps, cfg RouterConfig, logger *slog.Logger) http.Handler {
	if cfg.RequestLimit <= 0 {
		cfg.RequestLimit = 30 * time.Second
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimw.Timeout(cfg.RequestLimit))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(serviceName))
	r.Use(middleware.Tracing(serviceName))
	r.Use(NewAuthenticator(deps.Sessions, logger).Middleware)
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health", deps.Health.ReadinessHandler())
	r.Get("/health/live", deps.Health.LivenessHandler())
	r.Get("/health/ready", deps.Health.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	authHandler := NewAuthHandler(deps.Auth, logger)
	authRoutes := func(r chi.Router) {
		r.Use(middleware.NoStore)
		if cfg.AuthLimiter != nil {
			r.Use(middleware.RateLimit(cfg.AuthLimiter, logger))
		}

		r.Get("/activate-account", authHandler.ActivateAccount)
		r.Post("/logout", authHandler.Logout)

		r.Group(func(r chi.Router) {
			r.Use(ContentTypeJSON)

			r.Post("/register", authHandler.Register)
			r.Post("/activate", authHandler.Activate)
			r.Post("/login", authHandler.Login)
			r.Post("/forgot-password", authHandler.ForgotPassword)
			r.Post("/reset-password", authHandler.ResetPassword)
		})
	}
	r.Route("/auth", authRoutes)
	r.Route("/api/auth", authRoutes)

	userHandler := NewUserHandler(deps.Profiles, logger)
	r.Route("/api/users", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Get("/me", userHandler.GetProfile)
		r.Put("/me", userHandler.UpdateProfile)

		r.With(middleware.RequireAuthority(domain.PermAdminRead)).Get("/", userHandler.ListUsers)
	})
	r.With(middleware.RequireAuthority(domain.PermAdminRead)).Get("/api/roles", userHandler.ListRoles)

	r.Route("/api/match", func(r chi.Router) {
		r.Use(middleware.RequireAuthority(domain.PermPetOwnerRead))

		if deps.Matching == nil {
			r.Post("/", func(w http.ResponseWriter, r *http.Request) {
				httputil.WriteError(w, r, domain.ErrMatchingUnavailable, logger)
			})
			return
		}
		r.With(ContentTypeJSON).Post("/", NewMatchHandler(deps.Matching, logger).Match)
	})

	return r
}
