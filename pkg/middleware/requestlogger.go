package middleware

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/utafrali/petcare-user/pkg/logger"
)

// RequestLogger builds a request-scoped logger enriched with correlation_id,
// user_id, trace_id and span_id and stores it in the context, where
// logger.FromContext picks it up.
//
// Mount it after RequestLogging and Tracing. On protected routes mount it
// again after authentication so the user id is included.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if p := PrincipalFromContext(ctx); p != nil {
				ctx = logger.WithUserID(ctx, strconv.FormatInt(p.UserID, 10))
			}

			enriched := logger.WithContext(ctx, base)
			ctx = logger.NewContext(ctx, enriched)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
