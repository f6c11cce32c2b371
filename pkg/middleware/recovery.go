package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/utafrali/petcare-user/pkg/httputil"
	"github.com/utafrali/petcare-user/pkg/logger"
)

var panicsRecovered = promauto.NewCounter(prometheus.CounterOpts{
	Name: "http_panics_recovered_total",
	Help: "Handler panics answered with a 500 envelope",
})

// Recovery answers a handler panic with the standard INTERNAL_ERROR
// envelope. http.ErrAbortHandler is re-raised so net/http can drop the
// connection.
func Recovery(l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				panicsRecovered.Inc()

				logger.WithContext(r.Context(), l).ErrorContext(r.Context(), "handler panicked",
					slog.String("panic", fmt.Sprint(rec)),
					slog.String("route", r.Method+" "+r.URL.Path),
					slog.String("stack", string(debug.Stack())),
				)
				httputil.WriteJSON(w, http.StatusInternalServerError, httputil.Response{
					Code:      "INTERNAL_ERROR",
					Message:   "an internal error occurred",
					RequestID: logger.CorrelationIDFromContext(r.Context()),
				})
			}()

			next.ServeHTTP(w, r)
		})
	}
}
