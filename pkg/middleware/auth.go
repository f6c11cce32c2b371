package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
)

type contextKeyType string

const principalKey contextKeyType = "principal"

// Principal is the authenticated caller attached to a request once its bearer
// token has been accepted.
type Principal struct {
	UserID      int64    `json:"userId"`
	Email       string   `json:"email"`
	Authorities []string `json:"authorities"`
}

// HasAuthority reports whether the principal was granted authority.
func (p *Principal) HasAuthority(authority string) bool {
	if p == nil {
		return false
	}
	return slices.Contains(p.Authorities, authority)
}

// WithPrincipal stores the authenticated principal in the context.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the authenticated principal, or nil for
// anonymous requests.
func PrincipalFromContext(ctx context.Context) *Principal {
	if p, ok := ctx.Value(principalKey).(*Principal); ok {
		return p
	}
	return nil
}

// RequireAuthority rejects requests whose principal lacks any of the given
// authorities. Anonymous requests get 401, authenticated ones 403.
func RequireAuthority(authorities ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := PrincipalFromContext(r.Context())
			if p == nil {
				WriteAuthError(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			if !slices.ContainsFunc(authorities, p.HasAuthority) {
				WriteAuthError(w, http.StatusForbidden, "Access denied")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AuthErrorBody is the flat body written for rejected authentication and
// authorization checks.
type AuthErrorBody struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

// WriteAuthError writes a terse {"error","status"} body with the given status.
func WriteAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(AuthErrorBody{Error: message, Status: status})
}
