package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/cloo-solutions/amm/internal/api"
	"github.com/cloo-solutions/amm/internal/domain"
)

// TokenAuth accepts "Authorization: Bearer <token>" or "X-API-Key: <token>".
// An empty token disables authentication.
func TokenAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := r.Header.Get("X-API-Key")
			if presented == "" {
				authHeader := r.Header.Get("Authorization")
				if authHeader == "" {
					api.Error(w, http.StatusUnauthorized, "missing authorization header")
					return
				}
				if !strings.HasPrefix(authHeader, "Bearer ") {
					api.Error(w, http.StatusUnauthorized, "invalid authorization format")
					return
				}
				presented = strings.TrimPrefix(authHeader, "Bearer ")
			}

			if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				api.Error(w, http.StatusUnauthorized, domain.ErrInvalidAPIKey.Message)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
