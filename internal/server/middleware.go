package server

import (
	"net/http"
	"strings"

	"indicator-reporting/backend/internal/identity"
	"indicator-reporting/backend/internal/security"
)

const bearerPrefix = "bearer "

// Authenticate validates the Bearer access token and puts the resulting
// principal in the request context. Requests without a valid token get 401.
func Authenticate(tokens *security.TokenProvider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearer(r.Header.Get("Authorization"))
			if token == "" {
				writeErrorStatus(w, http.StatusUnauthorized, "missing or invalid authorization")
				return
			}
			principal, err := tokens.ValidateAccess(token)
			if err != nil {
				writeErrorStatus(w, http.StatusUnauthorized, "missing or invalid authorization")
				return
			}
			next.ServeHTTP(w, r.WithContext(identity.WithPrincipal(r.Context(), principal)))
		})
	}
}

// extractBearer returns the Bearer token from an Authorization header value,
// or "" if missing or malformed.
func extractBearer(header string) string {
	v := strings.TrimSpace(header)
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
