package chi

import (
	"net/http"
	"strings"
)

// AdminPINHeader carries the admin PIN on /v1/admin routes.
const AdminPINHeader = "X-Admin-PIN"

// BearerAuthMiddleware returns a middleware that validates Bearer tokens of the device agent.
// If apiKeys is empty, authentication is disabled (pass-through).
func BearerAuthMiddleware(apiKeys []string) func(http.Handler) http.Handler {
	validKeys := make(map[string]struct{}, len(apiKeys))
	for _, k := range apiKeys {
		if k != "" {
			validKeys[k] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		// Auth disabled — pass everything through
		if len(validKeys) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "missing authorization header")
				return
			}

			const bearerPrefix = "Bearer "
			if !strings.HasPrefix(auth, bearerPrefix) {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "authorization header must use Bearer scheme")
				return
			}

			if _, ok := validKeys[auth[len(bearerPrefix):]]; !ok {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "invalid api key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// AdminPINMiddleware rejects requests whose X-Admin-PIN header does not match the stored PIN.
func AdminPINMiddleware(verify func(r *http.Request, pin string) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			pin := r.Header.Get(AdminPINHeader)
			if pin == "" {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "missing "+AdminPINHeader+" header")
				return
			}
			if !verify(r, pin) {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "invalid pin")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
