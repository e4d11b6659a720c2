package auth

import (
	"log/slog"
	"net/http"
)

// Middleware attaches the principal of a valid bearer token to the request
// context. Requests without a valid token pass through anonymous;
// handlers decide whether a principal is required.
func Middleware(secret string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r.Header.Get("Authorization"))
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			p, err := ParseToken(secret, token)
			if err != nil {
				logger.Debug("rejected bearer token", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}
