package middleware

import (
	"net/http"

	"surveybot/core/logger"

	"log/slog"
)

// HeaderAPIKey is the inbound header carrying the shared route secret.
const HeaderAPIKey = "x-api-key"

// RequireSecret guards a route with a static shared secret. A request
// whose x-api-key header does not byte-exactly equal the configured
// value (including a missing header) is rejected before the wrapped
// handler runs.
func RequireSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get(HeaderAPIKey) != secret {
				logger.Warn(r.Context(), "http", "auth.rejected",
					slog.String("status", "fail"),
					slog.String("method", r.Method),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"Unauthorized"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
