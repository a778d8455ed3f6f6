package middleware

import (
	"net/http"
	"runtime/debug"

	"surveybot/core/logger"

	"log/slog"
)

// Recover catches panics in handlers and converts them into a 500
// response so one bad event cannot take the process down.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error(r.Context(), "http", "http.panic",
					slog.Any("err", rec),
					slog.String("stack", string(debug.Stack())),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"err":"internal server error"}`))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
