// Package middleware holds the HTTP middleware chain for the webhook
// server: request logging, panic recovery, metrics, and the
// shared-secret guard.
package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"surveybot/core/logger"

	"log/slog"
)

// statusWriter captures the response status code for logging and metrics.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(p)
}

func (w *statusWriter) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

// Logger assigns a request id, stores request metadata in the context
// for downstream component logs, and emits one completion line per request.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rid := uuid.NewString()

		ctx := logger.WithRID(r.Context(), rid)
		ctx = logger.WithRoute(ctx, r.URL.Path)

		logger.Debug(ctx, "http", "http.received",
			slog.String("method", r.Method),
		)

		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r.WithContext(ctx))

		logger.Info(ctx, "http", "http.request",
			slog.String("status", statusLabel(sw.Status())),
			slog.String("method", r.Method),
			slog.Int("http_code", sw.Status()),
			slog.Duration("duration_ms", logger.Took(start)),
		)
	})
}

func statusLabel(code int) string {
	if code >= 200 && code < 400 {
		return "ok"
	}
	return "fail"
}
