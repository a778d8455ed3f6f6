package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"surveybot/core/logger"
	"surveybot/core/smooch"

	"log/slog"
)

// writeError is the single error conversion point for both handlers:
// a platform APIError keeps its status code, anything else becomes a
// 500, and the body exposes the failure message. No retry, no rollback.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	var apiErr *smooch.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode > 0 {
		code = apiErr.StatusCode
	}

	logger.Error(ctx, "http", "http.handler_failed",
		slog.String("status", "error"),
		slog.Int("http_code", code),
		slog.String("err", err.Error()),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"err": err.Error()})
}

// writeEmpty answers 200 with an empty body, the accepted-or-ignored
// response both routes share.
func writeEmpty(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
}
