// Package report forwards completed surveys to an external results endpoint.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"surveybot/core/logger"
	"surveybot/core/survey"

	"log/slog"
)

// Submission identifies the surveyed user and carries the answers in
// question-index order.
type Submission struct {
	SmoochID  string
	UserID    string
	GivenName string
	Surname   string
	Email     string
	Answers   []string
}

type payload struct {
	SmoochID  string           `json:"smoochId"`
	UserID    string           `json:"userId"`
	GivenName string           `json:"givenName"`
	Surname   string           `json:"surname"`
	Email     string           `json:"email"`
	Items     []map[string]any `json:"items"`
}

// Reporter posts completed surveys to the configured webhook URL.
// An empty URL disables it: Post becomes an immediate success.
type Reporter struct {
	url  string
	http *http.Client
}

// New constructs a Reporter. A nil client falls back to a plain
// http.Client with a request timeout.
func New(url string, client *http.Client) *Reporter {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Reporter{url: url, http: client}
}

// Enabled reports whether a results endpoint is configured.
func (r *Reporter) Enabled() bool {
	return r.url != ""
}

// Post forwards one completed survey. With no endpoint configured it
// returns nil without any network call.
func (r *Reporter) Post(ctx context.Context, sub Submission) error {
	if !r.Enabled() {
		logger.Debug(ctx, "report", "report.skipped",
			slog.String("status", "skip"),
			slog.String("user_id", sub.SmoochID),
			slog.String("cause", "no webhook url configured"),
		)
		return nil
	}

	start := time.Now()
	err := r.post(ctx, sub)

	attrs := []slog.Attr{
		slog.String("status", logger.Status(err)),
		slog.String("user_id", sub.SmoochID),
		slog.Int("answers", len(sub.Answers)),
		slog.Duration("duration_ms", logger.Took(start)),
	}
	if err != nil {
		attrs = append(attrs, slog.String("err", err.Error()))
		logger.Error(ctx, "report", "report.posted", attrs...)
		return err
	}
	logger.Info(ctx, "report", "report.posted", attrs...)
	return nil
}

func (r *Reporter) post(ctx context.Context, sub Submission) error {
	items := make([]map[string]any, 0, len(sub.Answers))
	for i, answer := range sub.Answers {
		items = append(items, map[string]any{survey.AnswerKey(i): answer})
	}

	body, err := json.Marshal(payload{
		SmoochID:  sub.SmoochID,
		UserID:    sub.UserID,
		GivenName: sub.GivenName,
		Surname:   sub.Surname,
		Email:     sub.Email,
		Items:     items,
	})
	if err != nil {
		return fmt.Errorf("report: encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("report: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		return fmt.Errorf("report: post results: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("report: results endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
