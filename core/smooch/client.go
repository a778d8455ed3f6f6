// Package smooch is a thin typed client for the chat platform REST API.
// Only the two calls the survey needs are implemented: updating a user's
// profile properties and sending a text message.
package smooch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"surveybot/core/logger"

	"log/slog"
)

const (
	// RoleAppMaker attributes a message to the business side of the conversation.
	RoleAppMaker = "appMaker"
	// TypeText marks a plain text message.
	TypeText = "text"

	maxErrorBody = 4 * 1024
)

// Message is an outbound chat message.
type Message struct {
	Text string `json:"text"`
	Role string `json:"role"`
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

// APIError carries the platform's HTTP status so the webhook error path
// can propagate it.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("smooch: api status %d: %s", e.StatusCode, e.Message)
}

// Options configures a Client.
type Options struct {
	BaseURL string
	KeyID   string
	Secret  string
	// Client overrides the tuned default, mainly for tests.
	Client *http.Client
}

// Client calls the chat platform API. Safe for concurrent use.
type Client struct {
	baseURL string
	keyID   string
	secret  string
	http    *http.Client
}

// NewClient constructs a Client with the tuned transport unless one is provided.
func NewClient(opts Options) *Client {
	httpClient := opts.Client
	if httpClient == nil {
		httpClient = BuildHTTPClient()
	}
	return &Client{
		baseURL: opts.BaseURL,
		keyID:   opts.KeyID,
		secret:  opts.Secret,
		http:    httpClient,
	}
}

// UpdateUser merges the given properties onto the user's profile record.
func (c *Client) UpdateUser(ctx context.Context, userID string, properties map[string]any) error {
	payload := map[string]any{"properties": properties}
	return c.do(ctx, http.MethodPut, "/appusers/"+url.PathEscape(userID), "user.update", userID, payload)
}

// SendMessage delivers a message to the user's conversation.
func (c *Client) SendMessage(ctx context.Context, userID string, msg Message) error {
	return c.do(ctx, http.MethodPost, "/appusers/"+url.PathEscape(userID)+"/messages", "message.send", userID, msg)
}

func (c *Client) do(ctx context.Context, method, path, operation, userID string, payload any) error {
	start := time.Now()
	err := c.roundTrip(ctx, method, path, payload)

	attrs := []slog.Attr{
		slog.String("status", logger.Status(err)),
		slog.String("operation", operation),
		slog.String("user_id", userID),
		slog.Duration("duration_ms", logger.Took(start)),
	}
	if err != nil {
		attrs = append(attrs, slog.String("err", err.Error()))
		logger.Error(ctx, "smooch", "smooch.call", attrs...)
		return err
	}
	logger.Debug(ctx, "smooch", "smooch.call", attrs...)
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("smooch: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("smooch: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.secret)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("smooch: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    errorMessage(resp.Body),
	}
}

// errorMessage extracts the platform's error description when the body
// is the documented {"error":{"code","description"}} shape, falling
// back to the raw (truncated) body.
func errorMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return "no response body"
	}
	var parsed struct {
		Error struct {
			Description string `json:"description"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Error.Description != "" {
		return parsed.Error.Description
	}
	return logger.SanitizeLimit(string(raw), 256)
}
