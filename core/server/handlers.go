package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"surveybot/core/logger"
	"surveybot/core/report"
	"surveybot/core/smooch"
	"surveybot/core/survey"

	"log/slog"
)

// Platform is the narrow chat-platform surface the handlers consume.
type Platform interface {
	UpdateUser(ctx context.Context, userID string, properties map[string]any) error
	SendMessage(ctx context.Context, userID string, msg smooch.Message) error
}

// ResultSink forwards completed surveys to the results endpoint.
type ResultSink interface {
	Post(ctx context.Context, sub report.Submission) error
}

// HandlersOptions wires the survey handlers.
type HandlersOptions struct {
	Survey   *survey.Survey
	Platform Platform
	Results  ResultSink
	BotName  string
	// RateLimitInterval below or equal to zero disables limiting.
	RateLimitInterval time.Duration
	// LimitCommand applies the limiter to the operator command route too.
	LimitCommand bool
}

// Handlers implements the two inbound webhook routes.
type Handlers struct {
	survey       *survey.Survey
	platform     Platform
	results      ResultSink
	botName      string
	limiter      *rateLimiter
	limitCommand bool
}

// NewHandlers constructs the webhook handlers.
func NewHandlers(opts HandlersOptions) *Handlers {
	return &Handlers{
		survey:       opts.Survey,
		platform:     opts.Platform,
		results:      opts.Results,
		botName:      opts.BotName,
		limiter:      newRateLimiter(opts.RateLimitInterval),
		limitCommand: opts.LimitCommand,
	}
}

// Command handles POST /command: an operator event whose text may
// contain the activation phrase. Activation installs fresh survey state
// on the user's profile and asks question zero.
func (h *Handlers) Command(w http.ResponseWriter, r *http.Request) {
	var evt Event
	if err := json.NewDecoder(r.Body).Decode(&evt); err != nil {
		writeError(r.Context(), w, fmt.Errorf("decode command event: %w", err))
		return
	}

	if !survey.Activates(evt.JoinedText()) {
		logger.Debug(r.Context(), "survey", "command.ignored",
			slog.String("status", "skip"),
		)
		writeEmpty(w)
		return
	}

	userID := evt.AppUser.ID
	if userID == "" {
		writeError(r.Context(), w, fmt.Errorf("command event has no appUser._id"))
		return
	}
	ctx := logger.WithUserID(r.Context(), userID)

	if h.limitCommand && !h.limiter.Allow(userID) {
		h.dropLimited(ctx, w)
		return
	}

	st := survey.Start()
	props := st.MergeInto(evt.AppUser.Properties)
	if err := h.platform.UpdateUser(ctx, userID, props); err != nil {
		writeError(ctx, w, err)
		return
	}
	if err := h.askQuestion(ctx, userID, 0); err != nil {
		writeError(ctx, w, err)
		return
	}

	logger.Info(ctx, "survey", "survey.started",
		slog.String("status", "ok"),
		slog.Int("survey_index", 0),
	)
	writeEmpty(w)
}

// Response handles POST /response: a user message event that advances,
// elaborates, or completes the survey depending on current state.
func (h *Handlers) Response(w http.ResponseWriter, r *http.Request) {
	var evt Event
	if err := json.NewDecoder(r.Body).Decode(&evt); err != nil {
		writeError(r.Context(), w, fmt.Errorf("decode response event: %w", err))
		return
	}

	userID := evt.AppUser.ID
	ctx := logger.WithUserID(r.Context(), userID)

	st, err := survey.StateFromProperties(evt.AppUser.Properties)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	if !st.Active {
		logger.Debug(ctx, "survey", "response.ignored",
			slog.String("status", "skip"),
			slog.String("cause", "survey not active"),
		)
		writeEmpty(w)
		return
	}

	if userID == "" {
		writeError(ctx, w, fmt.Errorf("response event has no appUser._id"))
		return
	}
	if !h.limiter.Allow(userID) {
		h.dropLimited(ctx, w)
		return
	}

	step, err := h.survey.Decide(st, evt.JoinedText())
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	switch step.Kind {
	case survey.StepElaborate:
		if err := h.send(ctx, userID, survey.ElaborationPrompt); err != nil {
			writeError(ctx, w, err)
			return
		}
		logger.Info(ctx, "survey", "survey.elaborate",
			slog.String("status", "ok"),
			slog.Int("survey_index", step.State.Index),
		)

	case survey.StepAdvance:
		props := step.State.MergeInto(evt.AppUser.Properties)
		if err := h.platform.UpdateUser(ctx, userID, props); err != nil {
			writeError(ctx, w, err)
			return
		}
		if err := h.askQuestion(ctx, userID, step.NextQuestion); err != nil {
			writeError(ctx, w, err)
			return
		}
		logger.Info(ctx, "survey", "survey.advanced",
			slog.String("status", "ok"),
			slog.Int("survey_index", step.State.Index),
		)

	case survey.StepComplete:
		props := step.State.MergeInto(evt.AppUser.Properties)
		if err := h.platform.UpdateUser(ctx, userID, props); err != nil {
			writeError(ctx, w, err)
			return
		}
		if err := h.send(ctx, userID, survey.ClosingMessage); err != nil {
			writeError(ctx, w, err)
			return
		}
		sub := report.Submission{
			SmoochID:  userID,
			UserID:    evt.AppUser.UserID,
			GivenName: evt.AppUser.GivenName,
			Surname:   evt.AppUser.Surname,
			Email:     evt.AppUser.Email,
			Answers:   step.State.Answers,
		}
		if err := h.results.Post(ctx, sub); err != nil {
			writeError(ctx, w, err)
			return
		}
		logger.Info(ctx, "survey", "survey.completed",
			slog.String("status", "ok"),
			slog.Int("answers", len(step.State.Answers)),
		)
	}

	writeEmpty(w)
}

// askQuestion sends the survey question at the given index, attributed
// to the bot display name with the business role.
func (h *Handlers) askQuestion(ctx context.Context, userID string, index int) error {
	return h.send(ctx, userID, h.survey.Question(index))
}

func (h *Handlers) send(ctx context.Context, userID, text string) error {
	return h.platform.SendMessage(ctx, userID, smooch.Message{
		Text: text,
		Role: smooch.RoleAppMaker,
		Type: smooch.TypeText,
		Name: h.botName,
	})
}

func (h *Handlers) dropLimited(ctx context.Context, w http.ResponseWriter) {
	logger.Warn(ctx, "http", "rate_limited",
		slog.String("status", "rate_limited"),
		slog.Bool("rate_limited", true),
	)
	writeEmpty(w)
}
