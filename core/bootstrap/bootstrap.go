package bootstrap

import (
	"fmt"
	"net/http"
	"time"

	coreconfig "surveybot/core/config"
	"surveybot/core/logger"
	"surveybot/core/report"
	"surveybot/core/server"
	"surveybot/core/smooch"
	"surveybot/core/survey"
)

// Options control the bootstrap pipeline. The constructor hooks exist
// so tests can substitute fakes without touching real endpoints.
type Options struct {
	Config *coreconfig.Config

	LoggerInit func(*coreconfig.Config) error
	NewClient  func(smooch.Options) *smooch.Client
	NewReport  func(url string, client *http.Client) *report.Reporter
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
type Result struct {
	Client   *smooch.Client
	Reporter *report.Reporter
	Handlers *server.Handlers
}

// Run initializes the logger, the platform client, the results
// reporter, and the webhook handlers that tie them together.
func Run(opts Options) (*Result, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(cfg); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	newClient := opts.NewClient
	if newClient == nil {
		newClient = smooch.NewClient
	}
	client := newClient(smooch.Options{
		BaseURL: cfg.Smooch.BaseURL,
		KeyID:   cfg.Smooch.KeyID,
		Secret:  cfg.Smooch.Secret,
	})

	newReport := opts.NewReport
	if newReport == nil {
		newReport = report.New
	}
	reporter := newReport(cfg.Report.WebhookURL, smooch.BuildHTTPClient())

	handlers := server.NewHandlers(server.HandlersOptions{
		Survey:            survey.New(cfg.Survey.Questions),
		Platform:          client,
		Results:           reporter,
		BotName:           cfg.Survey.BotName,
		RateLimitInterval: time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond,
		LimitCommand:      !cfg.RateLimit.ExcludeCommand,
	})

	return &Result{
		Client:   client,
		Reporter: reporter,
		Handlers: handlers,
	}, nil
}
