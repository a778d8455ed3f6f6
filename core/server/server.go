package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	coreconfig "surveybot/core/config"
	"surveybot/core/logger"
	"surveybot/core/server/middleware"

	"log/slog"
)

const shutdownTimeout = 10 * time.Second

// Options controls the behaviour of Run.
type Options struct {
	Config   *coreconfig.Config
	Handlers *Handlers

	OnStart func(ctx context.Context) error
	OnStop  func(ctx context.Context) error
}

// NewRouter composes the middleware chain and the webhook routes.
func NewRouter(opts Options) http.Handler {
	cfg := opts.Config

	r := chi.NewRouter()
	r.Use(middleware.Recover)
	r.Use(middleware.Logger)
	r.Use(middleware.Metrics)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.With(middleware.RequireSecret(cfg.Server.CommandSecret)).
		Post("/command", opts.Handlers.Command)
	r.With(middleware.RequireSecret(cfg.Server.ResponseSecret)).
		Post("/response", opts.Handlers.Response)

	return r
}

// Run serves the webhook routes until the provided context is done,
// then shuts the listener down gracefully.
func Run(ctx context.Context, opts Options) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Config == nil {
		return fmt.Errorf("server: nil config provided")
	}
	if opts.Handlers == nil {
		return fmt.Errorf("server: nil handlers provided")
	}

	addr := fmt.Sprintf("%s:%d", opts.Config.Server.Listen, opts.Config.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(opts),
		ReadHeaderTimeout: 5 * time.Second,
	}

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx); err != nil {
			return err
		}
	}

	logger.Info(ctx, "http", "listening",
		slog.String("status", "ok"),
		slog.String("listen", addr),
		slog.Int("port", opts.Config.Server.Port),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	var runErr error
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			runErr = fmt.Errorf("server: shutdown: %w", err)
		}
		<-errCh
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("server: listen: %w", err)
		}
	}

	if opts.OnStop != nil {
		if err := opts.OnStop(context.Background()); err != nil && runErr == nil {
			runErr = err
		}
	}
	return runErr
}
