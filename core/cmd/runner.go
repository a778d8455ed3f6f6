package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"surveybot/core/bootstrap"
	coreconfig "surveybot/core/config"
	"surveybot/core/logger"
	"surveybot/core/server"

	"log/slog"
)

// Options describe how to load configuration, bootstrap the app, and
// run the webhook server. Every hook has a production default.
type Options struct {
	ConfigEnvVar      string
	DefaultConfigPath string

	LoadConfig func(path string) (*coreconfig.Config, error)
	Bootstrap  func(bootstrap.Options) (*bootstrap.Result, error)

	ShutdownLogger func() error
	RunServer      func(ctx context.Context, opts server.Options) error
}

// Run loads configuration, bootstraps the bot, and serves webhooks
// until an interrupt or termination signal arrives.
func Run(opts Options) error {
	// A local .env is a development convenience; absence is fine.
	_ = godotenv.Load()

	env := opts.ConfigEnvVar
	if env == "" {
		env = "CONFIG_PATH"
	}
	cfgPath := os.Getenv(env)
	if cfgPath == "" && opts.DefaultConfigPath != "" {
		// The default path is a convenience, not a requirement: when the
		// file is absent the environment alone configures the service.
		if _, err := os.Stat(opts.DefaultConfigPath); err == nil {
			cfgPath = opts.DefaultConfigPath
		}
	}
	if cfgPath != "" {
		log.Printf("loading config: %s", cfgPath)
	}

	loadConfig := opts.LoadConfig
	if loadConfig == nil {
		loadConfig = coreconfig.Load
	}
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("cmd: failed to load config: %w", err)
	}

	boot := opts.Bootstrap
	if boot == nil {
		boot = bootstrap.Run
	}
	res, err := boot(bootstrap.Options{Config: cfg})
	if err != nil {
		return fmt.Errorf("cmd: bootstrap failed: %w", err)
	}

	shutdownLogger := opts.ShutdownLogger
	if shutdownLogger == nil {
		shutdownLogger = logger.Shutdown
	}
	defer func() {
		if err := shutdownLogger(); err != nil {
			log.Printf("logger shutdown error: %v", err)
		}
	}()

	startedAt := time.Now()
	serverOpts := server.Options{
		Config:   cfg,
		Handlers: res.Handlers,
		OnStart: func(ctx context.Context) error {
			logger.Info(ctx, "app", "ready",
				slog.String("status", "ok"),
				slog.Duration("duration_ms", time.Since(startedAt)),
			)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info(ctx, "app", "shutdown",
				slog.String("status", "ok"),
			)
			return nil
		},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	run := opts.RunServer
	if run == nil {
		run = server.Run
	}
	return run(ctx, serverOpts)
}
