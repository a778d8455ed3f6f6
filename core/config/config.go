package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// SmoochConfig holds credentials for the chat platform API.
type SmoochConfig struct {
	KeyID   string `yaml:"key_id" envconfig:"API_KEY_ID"`
	Secret  string `yaml:"secret" envconfig:"API_SECRET"`
	BaseURL string `yaml:"base_url" envconfig:"SMOOCH_BASE_URL"`
}

// ServerConfig specifies the inbound webhook listener settings.
type ServerConfig struct {
	Listen string `yaml:"listen" envconfig:"SERVER_LISTEN"`
	Port   int    `yaml:"port" envconfig:"PORT"`
	// CommandSecret guards POST /command via the x-api-key header.
	CommandSecret string `yaml:"command_secret" envconfig:"APPMAKER_SECRET"`
	// ResponseSecret guards POST /response via the x-api-key header.
	ResponseSecret string `yaml:"response_secret" envconfig:"APPUSER_SECRET"`
}

// ReportConfig configures forwarding of completed surveys.
// An empty WebhookURL disables forwarding entirely.
type ReportConfig struct {
	WebhookURL string `yaml:"webhook_url" envconfig:"WEBHOOK_URL"`
}

// SurveyConfig defines the question list and bot presentation.
type SurveyConfig struct {
	Questions []string `yaml:"questions"`
	BotName   string   `yaml:"bot_name" envconfig:"SURVEY_BOT_NAME"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	KeysOrder string `yaml:"keys_order"`
	Dir       string `yaml:"dir"`
	File      string `yaml:"file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile"`
}

// RateLimitConfig holds settings for per-user inbound rate limiting.
// ExcludeCommand bypasses limiting for the operator command route.
type RateLimitConfig struct {
	IntervalMS     int  `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeCommand bool `yaml:"exclude_command" envconfig:"RATE_LIMIT_EXCLUDE_COMMAND"`
}

// Config aggregates the full service configuration. It is constructed
// once at process start and passed by reference into each component.
type Config struct {
	Smooch    SmoochConfig    `yaml:"smooch"`
	Server    ServerConfig    `yaml:"server"`
	Report    ReportConfig    `yaml:"report"`
	Survey    SurveyConfig    `yaml:"survey"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

const (
	defaultPort    = 8000
	defaultBaseURL = "https://api.smooch.io/v1.1"
	defaultBotName = "Survey Bot"
)

// DefaultQuestions is the compiled-in survey used when none is configured.
var DefaultQuestions = []string{
	"How did you hear about us?",
	"How satisfied are you with our service?",
	"What could we do better?",
}

// Load reads configuration from an optional YAML file and environment
// variables. An empty path skips the file and relies on the environment.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize performs basic validation of required configuration fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if strings.TrimSpace(cfg.Smooch.KeyID) == "" {
		return fmt.Errorf("smooch.key_id is required")
	}
	if strings.TrimSpace(cfg.Smooch.Secret) == "" {
		return fmt.Errorf("smooch.secret is required")
	}
	if cfg.Smooch.BaseURL == "" {
		cfg.Smooch.BaseURL = defaultBaseURL
	}
	cfg.Smooch.BaseURL = strings.TrimRight(cfg.Smooch.BaseURL, "/")

	if strings.TrimSpace(cfg.Server.CommandSecret) == "" {
		return fmt.Errorf("server.command_secret is required")
	}
	if strings.TrimSpace(cfg.Server.ResponseSecret) == "" {
		return fmt.Errorf("server.response_secret is required")
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaultPort
	}
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535, got %d", cfg.Server.Port)
	}

	if len(cfg.Survey.Questions) == 0 {
		cfg.Survey.Questions = append([]string(nil), DefaultQuestions...)
	}
	for i, q := range cfg.Survey.Questions {
		if strings.TrimSpace(q) == "" {
			return fmt.Errorf("survey.questions[%d] is empty", i)
		}
	}
	if strings.TrimSpace(cfg.Survey.BotName) == "" {
		cfg.Survey.BotName = defaultBotName
	}

	if cfg.RateLimit.IntervalMS < 0 {
		return fmt.Errorf("rate_limit.interval_ms must be >= 0")
	}
	return nil
}
