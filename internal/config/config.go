// Package config loads greq.yaml, the configuration shared by the greq
// command's subcommands.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/greq"
)

// Version is the configuration schema version this package reads.
const Version = "1.0"

// DefaultPath is where the CLI looks for a configuration file.
const DefaultPath = "greq.yaml"

// Config represents the complete configuration.
type Config struct {
	Version   string          `yaml:"version"`
	Client    ClientConfig    `yaml:"client"`
	Retry     RetryConfig     `yaml:"retry"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Auth      AuthConfig      `yaml:"auth"`
	Docs      DocsConfig      `yaml:"docs"`
	Echo      EchoConfig      `yaml:"echo"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ClientConfig configures the HTTP client used for requests.
type ClientConfig struct {
	Timeout            string            `yaml:"timeout,omitempty"`
	FollowRedirects    *bool             `yaml:"follow_redirects,omitempty"`
	MaxRedirects       int               `yaml:"max_redirects,omitempty"`
	InsecureSkipVerify bool              `yaml:"insecure_skip_verify,omitempty"`
	DisableHTTP2       bool              `yaml:"disable_http2,omitempty"`
	Headers            map[string]string `yaml:"headers,omitempty"`
	RequestID          bool              `yaml:"request_id,omitempty"`
	Tracing            bool              `yaml:"tracing,omitempty"`
}

// RetryConfig configures retries of transient failures.
type RetryConfig struct {
	Backoff      RetryBackoffMode `yaml:"backoff,omitempty"`
	InitialDelay string           `yaml:"initial_delay,omitempty"`
	MaxDelay     string           `yaml:"max_delay,omitempty"`
	MaxRetries   int              `yaml:"max_retries"`
}

// RateLimitConfig limits outgoing requests. Zero disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second,omitempty"`
	Burst             int     `yaml:"burst,omitempty"`
}

// DocsConfig configures the documentation site tooling.
type DocsConfig struct {
	// Nav is the navigation file; empty selects the built-in navigation.
	Nav     string      `yaml:"nav,omitempty"`
	Dir     string      `yaml:"dir,omitempty"`
	BaseURL string      `yaml:"base_url,omitempty"`
	Output  string      `yaml:"output,omitempty"`
	Format  string      `yaml:"format,omitempty"`
	Check   CheckConfig `yaml:"check"`
}

// CheckConfig configures link checking.
type CheckConfig struct {
	Concurrency       int     `yaml:"concurrency,omitempty"`
	RequestsPerSecond float64 `yaml:"requests_per_second,omitempty"`
	Timeout           string  `yaml:"timeout,omitempty"`
	Every             string  `yaml:"every,omitempty"`
	PageLinks         bool    `yaml:"page_links,omitempty"`
}

// EchoConfig configures `greq echo`.
type EchoConfig struct {
	Addr              string `yaml:"addr,omitempty"`
	RequestsPerMinute int    `yaml:"requests_per_minute,omitempty"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level,omitempty"`
	Format LogFormat `yaml:"format,omitempty"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{Version: Version}
	applyDefaults(cfg)
	return cfg
}

// Load reads the configuration at path. Variables from .env and .env.local
// are loaded first without overriding the process environment, and ${VAR}
// references in the file are expanded.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	data, err := os.ReadFile(path) // #nosec G304 -- operator supplied path
	if err != nil {
		if os.IsNotExist(err) {
			return nil, greq.NewError(greq.CategoryConfig, "configuration file not found").
				WithContext("path", path).
				Build()
		}
		return nil, greq.WrapError(err, greq.CategoryConfig, "failed to read config file").
			WithContext("path", path).
			Build()
	}

	cfg, err := Parse([]byte(os.ExpandEnv(string(data))))
	if err != nil {
		if e, ok := greq.AsError(err); ok {
			e.Context().Set("path", path)
		}
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads path when it exists and returns the defaults otherwise.
// A missing file is only an error when required is set.
func LoadOrDefault(path string, required bool) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) && !required {
		loadEnvFiles()
		return Default(), nil
	}
	return Load(path)
}

// Parse decodes, normalises, defaults and validates a configuration document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, greq.WrapError(err, greq.CategoryConfig, "failed to unmarshal config").Build()
	}

	if cfg.Version == "" {
		cfg.Version = Version
	}
	if cfg.Version != Version {
		return nil, greq.NewError(greq.CategoryConfig,
			fmt.Sprintf("unsupported configuration version: %s (expected %s)", cfg.Version, Version)).
			WithContext("version", cfg.Version).
			Build()
	}

	if err := normalize(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadEnvFiles() {
	for _, name := range []string{".env", ".env.local"} {
		if _, err := os.Stat(name); err != nil {
			continue
		}
		if err := godotenv.Load(name); err != nil {
			fmt.Fprintf(os.Stderr, "Note: %s could not be loaded: %v\n", name, err)
		}
	}
}

// normalize case-folds enumerations so later stages only see canonical values.
func normalize(cfg *Config) error {
	if raw := string(cfg.Retry.Backoff); raw != "" {
		mode := NormalizeRetryBackoff(raw)
		if mode == "" {
			return greq.NewError(greq.CategoryConfig, fmt.Sprintf("invalid retry backoff: %s", raw)).Build()
		}
		cfg.Retry.Backoff = mode
	}
	if raw := string(cfg.Auth.Type); raw != "" {
		t := NormalizeAuthType(raw)
		if t == "" {
			return greq.NewError(greq.CategoryConfig, fmt.Sprintf("invalid auth type: %s", raw)).Build()
		}
		cfg.Auth.Type = t
	}
	cfg.Logging.Level = NormalizeLogLevel(string(cfg.Logging.Level))
	cfg.Logging.Format = NormalizeLogFormat(string(cfg.Logging.Format))
	cfg.Docs.Format = strings.ToLower(strings.TrimSpace(cfg.Docs.Format))
	return nil
}
