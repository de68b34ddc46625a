// Package config defines the dashboard core configuration and its loader.
//
// Conventions:
// - New(ctx) builds a Config holding every default.
// - Load(ctx) layers an optional file and PEOPLE_* environment variables on top.
// - Errors wrap this package's sentinel kinds.
package config

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Sentinel error kinds for this package.
var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrLoadConfig    = errors.New("load config failed")
)

// Supported locales for period labels and fixed messages.
const (
	LocalePtBR = "pt-BR"
	LocaleEN   = "en"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the bridge API listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// APIBaseURL is the remote analytics service root, e.g. "http://localhost:8000".
	APIBaseURL string `koanf:"api_base_url"`

	// APIPrefix is prepended to every dataset and analysis path.
	APIPrefix string `koanf:"api_prefix"`

	// RequestTimeoutMS bounds each remote call. Zero keeps the transport default.
	RequestTimeoutMS int `koanf:"request_timeout_ms"`

	// TokenFile holds the bearer token. Empty keeps the token in memory only.
	TokenFile string `koanf:"token_file"`

	// Locale selects label language: pt-BR or en.
	Locale string `koanf:"locale"`

	// AllowedExtensions lists accepted upload file extensions.
	AllowedExtensions []string `koanf:"allowed_extensions"`

	// MaxUploadBytes caps upload size.
	MaxUploadBytes int64 `koanf:"max_upload_bytes"`

	// RequiredSheets lists worksheets every .xlsx upload must contain.
	RequiredSheets []string `koanf:"required_sheets"`

	// WorkerCount sets the number of fetch workers.
	WorkerCount int `koanf:"worker_count"`

	// QueueSize bounds the fetch job queue.
	QueueSize int `koanf:"queue_size"`

	// AllowedOrigins lists CORS origins for the bridge API.
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// New creates a Config with defaults. The context is accepted to keep
// the project-wide signature convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":9080",
		APIBaseURL:        "http://localhost:8000",
		APIPrefix:         "/api/v1",
		RequestTimeoutMS:  0,
		Locale:            LocalePtBR,
		AllowedExtensions: []string{".xlsx", ".xls"},
		MaxUploadBytes:    50 << 20,
		RequiredSheets:    []string{"colaboradores"},
		WorkerCount:       runtime.NumCPU(),
		QueueSize:         64,
		AllowedOrigins:    []string{"*"},
	}
}

// RequestTimeout returns the per-request timeout, zero when unset.
func (c *Config) RequestTimeout() time.Duration {
	if c.RequestTimeoutMS <= 0 {
		return 0
	}
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// Validate checks the fields the core cannot run without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.APIBaseURL) == "" {
		return fmt.Errorf("%w: api_base_url must not be empty", ErrInvalidConfig)
	}
	switch c.Locale {
	case LocalePtBR, LocaleEN:
	default:
		return fmt.Errorf("%w: unsupported locale %q", ErrInvalidConfig, c.Locale)
	}
	if c.WorkerCount <= 0 {
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("%w: max_upload_bytes must be positive", ErrInvalidConfig)
	}
	if len(c.AllowedExtensions) == 0 {
		return fmt.Errorf("%w: allowed_extensions must not be empty", ErrInvalidConfig)
	}
	return nil
}
