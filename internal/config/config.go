// Package config loads harness settings from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// ErrMissingCredentials is returned when TEST_EMAIL or TEST_PASSWORD is unset.
var ErrMissingCredentials = errors.New("missing TEST_EMAIL or TEST_PASSWORD env vars")

// Config holds every setting the harness reads from the environment.
type Config struct {
	// --- Service under test ---
	BaseURL  string `envconfig:"BASE_URL" default:"http://localhost:3000"`
	Email    string `envconfig:"TEST_EMAIL"`
	Password string `envconfig:"TEST_PASSWORD"`
	UserName string `envconfig:"TEST_USER_NAME" default:"Rank Test"`

	// --- Timing ---
	ReadyTimeout   time.Duration `envconfig:"READY_TIMEOUT" default:"30s"`
	ReadyInterval  time.Duration `envconfig:"READY_INTERVAL" default:"1s"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`

	// --- Logging ---
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`

	// Empty disables run history.
	ResultsDB string `envconfig:"RESULTS_DB"`
}

// Load reads the environment into a Config and normalizes it.
// Credentials are checked separately by Validate so that commands which
// never talk to the service (oracle, history) can still load settings.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &cfg, nil
}

// Validate checks the settings needed to drive the service.
func (c *Config) Validate() error {
	if c.Email == "" || c.Password == "" {
		return ErrMissingCredentials
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("BASE_URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("BASE_URL must be http or https, got %q", c.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("BASE_URL has no host: %q", c.BaseURL)
	}
	if c.ReadyTimeout <= 0 {
		return fmt.Errorf("READY_TIMEOUT must be > 0")
	}
	if c.ReadyInterval <= 0 {
		return fmt.Errorf("READY_INTERVAL must be > 0")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be > 0")
	}
	return nil
}
