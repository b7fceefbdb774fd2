package testsupport

import (
	"path/filepath"
	"testing"

	"showrunner/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with a unique temp spool per test and a
// fast poll interval. It defaults common fields and applies any provided
// options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.API.BaseURL = "http://127.0.0.1:0"
	cfg.API.Token = "test-token"
	cfg.Artifacts.SpoolDir = filepath.Join(t.TempDir(), "spool")
	cfg.Dashboard.PollIntervalSeconds = 1

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithBaseURL points the config at the given API endpoint.
func WithBaseURL(url string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.API.BaseURL = url
	}
}

// WithToken sets the bearer token.
func WithToken(token string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.API.Token = token
	}
}

// WithVideoDisabled turns the video feature flag off.
func WithVideoDisabled() ConfigOption {
	return func(cfg *config.Config) {
		cfg.Dashboard.VideoEnabled = false
	}
}

// WithPollDisabled turns background polling off.
func WithPollDisabled() ConfigOption {
	return func(cfg *config.Config) {
		cfg.Dashboard.PollDisabled = true
	}
}
