package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// API contains connection settings for the generation pipeline.
type API struct {
	BaseURL        string `toml:"base_url"`
	Token          string `toml:"token"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Dashboard contains behavior settings for the job dashboard.
type Dashboard struct {
	PollIntervalSeconds int    `toml:"poll_interval_seconds"`
	ListLimit           int    `toml:"list_limit"`
	VideoEnabled        bool   `toml:"video_enabled"`
	PollDisabled        bool   `toml:"poll_disabled"`
	ExternalURL         string `toml:"external_url"`
}

// Artifacts contains settings for the local artifact spool.
type Artifacts struct {
	SpoolDir string `toml:"spool_dir"`
}

// Notifications contains push notification settings. An empty ntfy_endpoint
// disables notifications.
type Notifications struct {
	NtfyEndpoint   string `toml:"ntfy_endpoint"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config is the root configuration object. It is constructed once and passed
// into components explicitly; nothing reads it ambiently.
type Config struct {
	API           API           `toml:"api"`
	Dashboard     Dashboard     `toml:"dashboard"`
	Artifacts     Artifacts     `toml:"artifacts"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// PollInterval returns the poll period as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Dashboard.PollIntervalSeconds) * time.Second
}

// APITimeout returns the HTTP request timeout as a duration.
func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// NotifyTimeout returns the ntfy request timeout as a duration.
func (c *Config) NotifyTimeout() time.Duration {
	return time.Duration(c.Notifications.TimeoutSeconds) * time.Second
}

// envOverrides mirrors the environment-level knobs that can override file
// configuration. Pointer fields distinguish "unset" from zero values.
type envOverrides struct {
	APIURL       *string `envconfig:"API_URL"`
	APIToken     *string `envconfig:"API_TOKEN"`
	VideoEnabled *bool   `envconfig:"VIDEO_ENABLED"`
	PollDisabled *bool   `envconfig:"POLL_DISABLED"`
	ExternalURL  *string `envconfig:"EXTERNAL_URL"`
	NtfyEndpoint *string `envconfig:"NTFY_ENDPOINT"`
	LogLevel     *string `envconfig:"LOG_LEVEL"`
}

// DefaultConfigPath returns the canonical config file location.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "showrunner", "config.toml"), nil
}

// Load reads configuration from path (or the default location when path is
// empty), applies SHOWRUNNER_* environment overrides, normalizes paths, and
// validates the result. A missing file is not an error; defaults apply.
// The resolved path is returned alongside the config.
func Load(path string) (*Config, string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return nil, "", err
		}
		path = defaultPath
	}
	expanded, err := ExpandPath(path)
	if err != nil {
		return nil, "", err
	}
	path = expanded

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, path, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
		// Defaults plus environment are enough to run against localhost.
	default:
		return nil, path, fmt.Errorf("read %s: %w", path, err)
	}

	var overrides envOverrides
	if err := envconfig.Process("showrunner", &overrides); err != nil {
		return nil, path, fmt.Errorf("environment overrides: %w", err)
	}
	overrides.apply(&cfg)

	if err := cfg.normalize(); err != nil {
		return nil, path, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, path, err
	}
	return &cfg, path, nil
}

func (o envOverrides) apply(cfg *Config) {
	if o.APIURL != nil {
		cfg.API.BaseURL = *o.APIURL
	}
	if o.APIToken != nil {
		cfg.API.Token = *o.APIToken
	}
	if o.VideoEnabled != nil {
		cfg.Dashboard.VideoEnabled = *o.VideoEnabled
	}
	if o.PollDisabled != nil {
		cfg.Dashboard.PollDisabled = *o.PollDisabled
	}
	if o.ExternalURL != nil {
		cfg.Dashboard.ExternalURL = *o.ExternalURL
	}
	if o.NtfyEndpoint != nil {
		cfg.Notifications.NtfyEndpoint = *o.NtfyEndpoint
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
}

func (c *Config) normalize() error {
	spool, err := ExpandPath(c.Artifacts.SpoolDir)
	if err != nil {
		return fmt.Errorf("artifacts.spool_dir: %w", err)
	}
	c.Artifacts.SpoolDir = spool
	c.API.BaseURL = strings.TrimRight(strings.TrimSpace(c.API.BaseURL), "/")
	c.API.Token = strings.TrimSpace(c.API.Token)
	return nil
}

// EnsureDirectories creates the directories the client writes into.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.Artifacts.SpoolDir, 0o755); err != nil {
		return fmt.Errorf("create artifact spool: %w", err)
	}
	return nil
}

// ExpandPath resolves a leading ~ against the current user's home directory.
func ExpandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" || !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
}

// WriteSample writes the annotated sample config to path, refusing to
// overwrite an existing file.
func WriteSample(path string) error {
	expanded, err := ExpandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists at %s", expanded)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(expanded, []byte(sampleConfig), 0o644)
}
