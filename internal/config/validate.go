package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateDashboard(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateAPI() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required; set SHOWRUNNER_API_URL or edit the config file")
	}
	parsed, err := url.Parse(c.API.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("api.base_url %q is not an absolute URL", c.API.BaseURL)
	}
	if c.API.TimeoutSeconds <= 0 {
		return fmt.Errorf("api.timeout_seconds must be positive, got %d", c.API.TimeoutSeconds)
	}
	return nil
}

func (c *Config) validateDashboard() error {
	if c.Dashboard.PollIntervalSeconds <= 0 {
		return fmt.Errorf("dashboard.poll_interval_seconds must be positive, got %d", c.Dashboard.PollIntervalSeconds)
	}
	if c.Dashboard.ListLimit <= 0 {
		return fmt.Errorf("dashboard.list_limit must be positive, got %d", c.Dashboard.ListLimit)
	}
	if external := strings.TrimSpace(c.Dashboard.ExternalURL); external != "" {
		parsed, err := url.Parse(external)
		if err != nil || parsed.Scheme == "" {
			return fmt.Errorf("dashboard.external_url %q is not a URL", external)
		}
	}
	return nil
}

func (c *Config) validateNotifications() error {
	endpoint := strings.TrimSpace(c.Notifications.NtfyEndpoint)
	if endpoint == "" {
		return nil
	}
	parsed, err := url.Parse(endpoint)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("notifications.ntfy_endpoint %q is not an absolute URL", endpoint)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}
