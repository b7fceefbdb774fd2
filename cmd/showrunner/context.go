package main

import (
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"showrunner/internal/config"
	"showrunner/internal/pipeline"
)

type commandContext struct {
	configFlag *string
	apiURLFlag *string
	tokenFlag  *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag, apiURLFlag, tokenFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		apiURLFlag: apiURLFlag,
		tokenFlag:  tokenFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.apiURLFlag != nil && strings.TrimSpace(*c.apiURLFlag) != "" {
			cfg.API.BaseURL = strings.TrimRight(strings.TrimSpace(*c.apiURLFlag), "/")
		}
		if c.tokenFlag != nil && strings.TrimSpace(*c.tokenFlag) != "" {
			cfg.API.Token = strings.TrimSpace(*c.tokenFlag)
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) newClient() (*pipeline.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return pipeline.New(cfg.API.BaseURL, cfg.API.Token, pipeline.WithTimeout(cfg.APITimeout()))
}

func (c *commandContext) withClient(fn func(*pipeline.Client) error) error {
	client, err := c.newClient()
	if err != nil {
		return err
	}
	return fn(client)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
