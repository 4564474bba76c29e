package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"linkcheck/internal/api"
	"linkcheck/internal/config"
	"linkcheck/internal/logging"
)

const apiTimeout = 10 * time.Second

type commandContext struct {
	configFlag *string
	daemonFlag *string
	tokenFlag  *string
	verbose    *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, daemonFlag, tokenFlag *string, verbose *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		daemonFlag: daemonFlag,
		tokenFlag:  tokenFlag,
		verbose:    verbose,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			c.configErr = fmt.Errorf("load .env: %w", err)
			return
		}
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// logger writes to stderr so command output on stdout stays parseable.
func (c *commandContext) logger() *slog.Logger {
	level := "warn"
	if c.verbose != nil && *c.verbose {
		level = "debug"
	}
	logger, err := logging.New(logging.Options{Level: level, Format: "console", OutputPaths: []string{"stderr"}})
	if err != nil {
		return logging.NewNop()
	}
	return logger
}

// daemonAddress returns the address the CLI dials. A wildcard bind host is
// replaced with loopback.
func (c *commandContext) daemonAddress() string {
	if c.daemonFlag != nil && strings.TrimSpace(*c.daemonFlag) != "" {
		return strings.TrimSpace(*c.daemonFlag)
	}
	cfg, err := c.ensureConfig()
	if err != nil || cfg == nil {
		return "127.0.0.1:3000"
	}
	host, port, err := net.SplitHostPort(cfg.Server.Bind)
	if err != nil {
		return cfg.Server.Bind
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}

func (c *commandContext) apiClient() *api.Client {
	token := ""
	if c.tokenFlag != nil {
		token = strings.TrimSpace(*c.tokenFlag)
	}
	if token == "" {
		if cfg, err := c.ensureConfig(); err == nil && cfg != nil {
			token = cfg.Server.APIToken
		}
	}
	return api.NewClient(c.daemonAddress(), token, apiTimeout)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
