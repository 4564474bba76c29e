package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateCatalog(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateServer() error {
	if _, _, err := net.SplitHostPort(c.Server.Bind); err != nil {
		return fmt.Errorf("server.bind %q must be host:port: %w", c.Server.Bind, err)
	}
	return nil
}

func (c *Config) validateCatalog() error {
	if c.Catalog.Marketplace != "" && !strings.HasPrefix(c.Catalog.Marketplace, "www.amazon.") {
		return fmt.Errorf("catalog.marketplace %q must look like www.amazon.<tld>", c.Catalog.Marketplace)
	}
	if (c.Catalog.AccessKey == "") != (c.Catalog.SecretKey == "") {
		return errors.New("catalog.access_key and catalog.secret_key must be set together")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q must be one of debug, info, warn, error", c.Logging.Level)
	}
}
