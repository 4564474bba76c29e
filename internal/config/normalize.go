package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeServer(); err != nil {
		return err
	}
	c.normalizeResolver()
	c.normalizeScraper()
	c.normalizeCatalog()
	if err := c.normalizeResults(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.PublicDir) == "" {
		c.Paths.PublicDir = defaultPublicDir
	}
	if c.Paths.PublicDir, err = expandPath(c.Paths.PublicDir); err != nil {
		return fmt.Errorf("paths.public_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeServer() error {
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultServerBind
	}
	if value, ok := os.LookupEnv("PORT"); ok && strings.TrimSpace(value) != "" {
		host, _, err := net.SplitHostPort(c.Server.Bind)
		if err != nil {
			return fmt.Errorf("server.bind: %w", err)
		}
		c.Server.Bind = net.JoinHostPort(host, strings.TrimSpace(value))
	}
	origins := make([]string, 0, len(c.Server.AllowedOrigins))
	for _, origin := range c.Server.AllowedOrigins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c.Server.AllowedOrigins = origins
	c.Server.APIToken = strings.TrimSpace(c.Server.APIToken)
	if c.Server.APIToken == "" {
		if value, ok := os.LookupEnv("LINKCHECK_API_TOKEN"); ok {
			c.Server.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeResolver() {
	if c.Resolver.TimeoutSeconds <= 0 {
		c.Resolver.TimeoutSeconds = defaultResolverTimeoutSeconds
	}
	if c.Resolver.MaxRedirects <= 0 {
		c.Resolver.MaxRedirects = defaultResolverMaxRedirects
	}
	c.Resolver.UserAgent = strings.TrimSpace(c.Resolver.UserAgent)
	if c.Resolver.UserAgent == "" {
		c.Resolver.UserAgent = defaultUserAgent
	}
}

func (c *Config) normalizeScraper() {
	if c.Scraper.TimeoutSeconds <= 0 {
		c.Scraper.TimeoutSeconds = defaultScraperTimeoutSeconds
	}
	c.Scraper.UserAgent = strings.TrimSpace(c.Scraper.UserAgent)
	if c.Scraper.UserAgent == "" {
		c.Scraper.UserAgent = defaultUserAgent
	}
	hosts := make([]string, 0, len(c.Scraper.LinkHosts))
	seen := make(map[string]struct{}, len(c.Scraper.LinkHosts))
	for _, host := range c.Scraper.LinkHosts {
		normalized := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(host)), "www.")
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		hosts = append(hosts, normalized)
	}
	if len(hosts) == 0 {
		hosts = append(hosts, defaultLinkHosts...)
	}
	c.Scraper.LinkHosts = hosts
}

func (c *Config) normalizeCatalog() {
	c.Catalog.AccessKey = strings.TrimSpace(c.Catalog.AccessKey)
	if c.Catalog.AccessKey == "" {
		if value, ok := os.LookupEnv("PAAPI_ACCESS_KEY"); ok {
			c.Catalog.AccessKey = strings.TrimSpace(value)
		}
	}
	c.Catalog.SecretKey = strings.TrimSpace(c.Catalog.SecretKey)
	if c.Catalog.SecretKey == "" {
		if value, ok := os.LookupEnv("PAAPI_SECRET_KEY"); ok {
			c.Catalog.SecretKey = strings.TrimSpace(value)
		}
	}
	c.Catalog.PartnerTag = strings.TrimSpace(c.Catalog.PartnerTag)
	if c.Catalog.PartnerTag == "" {
		if value, ok := os.LookupEnv("PAAPI_PARTNER_TAG"); ok {
			c.Catalog.PartnerTag = strings.TrimSpace(value)
		}
	}
	c.Catalog.Marketplace = strings.ToLower(strings.TrimSpace(c.Catalog.Marketplace))
	if c.Catalog.Marketplace == "" {
		if value, ok := os.LookupEnv("PAAPI_MARKETPLACE"); ok {
			c.Catalog.Marketplace = strings.ToLower(strings.TrimSpace(value))
		}
	}
	c.Catalog.Host = strings.TrimRight(strings.TrimSpace(c.Catalog.Host), "/")
	if c.Catalog.TimeoutSeconds <= 0 {
		c.Catalog.TimeoutSeconds = defaultCatalogTimeoutSeconds
	}
	if c.Catalog.BatchSize <= 0 || c.Catalog.BatchSize > maxCatalogBatchSize {
		c.Catalog.BatchSize = defaultCatalogBatchSize
	}
}

func (c *Config) normalizeResults() error {
	c.Results.ResultsFile = strings.TrimSpace(c.Results.ResultsFile)
	if c.Results.ResultsFile == "" {
		c.Results.ResultsFile = defaultResultsFile
	}
	if !filepath.IsAbs(c.Results.ResultsFile) && !strings.HasPrefix(c.Results.ResultsFile, "~") {
		c.Results.ResultsFile = filepath.Join(c.Paths.DataDir, c.Results.ResultsFile)
	}
	var err error
	if c.Results.ResultsFile, err = expandPath(c.Results.ResultsFile); err != nil {
		return fmt.Errorf("results.results_file: %w", err)
	}
	if c.Results.MaxRuns < 0 {
		c.Results.MaxRuns = 0
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
