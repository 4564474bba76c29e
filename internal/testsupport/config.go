package testsupport

import (
	"path/filepath"
	"testing"

	"linkcheck/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The server binds an ephemeral loopback port.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.PublicDir = filepath.Join(base, "public")
	cfgVal.Server.Bind = "127.0.0.1:0"
	cfgVal.Results.ResultsFile = filepath.Join(base, "data", "results.json")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithCatalogCredentials sets static catalog credentials on the test config.
func WithCatalogCredentials(accessKey, secretKey, partnerTag, marketplace string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Catalog.AccessKey = accessKey
		b.cfg.Catalog.SecretKey = secretKey
		b.cfg.Catalog.PartnerTag = partnerTag
		b.cfg.Catalog.Marketplace = marketplace
	}
}

// WithAPIToken requires a bearer token on /api routes.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Server.APIToken = token
	}
}

// WithCatalogHost points the catalog client at a test server.
func WithCatalogHost(host string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Catalog.Host = host
	}
}

// WithResultsDisabled turns off the saved-results archive.
func WithResultsDisabled() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Results.Enabled = false
	}
}

// BaseDir returns the temp directory backing the config, which is the parent
// of the data directory.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
