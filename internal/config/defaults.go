package config

const (
	defaultDataDir                = "~/.local/share/linkcheck"
	defaultLogDir                 = "~/.local/share/linkcheck/logs"
	defaultPublicDir              = "./public"
	defaultServerBind             = "0.0.0.0:3000"
	defaultResolverTimeoutSeconds = 10
	defaultResolverMaxRedirects   = 10
	defaultScraperTimeoutSeconds  = 20
	defaultUserAgent              = "linkcheck/dev (+affiliate link checker)"
	defaultCatalogTimeoutSeconds  = 15
	defaultCatalogBatchSize       = 10
	maxCatalogBatchSize           = 10
	defaultResultsFile            = "results.json"
	defaultResultsMaxRuns         = 50
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
)

var defaultLinkHosts = []string{"amzn.to", "amazon.*"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			LogDir:    defaultLogDir,
			PublicDir: defaultPublicDir,
		},
		Server: Server{
			Bind:           defaultServerBind,
			AllowedOrigins: []string{"*"},
		},
		Resolver: Resolver{
			TimeoutSeconds: defaultResolverTimeoutSeconds,
			MaxRedirects:   defaultResolverMaxRedirects,
			UserAgent:      defaultUserAgent,
		},
		Scraper: Scraper{
			TimeoutSeconds: defaultScraperTimeoutSeconds,
			UserAgent:      defaultUserAgent,
			LinkHosts:      append([]string(nil), defaultLinkHosts...),
		},
		Catalog: Catalog{
			TimeoutSeconds: defaultCatalogTimeoutSeconds,
			BatchSize:      defaultCatalogBatchSize,
		},
		Results: Results{
			Enabled:     true,
			ResultsFile: defaultResultsFile,
			MaxRuns:     defaultResultsMaxRuns,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
