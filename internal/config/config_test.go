package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"linkcheck/internal/config"
)

func TestLoadDefaultConfigUsesEnvCredentialsAndExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("PAAPI_ACCESS_KEY", "AKIDEXAMPLE")
	t.Setenv("PAAPI_SECRET_KEY", "secret")
	t.Setenv("PAAPI_PARTNER_TAG", "mytag-20")
	t.Setenv("PAAPI_MARKETPLACE", "WWW.AMAZON.COM")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "linkcheck")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Results.ResultsFile != filepath.Join(wantData, "results.json") {
		t.Fatalf("unexpected results file: %q", cfg.Results.ResultsFile)
	}
	if cfg.Catalog.AccessKey != "AKIDEXAMPLE" || cfg.Catalog.PartnerTag != "mytag-20" {
		t.Fatalf("expected catalog credentials from env, got %+v", cfg.Catalog)
	}
	if cfg.Catalog.Marketplace != "www.amazon.com" {
		t.Fatalf("expected lowercased marketplace, got %q", cfg.Catalog.Marketplace)
	}
	if !cfg.HasCatalogCredentials() {
		t.Fatal("expected complete catalog credentials")
	}
	if cfg.Catalog.BatchSize != 10 {
		t.Fatalf("unexpected batch size: %d", cfg.Catalog.BatchSize)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadPortEnvOverridesBindPort(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("PORT", "8123")
	t.Chdir(t.TempDir())

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Bind != "0.0.0.0:8123" {
		t.Fatalf("expected PORT to override bind, got %q", cfg.Server.Bind)
	}
}

func TestLoadAPITokenFromEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("LINKCHECK_API_TOKEN", " s3cret ")
	t.Chdir(t.TempDir())

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.APIToken != "s3cret" {
		t.Fatalf("expected trimmed api token from env, got %q", cfg.Server.APIToken)
	}
}

func TestLoadCustomPath(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "linkcheck.toml")

	type payload struct {
		Scraper struct {
			LinkHosts []string `toml:"link_hosts"`
		} `toml:"scraper"`
		Catalog struct {
			BatchSize   int    `toml:"batch_size"`
			Marketplace string `toml:"marketplace"`
		} `toml:"catalog"`
		Results struct {
			ResultsFile string `toml:"results_file"`
		} `toml:"results"`
	}
	custom := payload{}
	custom.Scraper.LinkHosts = []string{" WWW.Amazon.com ", "amzn.to", "amazon.com", ""}
	custom.Catalog.BatchSize = 50
	custom.Catalog.Marketplace = "www.amazon.co.uk"
	custom.Results.ResultsFile = filepath.Join(tempDir, "saved.json")
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if got := strings.Join(cfg.Scraper.LinkHosts, ","); got != "amazon.com,amzn.to" {
		t.Fatalf("expected deduplicated link hosts, got %q", got)
	}
	if cfg.Catalog.BatchSize != 10 {
		t.Fatalf("expected batch size clamped to 10, got %d", cfg.Catalog.BatchSize)
	}
	if cfg.Results.ResultsFile != filepath.Join(tempDir, "saved.json") {
		t.Fatalf("expected absolute results file to be kept, got %q", cfg.Results.ResultsFile)
	}
}

func TestValidateRejectsBadMarketplace(t *testing.T) {
	cfg := config.Default()
	cfg.Catalog.Marketplace = "amazon.com"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected marketplace validation error")
	}
}

func TestValidateRequiresPairedKeys(t *testing.T) {
	cfg := config.Default()
	cfg.Catalog.AccessKey = "only-access"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when secret key missing")
	}
}

func TestCreateSampleWritesLoadableConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	if _, _, exists, err := config.Load(path); err != nil || !exists {
		t.Fatalf("expected sample config to load, exists=%v err=%v", exists, err)
	}
}
