package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"linkcheck/internal/config"
	"linkcheck/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	base := testsupport.BaseDir(cfg)
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	for _, key := range []string{"PORT", "LINKCHECK_API_TOKEN", "PAAPI_ACCESS_KEY", "PAAPI_SECRET_KEY", "PAAPI_PARTNER_TAG", "PAAPI_MARKETPLACE"} {
		t.Setenv(key, "")
	}

	configPath := filepath.Join(homeDir, ".config", "linkcheck", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	var b strings.Builder
	fmt.Fprintf(&b, "[paths]\ndata_dir = %q\nlog_dir = %q\npublic_dir = %q\n\n", cfg.Paths.DataDir, cfg.Paths.LogDir, cfg.Paths.PublicDir)
	fmt.Fprintf(&b, "[server]\nbind = %q\napi_token = %q\n\n", cfg.Server.Bind, cfg.Server.APIToken)
	fmt.Fprintf(&b, "[catalog]\naccess_key = %q\nsecret_key = %q\npartner_tag = %q\nmarketplace = %q\nhost = %q\n\n",
		cfg.Catalog.AccessKey, cfg.Catalog.SecretKey, cfg.Catalog.PartnerTag, cfg.Catalog.Marketplace, cfg.Catalog.Host)
	fmt.Fprintf(&b, "[results]\nenabled = %t\nresults_file = %q\n", cfg.Results.Enabled, cfg.Results.ResultsFile)
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
