package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"

	"linkcheck/internal/article"
	"linkcheck/internal/catalog"
	"linkcheck/internal/config"
	"linkcheck/internal/daemon"
	"linkcheck/internal/extract"
	"linkcheck/internal/pipeline"
	"linkcheck/internal/resultstore"
	"linkcheck/internal/session"
	"linkcheck/internal/unshort"
)

const serviceName = "linkcheckd"

// loadDotEnv reads .env from the working directory when present so the
// catalog credentials can live outside the config file.
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func buildRunner(cfg *config.Config, logger *slog.Logger, telemetry *daemon.Telemetry) *pipeline.Runner {
	resolver := unshort.NewFromConfig(cfg.Resolver, logger)
	opts := []pipeline.RunnerOption{
		pipeline.WithLogger(logger),
		pipeline.WithRunnerBatchSize(cfg.Catalog.BatchSize),
	}
	if telemetry != nil {
		opts = append(opts, pipeline.WithMetrics(pipeline.NewMetrics(telemetry.Meter("linkcheck/internal/pipeline"))))
	}
	return pipeline.NewRunner(
		article.NewFromConfig(cfg.Scraper, logger),
		extract.New(resolver, logger),
		catalog.NewFromConfig(cfg.Catalog, logger),
		opts...,
	)
}

func buildArchive(cfg *config.Config, logger *slog.Logger) (*resultstore.Archive, error) {
	if !cfg.Results.Enabled {
		return nil, nil
	}
	store, err := resultstore.Open(cfg.StorePath())
	if err != nil {
		return nil, fmt.Errorf("open result store: %w", err)
	}
	return resultstore.NewArchive(store, cfg.Results.ResultsFile, cfg.Results.MaxRuns, logger), nil
}

func buildDaemon(cfg *config.Config, logger *slog.Logger, version string) (*daemon.Daemon, error) {
	archive, err := buildArchive(cfg, logger)
	if err != nil {
		return nil, err
	}
	telemetry := daemon.NewTelemetry(serviceName, version)
	d, err := daemon.New(cfg, daemon.Dependencies{
		Registry:  session.NewRegistry(logger),
		Runner:    buildRunner(cfg, logger, telemetry),
		Archive:   archive,
		Telemetry: telemetry,
	}, logger)
	if err != nil {
		if archive != nil {
			_ = archive.Store().Close()
		}
		return nil, err
	}
	return d, nil
}
