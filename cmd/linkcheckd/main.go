package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"linkcheck/internal/config"
	"linkcheck/internal/logging"
)

var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := loadDotEnv(); err != nil {
		log.Fatal(err)
	}

	cfg, _, _, err := config.Load(os.Getenv("LINKCHECK_CONFIG"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	d, err := buildDaemon(cfg, logger, version)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		os.Exit(1)
	}
	defer d.Close()

	if !cfg.HasCatalogCredentials() {
		logger.Info("no static catalog credentials configured; clients must supply their own")
	}

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("linkcheckd shutting down")
}
