package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/symptom-dx-server/internal/api"
	"github.com/symptom-dx-server/internal/app"
	"github.com/symptom-dx-server/internal/config"
	"github.com/symptom-dx-server/internal/logging"
	"github.com/symptom-dx-server/internal/setup"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	cfg := configManager.GetConfig()
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}

	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if len(os.Args) > 1 && os.Args[1] == "setup" {
		if err := setup.NewCLI(configManager, logger).Run(ctx, os.Args[2:]); err != nil {
			logger.WithError(err).Error("Setup failed")
			os.Exit(1)
		}
		return
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		logger.WithError(err).Fatal("Configuration validation failed")
	}

	components, err := app.New(ctx, configManager, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize components")
	}
	defer components.Close()
	components.WatchArtifacts(ctx)

	server := api.NewServer(configManager, api.Dependencies{
		Service: components.Service,
		Models:  components.Lifecycle,
		History: components.History,
		Cache:   components.Cache,
		Logger:  logger,
	})

	logger.WithField("addr", cfg.Server.Host).WithField("port", cfg.Server.Port).Info("Starting symptom diagnosis server")
	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Error("Server failed")
		components.Close()
		os.Exit(1)
	}

	logger.Info("Server stopped")
}
