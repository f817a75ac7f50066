package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/symptom-dx-server/internal/app"
	"github.com/symptom-dx-server/internal/config"
	"github.com/symptom-dx-server/internal/logging"
	"github.com/symptom-dx-server/internal/mcp"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// stdout carries the MCP protocol
	cfg := configManager.GetConfig()
	if cfg.Logging.Output == "" || cfg.Logging.Output == "stdout" {
		cfg.Logging.Output = "stderr"
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}

	if err := configManager.Validate(); err != nil {
		logger.WithError(err).Fatal("Configuration validation failed")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	components, err := app.New(ctx, configManager, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize components")
	}
	defer components.Close()
	components.WatchArtifacts(ctx)

	server, err := mcp.NewServer(components.Service, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create MCP server")
	}

	if err := server.Run(ctx); err != nil {
		logger.WithError(err).Error("MCP server stopped with error")
		return
	}
	logger.Info("Symptom diagnosis MCP server stopped")
}
