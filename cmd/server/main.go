// Command server runs the NGS reimbursement engine as an HTTP API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/ngs-reimbursement-mcp-server/internal/api"
	"github.com/ngs-reimbursement-mcp-server/internal/app"
	"github.com/ngs-reimbursement-mcp-server/internal/config"
	"github.com/ngs-reimbursement-mcp-server/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env file is normal outside development.
	_ = godotenv.Load()

	configManager, err := config.NewManager()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := configManager.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	cfg := configManager.GetConfig()

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	server := api.NewServer(cfg, api.Dependencies{
		Analyzer: application.Analyzer,
		History:  application.History,
		Health:   application.Health,
		Logger:   logger,
	})

	logger.WithFields(logrus.Fields{
		"host":       cfg.Server.Host,
		"port":       cfg.Server.Port,
		"production": configManager.IsProduction(),
	}).Info("Starting NGS reimbursement API server")

	if err := server.Start(ctx); err != nil {
		return err
	}

	logger.Info("Server stopped")
	return nil
}
