// Command mcp-server serves the reimbursement engine over MCP stdio using the
// full configuration: Redis or in-memory cache and SQLite or PostgreSQL history.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ngs-reimbursement-mcp-server/internal/app"
	"github.com/ngs-reimbursement-mcp-server/internal/config"
	"github.com/ngs-reimbursement-mcp-server/internal/domain"
	"github.com/ngs-reimbursement-mcp-server/internal/logging"
	"github.com/ngs-reimbursement-mcp-server/internal/mcp"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "mcp-server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	configManager, err := config.NewManager()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := configManager.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	cfg := configManager.GetConfig()

	// stdout carries the protocol
	logCfg := cfg.Logging
	if logCfg.Output == "" || logCfg.Output == "stdout" {
		logCfg.Output = "stderr"
	}
	logger, err := logging.New(logCfg)
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

	exportDir := ""
	if cfg.Database.Driver == domain.DriverSQLite {
		exportDir = filepath.Join(filepath.Dir(cfg.Database.SQLitePath), "exports")
	}

	server := mcp.NewServer(application.Analyzer, logger, mcp.Options{
		Name:      cfg.MCP.ServerName,
		Version:   cfg.MCP.ServerVersion,
		History:   application.History,
		ExportDir: exportDir,
	})
	if err := server.Start(ctx); err != nil {
		return err
	}

	logger.Info("MCP server stopped")
	return nil
}
