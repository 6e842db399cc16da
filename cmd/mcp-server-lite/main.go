// Command mcp-server-lite is the zero-dependency MCP entry point: in-memory
// caching and SQLite history under a local data directory.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ngs-reimbursement-mcp-server/internal/config"
	"github.com/ngs-reimbursement-mcp-server/internal/mcp"
	"github.com/ngs-reimbursement-mcp-server/internal/setup"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "setup" {
		if err := setup.NewCLI(os.Stdin, os.Stdout).Run(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "setup failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "mcp-server-lite: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.LoadLiteConfig()

	server, err := mcp.NewLiteServer(cfg)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	defer server.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return server.Start(ctx)
}
