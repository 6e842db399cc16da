package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ngs-reimbursement-mcp-server/internal/app"
	"github.com/ngs-reimbursement-mcp-server/internal/catalog"
	"github.com/ngs-reimbursement-mcp-server/internal/config"
	"github.com/ngs-reimbursement-mcp-server/internal/domain"
	"github.com/ngs-reimbursement-mcp-server/internal/logging"
)

const (
	outputJSON  = "json"
	outputCSV   = "csv"
	outputTable = "table"
)

// cli carries state shared by every command. The application is built lazily
// so commands that only need reference data never open the database.
type cli struct {
	configFile string
	logLevel   string

	cfg    *domain.Config
	logger *logrus.Logger
	app    *app.App
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ngs-reimb",
		Short:         "NGS panel reimbursement risk and profitability analysis",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load()
		},
	}
	root.PersistentFlags().StringVar(&c.configFile, "config", "", "config file (default: ./config.yaml, ./config/config.yaml)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "warn", "log level written to stderr")

	root.AddCommand(
		c.panelsCmd(),
		c.classifyCmd(),
		c.riskCmd(),
		c.analyzeCmd(),
		c.simulateCmd(),
		c.carveOutCmd(),
		c.checklistCmd(),
		c.denialSummaryCmd(),
		c.historyCmd(),
		c.migrateCmd(),
		setupCmd(),
	)
	return root
}

// execute runs one command line and then closes the application. Cobra skips
// post-run hooks when RunE fails, so the close happens here.
func (c *cli) execute(args []string, in io.Reader, out, errOut io.Writer) error {
	root := c.rootCmd()
	root.SetArgs(args)
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	err := root.Execute()
	if closeErr := c.close(); err == nil {
		err = closeErr
	}
	return err
}

func (c *cli) load() error {
	if c.cfg != nil {
		return nil
	}
	_ = godotenv.Load()

	manager, err := config.NewManagerWithFile(c.configFile)
	if err != nil {
		return err
	}
	if err := manager.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	c.cfg = manager.GetConfig()

	logCfg := c.cfg.Logging
	logCfg.Level = c.logLevel
	logCfg.Output = "stderr"
	if c.logger, err = logging.New(logCfg); err != nil {
		return err
	}
	return nil
}

func (c *cli) application(ctx context.Context) (*app.App, error) {
	if c.app != nil {
		return c.app, nil
	}
	a, err := app.New(ctx, c.cfg, c.logger)
	if err != nil {
		return nil, err
	}
	c.app = a
	return a, nil
}

func (c *cli) catalogs() (*catalog.Set, error) {
	if c.app != nil {
		return c.app.Catalogs, nil
	}
	return catalog.Load(c.cfg.Engine.CatalogFile, c.cfg.Engine.DefaultCatalog)
}

func (c *cli) close() error {
	if c.app == nil {
		return nil
	}
	err := c.app.Close()
	c.app = nil
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func checkOutput(output string, allowed ...string) error {
	for _, a := range allowed {
		if output == a {
			return nil
		}
	}
	return domain.NewValidationError("output", fmt.Sprintf("must be one of %v", allowed), output)
}
