package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"

	"github.com/ngs-reimbursement-mcp-server/internal/app"
	"github.com/ngs-reimbursement-mcp-server/internal/database"
	"github.com/ngs-reimbursement-mcp-server/internal/domain"
	"github.com/ngs-reimbursement-mcp-server/internal/report"
	"github.com/ngs-reimbursement-mcp-server/internal/setup"
)

func (c *cli) historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect and move recorded analyses",
	}
	cmd.AddCommand(
		c.historyListCmd(),
		c.historyShowCmd(),
		c.historyDeleteCmd(),
		c.historyExportCmd(),
		c.historyImportCmd(),
	)
	return cmd
}

func (c *cli) historyListCmd() *cobra.Command {
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded analyses, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return domain.NewValidationError("limit", "must be positive", limit)
			}
			a, err := c.application(cmd.Context())
			if err != nil {
				return err
			}
			records, err := a.History.List(cmd.Context(), limit, offset)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tCATALOG\tPANEL\tCPT\tRISK\tSCORE\tANNUAL NET PROFIT")
			for _, r := range records {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%.3f\t%.2f\n",
					r.ID, r.CreatedAt.Format("2006-01-02 15:04"), r.CatalogName, r.PanelName,
					r.CPTCode, r.RiskLevel, r.OverallScore, r.AnnualNetProfit)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of analyses")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of analyses to skip")
	return cmd
}

func (c *cli) historyShowCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print one recorded analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exporter, err := report.NewExporter(output)
			if err != nil {
				return err
			}
			a, err := c.application(cmd.Context())
			if err != nil {
				return err
			}
			record, err := a.History.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			result, err := record.DecodeResult()
			if err != nil {
				return err
			}
			return exporter.ExportAnalysis(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", outputJSON, "json or csv")
	return cmd
}

func (c *cli) historyDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a recorded analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.application(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.History.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

func (c *cli) historyExportCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every recorded analysis as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.application(cmd.Context())
			if err != nil {
				return err
			}
			if file == "" {
				return a.History.ExportJSON(cmd.Context(), cmd.OutOrStdout())
			}

			f, err := os.Create(file)
			if err != nil {
				return err
			}
			if err := a.History.ExportJSON(cmd.Context(), f); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "output file (stdout when empty)")
	return cmd
}

func (c *cli) historyImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.json>",
		Short: "Import analyses written by history export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			a, err := c.application(cmd.Context())
			if err != nil {
				return err
			}
			imported, skipped, err := a.History.ImportJSON(cmd.Context(), f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d, skipped %d\n", imported, skipped)
			return nil
		},
	}
}

func (c *cli) migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL history schema",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := c.load(); err != nil {
				return err
			}
			if c.cfg.Database.Driver != domain.DriverPostgres {
				return fmt.Errorf("migrations apply to the %s driver only, configured driver is %q",
					domain.DriverPostgres, c.cfg.Database.Driver)
			}
			return nil
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return app.Migrate(cmd.Context(), c.cfg.Database.URL, c.logger, true)
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back every migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return app.Migrate(cmd.Context(), c.cfg.Database.URL, c.logger, false)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				runner, err := database.NewMigrationRunner(c.cfg.Database.URL, c.logger)
				if err != nil {
					return err
				}
				defer runner.Close()

				version, dirty, err := runner.Version()
				if errors.Is(err, migrate.ErrNilVersion) {
					fmt.Fprintln(cmd.OutOrStdout(), "no migrations applied")
					return nil
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", version, dirty)
				return nil
			},
		},
	)
	return cmd
}

func setupCmd() *cobra.Command {
	return &cobra.Command{
		Use:                "setup [command]",
		Short:              "Register the lite MCP server with an MCP client",
		DisableFlagParsing: true,
		PersistentPreRunE:  func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			return setup.NewCLI(cmd.InOrStdin(), cmd.OutOrStdout()).Run(args)
		},
	}
}
