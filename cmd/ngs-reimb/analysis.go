package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ngs-reimbursement-mcp-server/internal/domain"
	"github.com/ngs-reimbursement-mcp-server/internal/report"
	"github.com/ngs-reimbursement-mcp-server/internal/service"
)

func addProfileFlags(cmd *cobra.Command, p *domain.LabProfile) {
	f := cmd.Flags()
	f.StringVar((*string)(&p.Backbone), "backbone", string(domain.BackbonePanel), "Panel, Exome or Genome")
	f.StringVar((*string)(&p.Positioning), "positioning", string(domain.PositioningFirstLine), "FirstLine, Reflex or Confirmatory")
	f.StringVar((*string)(&p.Region), "region", string(domain.RegionNational), "National, Northeast, South, Midwest or West")
	f.StringVar((*string)(&p.ReportingStrategy), "strategy", string(domain.ReportingFullReport), "FullReport or CarveOut")
	f.StringVar((*string)(&p.Specialty), "specialty", string(domain.SpecialtyOncology), "Oncology, Cardiology, Neurology, RareDisease or Prenatal")
	f.IntVar(&p.AnnualVolume, "volume", 1000, "annual test volume")
	f.Float64Var(&p.CostPerSample, "cost", 0, "cost per sample")
	f.Float64Var(&p.Reimbursement, "reimbursement", 0, "expected reimbursement per test (0 uses the CPT base rate where a panel is given)")
	f.Float64Var(&p.PriorAuthRate, "prior-auth", 0, "fraction of tests needing prior authorization")
	f.Float64Var(&p.BadDebtRate, "bad-debt", 0, "fraction of billed revenue written off")
}

func (c *cli) panelsCmd() *cobra.Command {
	var catalogName, output string
	cmd := &cobra.Command{
		Use:   "panels",
		Short: "List catalog panels with their CPT code and risk tier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkOutput(output, outputTable, outputJSON); err != nil {
				return err
			}
			set, err := c.catalogs()
			if err != nil {
				return err
			}
			cat, err := set.Catalog(catalogName)
			if err != nil {
				return err
			}
			classifier := service.NewPanelClassifier(set)

			panels := make([]*domain.PanelClassification, 0, cat.Len())
			for _, e := range cat.Entries() {
				pc, err := classifier.ClassifyPanel(cat.Name(), e.Name)
				if err != nil {
					return err
				}
				panels = append(panels, pc)
			}

			if output == outputJSON {
				return writeJSON(cmd.OutOrStdout(), panels)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PANEL\tCATEGORY\tGENES\tCPT\tBASE RATE\tRISK")
			for _, p := range panels {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%.2f\t%s\n",
					p.Panel, p.Category.DisplayName(), p.GeneCount, p.CPTCode, p.BaseRate, p.RiskLevel.DisplayName())
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&catalogName, "catalog", "", "catalog name (default catalog when empty)")
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "table or json")
	return cmd
}

func (c *cli) classifyCmd() *cobra.Command {
	var catalogName string
	var genes int
	cmd := &cobra.Command{
		Use:   "classify <panel>",
		Short: "Resolve a panel's CPT code, base rate and risk tier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := c.catalogs()
			if err != nil {
				return err
			}
			classifier := service.NewPanelClassifier(set)

			var pc *domain.PanelClassification
			if cmd.Flags().Changed("genes") {
				pc, err = classifier.ClassifyPanelWithGeneCount(catalogName, args[0], genes)
			} else {
				pc, err = classifier.ClassifyPanel(catalogName, args[0])
			}
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), pc)
		},
	}
	cmd.Flags().StringVar(&catalogName, "catalog", "", "catalog name (default catalog when empty)")
	cmd.Flags().IntVar(&genes, "genes", 0, "override the catalog gene count")
	return cmd
}

func (c *cli) riskCmd() *cobra.Command {
	var profile domain.LabProfile
	cmd := &cobra.Command{
		Use:   "risk",
		Short: "Compute the risk score, financials and break-even for a lab profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := profile.Validate(); err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), service.DefaultRiskModel().AnalyzeProfile(profile))
		},
	}
	addProfileFlags(cmd, &profile)
	return cmd
}

func (c *cli) analyzeCmd() *cobra.Command {
	var req domain.AnalysisRequest
	var genes int
	var seed uint64
	var output string
	cmd := &cobra.Command{
		Use:   "analyze <panel>",
		Short: "Run the full analysis for a panel and lab profile and record it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkOutput(output, outputJSON, outputCSV); err != nil {
				return err
			}
			req.Panel = args[0]
			if cmd.Flags().Changed("genes") {
				req.GeneCount = &genes
			}
			if cmd.Flags().Changed("seed") {
				req.Seed = &seed
			}
			if err := req.Profile.Validate(); err != nil {
				return err
			}

			a, err := c.application(cmd.Context())
			if err != nil {
				return err
			}
			result, err := a.Analyzer.Analyze(cmd.Context(), &req)
			if err != nil {
				return err
			}

			exporter, err := report.NewExporter(output)
			if err != nil {
				return err
			}
			return exporter.ExportAnalysis(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVar(&req.Catalog, "catalog", "", "catalog name (default catalog when empty)")
	cmd.Flags().IntVar(&genes, "genes", 0, "override the catalog gene count")
	cmd.Flags().BoolVar(&req.UseCPTRate, "use-cpt-rate", false, "use the CPT base rate as reimbursement")
	cmd.Flags().BoolVar(&req.Simulate, "simulate", false, "add a Monte Carlo simulation")
	cmd.Flags().IntVar(&req.Trials, "trials", 0, "simulation trials (configured default when 0)")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "simulation seed")
	cmd.Flags().StringVarP(&output, "output", "o", outputJSON, "json or csv")
	addProfileFlags(cmd, &req.Profile)
	return cmd
}

func (c *cli) simulateCmd() *cobra.Command {
	var profile domain.LabProfile
	var trials int
	var seed uint64
	var output string
	var samples bool
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Monte Carlo simulation of annual net profit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkOutput(output, outputJSON, outputCSV); err != nil {
				return err
			}
			if err := profile.Validate(); err != nil {
				return err
			}
			var seedPtr *uint64
			if cmd.Flags().Changed("seed") {
				seedPtr = &seed
			}

			a, err := c.application(cmd.Context())
			if err != nil {
				return err
			}
			result, err := a.Analyzer.Simulate(cmd.Context(), profile, trials, seedPtr)
			if err != nil {
				return err
			}
			if !samples && output == outputJSON {
				result.Samples = nil
			}

			exporter, err := report.NewExporter(output)
			if err != nil {
				return err
			}
			return exporter.ExportSimulation(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().IntVar(&trials, "trials", 0, "number of trials (configured default when 0)")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "seed for a reproducible run")
	cmd.Flags().BoolVar(&samples, "samples", false, "include every sample in JSON output")
	cmd.Flags().StringVarP(&output, "output", "o", outputJSON, "json or csv")
	addProfileFlags(cmd, &profile)
	return cmd
}

func (c *cli) carveOutCmd() *cobra.Command {
	var backbone string
	var margin float64
	cmd := &cobra.Command{
		Use:   "carve-out",
		Short: "Panels needed to cover one exome or genome backbone run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			analysis, ok := service.CarveOutBreakEven(domain.Backbone(backbone), margin)
			if !ok {
				return domain.NewValidationError("backbone", "must be Exome or Genome", backbone)
			}
			return writeJSON(cmd.OutOrStdout(), analysis)
		},
	}
	cmd.Flags().StringVar(&backbone, "backbone", string(domain.BackboneExome), "Exome or Genome")
	cmd.Flags().Float64Var(&margin, "margin", 0, "margin per carved-out panel (100 when not positive)")
	return cmd
}

func (c *cli) checklistCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "checklist",
		Short: "Print the billing and documentation checklist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, item := range service.BillingChecklist() {
				fmt.Fprintf(cmd.OutOrStdout(), "[ ] %s\n", item)
			}
			return nil
		},
	}
}

func (c *cli) denialSummaryCmd() *cobra.Command {
	var filter service.DenialFilter
	cmd := &cobra.Command{
		Use:   "denial-summary <file.csv>",
		Short: "Summarize a denial-risk CSV by risk tier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			rows, err := service.ParseDenialRiskCSV(f)
			if err != nil {
				return err
			}
			summary := service.SummarizeDenialRisk(rows, filter)
			summary.Rows = nil
			return writeJSON(cmd.OutOrStdout(), summary)
		},
	}
	cmd.Flags().StringVar(&filter.CPTCode, "cpt-code", "", "only rows with this CPT code")
	cmd.Flags().StringVar(&filter.Payer, "payer", "", "only rows for this payer")
	return cmd
}
