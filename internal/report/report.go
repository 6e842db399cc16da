// Package report renders analysis and simulation results for download.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ngs-reimbursement-mcp-server/internal/domain"
)

// Format specifies the format for exporting results
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// Exporter writes results in one output format
type Exporter interface {
	ContentType() string
	FileExtension() string
	ExportAnalysis(w io.Writer, result *domain.AnalysisResult) error
	ExportSimulation(w io.Writer, result *domain.SimulationResult) error
}

// NewExporter returns the exporter for a format name. An empty name selects JSON.
func NewExporter(format string) (Exporter, error) {
	switch Format(strings.ToLower(strings.TrimSpace(format))) {
	case "", FormatJSON:
		return JSONExporter{Indent: true}, nil
	case FormatCSV:
		return CSVExporter{}, nil
	default:
		return nil, domain.NewValidationError("format", "unsupported export format", format)
	}
}

// JSONExporter writes results as JSON documents.
type JSONExporter struct {
	Indent bool
}

func (JSONExporter) ContentType() string   { return "application/json" }
func (JSONExporter) FileExtension() string { return "json" }

func (e JSONExporter) ExportAnalysis(w io.Writer, result *domain.AnalysisResult) error {
	return e.encode(w, result)
}

func (e JSONExporter) ExportSimulation(w io.Writer, result *domain.SimulationResult) error {
	return e.encode(w, result)
}

func (e JSONExporter) encode(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	if e.Indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON report: %w", err)
	}
	return nil
}

// CSVExporter writes results as field/value rows. Currency amounts are fixed to
// two decimal places; rates and scores keep four.
type CSVExporter struct{}

func (CSVExporter) ContentType() string   { return "text/csv" }
func (CSVExporter) FileExtension() string { return "csv" }

// ExportAnalysis writes one "section,field,value" row per reported figure.
func (CSVExporter) ExportAnalysis(w io.Writer, result *domain.AnalysisResult) error {
	c := result.Classification
	p := result.Profile
	risk := result.Analysis.Risk
	fin := result.Analysis.Financials

	rows := [][]string{
		{"section", "field", "value"},
		{"analysis", "id", result.ID},
		{"analysis", "created_at", result.CreatedAt.Format("2006-01-02T15:04:05Z07:00")},
		{"classification", "catalog", c.Catalog},
		{"classification", "panel", c.Panel},
		{"classification", "category", c.Category.DisplayName()},
		{"classification", "gene_count", strconv.Itoa(c.GeneCount)},
		{"classification", "cpt_code", string(c.CPTCode)},
		{"classification", "base_rate", money(c.BaseRate)},
		{"classification", "risk_level", c.RiskLevel.DisplayName()},
		{"profile", "backbone", string(p.Backbone)},
		{"profile", "positioning", string(p.Positioning)},
		{"profile", "region", string(p.Region)},
		{"profile", "reporting_strategy", string(p.ReportingStrategy)},
		{"profile", "specialty", string(p.Specialty)},
		{"profile", "annual_volume", strconv.Itoa(p.AnnualVolume)},
		{"profile", "cost_per_sample", money(p.CostPerSample)},
		{"profile", "reimbursement", money(p.Reimbursement)},
		{"risk", "overall_score", ratio(risk.OverallScore)},
		{"risk", "prior_authorization_risk", ratio(risk.PriorAuthorizationRisk)},
		{"risk", "denial_risk", ratio(risk.DenialRisk)},
		{"risk", "appeal_success_rate", ratio(risk.AppealSuccessRate)},
		{"risk", "time_to_payment_risk", ratio(risk.TimeToPaymentRisk)},
		{"risk", "total_loss_rate", ratio(result.Analysis.TotalLossRate)},
		{"financials", "gross_profit", money(fin.GrossProfit)},
		{"financials", "effective_reimbursement", money(fin.EffectiveReimbursement)},
		{"financials", "net_profit", money(fin.NetProfit)},
		{"financials", "annual_gross_revenue", money(fin.AnnualGrossRevenue)},
		{"financials", "annual_net_revenue", money(fin.AnnualNetRevenue)},
		{"financials", "annual_costs", money(fin.AnnualCosts)},
		{"financials", "annual_net_profit", money(fin.AnnualNetProfit)},
		{"financials", "roi_percent", money(fin.ROI)},
		{"financials", "margin_percent", money(fin.Margin)},
		{"financials", "denial_impact", money(fin.DenialImpact)},
		{"break_even", "profitable", strconv.FormatBool(result.Analysis.BreakEven.Profitable)},
	}
	if result.Analysis.BreakEven.Profitable {
		rows = append(rows, []string{"break_even", "volume", money(result.Analysis.BreakEven.Volume)})
	}
	if co := result.CarveOut; co != nil {
		rows = append(rows,
			[]string{"carve_out", "backbone_cost", money(co.BackboneCost)},
			[]string{"carve_out", "margin_per_panel", money(co.MarginPerPanel)},
			[]string{"carve_out", "margin_fallback", strconv.FormatBool(co.MarginFallback)},
			[]string{"carve_out", "required_panels", money(co.RequiredPanels)},
		)
	}
	rows = append(rows, []string{"strategy", "level", result.Strategy.Level})
	for _, msg := range result.Strategy.Messages {
		rows = append(rows, []string{"strategy", "message", msg})
	}
	if sim := result.Simulation; sim != nil {
		rows = append(rows, summaryRows(sim)...)
	}
	return writeAll(w, rows)
}

// ExportSimulation writes the summary rows followed by one row per trial.
func (CSVExporter) ExportSimulation(w io.Writer, result *domain.SimulationResult) error {
	rows := [][]string{{"section", "field", "value"}}
	rows = append(rows, summaryRows(result)...)
	for i, s := range result.Samples {
		rows = append(rows, []string{"sample", strconv.Itoa(i + 1), money(s)})
	}
	return writeAll(w, rows)
}

func summaryRows(sim *domain.SimulationResult) [][]string {
	s := sim.Summary
	rows := [][]string{}
	if sim.Seed != nil {
		rows = append(rows, []string{"simulation", "seed", strconv.FormatUint(*sim.Seed, 10)})
	}
	return append(rows,
		[]string{"simulation", "trials", strconv.Itoa(s.Trials)},
		[]string{"simulation", "point_estimate", money(sim.PointEstimate)},
		[]string{"simulation", "mean", money(s.Mean)},
		[]string{"simulation", "std_dev", money(s.StdDev)},
		[]string{"simulation", "p5", money(s.P5)},
		[]string{"simulation", "median", money(s.Median)},
		[]string{"simulation", "p95", money(s.P95)},
		[]string{"simulation", "probability_of_loss", ratio(s.ProbabilityOfLoss)},
	)
}

func writeAll(w io.Writer, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write CSV report: %w", err)
	}
	return nil
}

func money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func ratio(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(4)
}
