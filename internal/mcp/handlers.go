package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ngs-reimbursement-mcp-server/internal/domain"
	"github.com/ngs-reimbursement-mcp-server/internal/report"
	"github.com/ngs-reimbursement-mcp-server/internal/service"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

// ListPanelsParams defines parameters for the list_panels tool
type ListPanelsParams struct {
	Catalog string `json:"catalog,omitempty" jsonschema:"catalog name; the default catalog when empty"`
}

// ListPanelsResult is the result of list_panels
type ListPanelsResult struct {
	Catalog  string                        `json:"catalog"`
	Catalogs []string                      `json:"catalogs"`
	Panels   []*domain.PanelClassification `json:"panels"`
}

// ClassifyPanelParams defines parameters for the classify_panel tool
type ClassifyPanelParams struct {
	Catalog   string `json:"catalog,omitempty" jsonschema:"catalog name; the default catalog when empty"`
	Panel     string `json:"panel" jsonschema:"exact panel name as listed by list_panels"`
	GeneCount *int   `json:"gene_count,omitempty" jsonschema:"optional gene count overriding the catalog value"`
}

// ProfileParams wraps a lab profile for the assess_risk tool
type ProfileParams struct {
	Profile domain.LabProfile `json:"profile" jsonschema:"lab configuration and economics"`
}

// AssessRiskResult is the result of assess_risk
type AssessRiskResult struct {
	Risk                domain.RiskMetrics `json:"risk"`
	EstimatedDenialRate float64            `json:"estimated_denial_rate"`
	TotalLossRate       float64            `json:"total_loss_rate"`
}

// ProjectFinancialsResult is the result of project_financials
type ProjectFinancialsResult struct {
	Financials domain.FinancialMetrics `json:"financials"`
	BreakEven  domain.BreakEven        `json:"break_even"`
}

// SimulateProfitParams defines parameters for the simulate_profit tool
type SimulateProfitParams struct {
	Profile        domain.LabProfile `json:"profile" jsonschema:"lab configuration and economics"`
	Trials         int               `json:"trials,omitempty" jsonschema:"number of trials; the configured default when zero"`
	Seed           *uint64           `json:"seed,omitempty" jsonschema:"seed for a reproducible run"`
	IncludeSamples bool              `json:"include_samples,omitempty" jsonschema:"return every sampled annual net profit"`
}

// CarveOutParams defines parameters for the carve_out_break_even tool
type CarveOutParams struct {
	Backbone       domain.Backbone `json:"backbone" jsonschema:"Exome or Genome"`
	MarginPerPanel float64         `json:"margin_per_panel" jsonschema:"margin earned per carved-out panel; 100 is used when not positive"`
}

// EmptyParams is the input of tools without parameters.
type EmptyParams struct{}

// DenialSummaryParams defines parameters for the summarize_denial_risk tool
type DenialSummaryParams struct {
	CSV      string `json:"csv,omitempty" jsonschema:"CSV content with test_name, cpt_code, denial_risk and estimated_reimbursement columns"`
	FilePath string `json:"file_path,omitempty" jsonschema:"path to a CSV file, used when csv is empty"`
	CPTCode  string `json:"cpt_code,omitempty" jsonschema:"only rows with this CPT code"`
	Payer    string `json:"payer,omitempty" jsonschema:"only rows for this payer"`
}

// ListAnalysesParams defines parameters for the list_analyses tool
type ListAnalysesParams struct {
	Limit  int `json:"limit,omitempty" jsonschema:"maximum number of analyses, default 20"`
	Offset int `json:"offset,omitempty" jsonschema:"number of analyses to skip"`
}

// AnalysisSummary is one list_analyses entry
type AnalysisSummary struct {
	ID              string    `json:"id"`
	Catalog         string    `json:"catalog"`
	Panel           string    `json:"panel"`
	CPTCode         string    `json:"cpt_code"`
	RiskLevel       string    `json:"risk_level"`
	OverallScore    float64   `json:"overall_score"`
	AnnualNetProfit float64   `json:"annual_net_profit"`
	CreatedAt       time.Time `json:"created_at"`
}

// ListAnalysesResult is the result of list_analyses
type ListAnalysesResult struct {
	Analyses []AnalysisSummary `json:"analyses"`
	Total    int64             `json:"total"`
}

// GetAnalysisParams defines parameters for the get_analysis tool
type GetAnalysisParams struct {
	ID     string `json:"id" jsonschema:"analysis ID"`
	Format string `json:"format,omitempty" jsonschema:"json (default) or csv"`
}

// ExportAnalysesResult is the result of export_analyses
type ExportAnalysesResult struct {
	FilePath string `json:"file_path"`
	Count    int64  `json:"count"`
	Message  string `json:"message"`
}

// ImportAnalysesParams defines parameters for the import_analyses tool
type ImportAnalysesParams struct {
	FilePath string `json:"file_path" jsonschema:"path to a file written by export_analyses"`
}

// ImportAnalysesResult is the result of import_analyses
type ImportAnalysesResult struct {
	Imported int    `json:"imported"`
	Skipped  int    `json:"skipped"`
	Message  string `json:"message"`
}

func (s *Server) handleListPanels(ctx context.Context, params ListPanelsParams) (any, error) {
	classifier := s.analyzer.Classifier()
	cat, err := classifier.Catalogs().Catalog(params.Catalog)
	if err != nil {
		return nil, err
	}

	result := ListPanelsResult{
		Catalog:  cat.Name(),
		Catalogs: classifier.Catalogs().Names(),
		Panels:   make([]*domain.PanelClassification, 0, cat.Len()),
	}
	for _, entry := range cat.Entries() {
		pc, err := classifier.ClassifyPanel(cat.Name(), entry.Name)
		if err != nil {
			return nil, err
		}
		result.Panels = append(result.Panels, pc)
	}
	return result, nil
}

func (s *Server) handleClassifyPanel(ctx context.Context, params ClassifyPanelParams) (any, error) {
	if strings.TrimSpace(params.Panel) == "" {
		return nil, domain.NewValidationError("panel", "is required", params.Panel)
	}
	return s.analyzer.Classify(params.Catalog, params.Panel, params.GeneCount)
}

func (s *Server) handleAssessRisk(ctx context.Context, params ProfileParams) (any, error) {
	if err := params.Profile.Validate(); err != nil {
		return nil, err
	}
	risk := s.analyzer.RiskModel().ComputeRiskScore(params.Profile)
	return AssessRiskResult{
		Risk:                risk,
		EstimatedDenialRate: service.EstimatedDenialRate(risk),
		TotalLossRate:       service.TotalLossRate(risk, params.Profile),
	}, nil
}

func (s *Server) handleProjectFinancials(ctx context.Context, params domain.FinancialInputs) (any, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	fin := service.ComputeFinancials(params)
	return ProjectFinancialsResult{Financials: fin, BreakEven: service.ComputeBreakEven(fin)}, nil
}

func (s *Server) handleAnalyzePanel(ctx context.Context, params domain.AnalysisRequest) (any, error) {
	if strings.TrimSpace(params.Panel) == "" {
		return nil, domain.NewValidationError("panel", "is required", params.Panel)
	}
	if err := params.Profile.Validate(); err != nil {
		return nil, err
	}
	return s.analyzer.Analyze(ctx, &params)
}

// handleSimulateProfit drops the raw samples unless asked for; a default run
// would otherwise return a thousand numbers to the model.
func (s *Server) handleSimulateProfit(ctx context.Context, params SimulateProfitParams) (any, error) {
	if err := params.Profile.Validate(); err != nil {
		return nil, err
	}
	if params.Trials < 0 {
		return nil, domain.NewValidationError("trials", "must not be negative", params.Trials)
	}
	result, err := s.analyzer.Simulate(ctx, params.Profile, params.Trials, params.Seed)
	if err != nil {
		return nil, err
	}
	if !params.IncludeSamples {
		result.Samples = nil
	}
	return result, nil
}

func (s *Server) handleCarveOut(ctx context.Context, params CarveOutParams) (any, error) {
	analysis, ok := service.CarveOutBreakEven(params.Backbone, params.MarginPerPanel)
	if !ok {
		return nil, domain.NewValidationError("backbone", "carve-out analysis applies to Exome and Genome backbones", params.Backbone)
	}
	return analysis, nil
}

func (s *Server) handleBillingChecklist(ctx context.Context, _ EmptyParams) (any, error) {
	return map[string][]string{"items": service.BillingChecklist()}, nil
}

func (s *Server) handleDenialSummary(ctx context.Context, params DenialSummaryParams) (any, error) {
	var rows []domain.DenialRiskRow
	var err error
	switch {
	case params.CSV != "":
		rows, err = service.ParseDenialRiskCSV(strings.NewReader(params.CSV))
	case params.FilePath != "":
		f, openErr := os.Open(params.FilePath)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open %s: %w", params.FilePath, openErr)
		}
		defer f.Close()
		rows, err = service.ParseDenialRiskCSV(f)
	default:
		return nil, domain.NewValidationError("csv", "csv or file_path is required", nil)
	}
	if err != nil {
		return nil, err
	}

	summary := service.SummarizeDenialRisk(rows, service.DenialFilter{CPTCode: params.CPTCode, Payer: params.Payer})
	summary.Rows = nil
	return summary, nil
}

func (s *Server) handleListAnalyses(ctx context.Context, params ListAnalysesParams) (any, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	limit = min(limit, maxListLimit)

	records, err := s.history.List(ctx, limit, max(params.Offset, 0))
	if err != nil {
		return nil, err
	}
	total, err := s.history.Count(ctx)
	if err != nil {
		return nil, err
	}

	result := ListAnalysesResult{Analyses: make([]AnalysisSummary, 0, len(records)), Total: total}
	for _, r := range records {
		result.Analyses = append(result.Analyses, AnalysisSummary{
			ID:              r.ID,
			Catalog:         r.CatalogName,
			Panel:           r.PanelName,
			CPTCode:         r.CPTCode,
			RiskLevel:       r.RiskLevel,
			OverallScore:    r.OverallScore,
			AnnualNetProfit: r.AnnualNetProfit,
			CreatedAt:       r.CreatedAt,
		})
	}
	return result, nil
}

func (s *Server) handleGetAnalysis(ctx context.Context, params GetAnalysisParams) (any, error) {
	if params.ID == "" {
		return nil, domain.NewValidationError("id", "is required", params.ID)
	}
	rec, err := s.history.Get(ctx, params.ID)
	if err != nil {
		return nil, err
	}
	result, err := rec.DecodeResult()
	if err != nil {
		return nil, err
	}
	if params.Format == "" || params.Format == string(report.FormatJSON) {
		return result, nil
	}

	exporter, err := report.NewExporter(params.Format)
	if err != nil {
		return nil, err
	}
	var sb strings.Builder
	if err := exporter.ExportAnalysis(&sb, result); err != nil {
		return nil, err
	}
	return sb.String(), nil
}

func (s *Server) handleExportAnalyses(ctx context.Context, _ EmptyParams) (any, error) {
	if s.exportDir == "" {
		return nil, domain.NewEngineError(domain.ErrCodeUnavailable, "no export directory configured", "", "")
	}
	if err := os.MkdirAll(s.exportDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}

	filename := fmt.Sprintf("analyses_export_%s.json", time.Now().Format("20060102_150405"))
	filePath := filepath.Join(s.exportDir, filename)
	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create export file: %w", err)
	}
	defer file.Close()

	if err := s.history.ExportJSON(ctx, file); err != nil {
		return nil, err
	}
	count, err := s.history.Count(ctx)
	if err != nil {
		return nil, err
	}
	return ExportAnalysesResult{
		FilePath: filePath,
		Count:    count,
		Message:  fmt.Sprintf("Exported %d analyses to %s", count, filePath),
	}, nil
}

func (s *Server) handleImportAnalyses(ctx context.Context, params ImportAnalysesParams) (any, error) {
	if params.FilePath == "" {
		return nil, domain.NewValidationError("file_path", "is required", params.FilePath)
	}
	file, err := os.Open(params.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open import file: %w", err)
	}
	defer file.Close()

	imported, skipped, err := s.history.ImportJSON(ctx, file)
	if err != nil {
		return nil, err
	}
	return ImportAnalysesResult{
		Imported: imported,
		Skipped:  skipped,
		Message:  fmt.Sprintf("Imported %d analyses, skipped %d existing", imported, skipped),
	}, nil
}
