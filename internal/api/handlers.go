package api

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ngs-reimbursement-mcp-server/internal/domain"
	"github.com/ngs-reimbursement-mcp-server/internal/report"
	"github.com/ngs-reimbursement-mcp-server/internal/service"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
	maxUploadBytes  = 10 << 20
)

// ClassifyRequest is the body of POST /classify.
type ClassifyRequest struct {
	Catalog   string `json:"catalog"`
	Panel     string `json:"panel" binding:"required"`
	GeneCount *int   `json:"gene_count"`
}

// SimulateRequest is the body of POST /simulate.
type SimulateRequest struct {
	Profile domain.LabProfile `json:"profile"`
	Trials  int               `json:"trials"`
	Seed    *uint64           `json:"seed"`
}

// CarveOutRequest is the body of POST /carve-out.
type CarveOutRequest struct {
	Backbone       domain.Backbone `json:"backbone" binding:"required"`
	MarginPerPanel float64         `json:"margin_per_panel"`
}

// RiskResponse is the body returned by POST /risk.
type RiskResponse struct {
	Risk                domain.RiskMetrics `json:"risk"`
	EstimatedDenialRate float64            `json:"estimated_denial_rate"`
	TotalLossRate       float64            `json:"total_loss_rate"`
}

// FinancialsResponse is the body returned by POST /financials.
type FinancialsResponse struct {
	Financials domain.FinancialMetrics `json:"financials"`
	BreakEven  domain.BreakEven        `json:"break_even"`
}

type catalogInfo struct {
	Name    string `json:"name"`
	Panels  int    `json:"panels"`
	Default bool   `json:"default"`
}

type cptCodeInfo struct {
	Code        domain.CPTCode `json:"code"`
	Description string         `json:"description"`
	BaseRate    float64        `json:"base_rate"`
}

type analysisSummary struct {
	ID              string  `json:"id"`
	Catalog         string  `json:"catalog"`
	Panel           string  `json:"panel"`
	CPTCode         string  `json:"cpt_code"`
	RiskLevel       string  `json:"risk_level"`
	OverallScore    float64 `json:"overall_score"`
	AnnualNetProfit float64 `json:"annual_net_profit"`
	CreatedAt       string  `json:"created_at"`
}

func (s *Server) handleListCatalogs(c *gin.Context) {
	set := s.analyzer.Classifier().Catalogs()
	out := make([]catalogInfo, 0, len(set.Names()))
	for _, name := range set.Names() {
		cat, err := set.Catalog(name)
		if err != nil {
			s.respondError(c, err)
			return
		}
		out = append(out, catalogInfo{Name: name, Panels: cat.Len(), Default: name == set.DefaultCatalog()})
	}
	s.respondJSON(c, gin.H{"catalogs": out})
}

// handleListPanels lists a catalog's panels with their classification.
func (s *Server) handleListPanels(c *gin.Context) {
	classifier := s.analyzer.Classifier()
	cat, err := classifier.Catalogs().Catalog(c.Param("catalog"))
	if err != nil {
		s.respondError(c, err)
		return
	}

	panels := make([]*domain.PanelClassification, 0, cat.Len())
	for _, entry := range cat.Entries() {
		pc, err := classifier.ClassifyPanel(cat.Name(), entry.Name)
		if err != nil {
			s.respondError(c, err)
			return
		}
		panels = append(panels, pc)
	}
	s.respondJSON(c, gin.H{"catalog": cat.Name(), "panels": panels})
}

func (s *Server) handleListCPTCodes(c *gin.Context) {
	rates := s.analyzer.Classifier().Catalogs().Rates()
	codes := make([]cptCodeInfo, 0, len(rates))
	for code, rate := range rates {
		codes = append(codes, cptCodeInfo{Code: code, Description: code.Description(), BaseRate: rate})
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i].Code < codes[j].Code })
	s.respondJSON(c, gin.H{"cpt_codes": codes})
}

func (s *Server) handleBillingChecklist(c *gin.Context) {
	s.respondJSON(c, gin.H{"items": service.BillingChecklist()})
}

func (s *Server) handleClassify(c *gin.Context) {
	var req ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, invalidFormat(err))
		return
	}

	result, err := s.analyzer.Classify(req.Catalog, req.Panel, req.GeneCount)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.respondJSON(c, result)
}

func (s *Server) handleRisk(c *gin.Context) {
	var profile domain.LabProfile
	if err := c.ShouldBindJSON(&profile); err != nil {
		s.respondError(c, invalidFormat(err))
		return
	}
	if err := profile.Validate(); err != nil {
		s.respondError(c, err)
		return
	}

	risk := s.analyzer.RiskModel().ComputeRiskScore(profile)
	s.respondJSON(c, RiskResponse{
		Risk:                risk,
		EstimatedDenialRate: service.EstimatedDenialRate(risk),
		TotalLossRate:       service.TotalLossRate(risk, profile),
	})
}

func (s *Server) handleFinancials(c *gin.Context) {
	var in domain.FinancialInputs
	if err := c.ShouldBindJSON(&in); err != nil {
		s.respondError(c, invalidFormat(err))
		return
	}
	if err := in.Validate(); err != nil {
		s.respondError(c, err)
		return
	}

	fin := service.ComputeFinancials(in)
	s.respondJSON(c, FinancialsResponse{Financials: fin, BreakEven: service.ComputeBreakEven(fin)})
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var req domain.AnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, invalidFormat(err))
		return
	}
	if req.Panel == "" {
		s.respondError(c, domain.NewValidationError("panel", "is required", req.Panel))
		return
	}
	if err := req.Profile.Validate(); err != nil {
		s.respondError(c, err)
		return
	}

	result, err := s.analyzer.Analyze(c.Request.Context(), &req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.respondJSON(c, result)
}

// handleSimulate returns the simulation as JSON, or as CSV with ?format=csv.
func (s *Server) handleSimulate(c *gin.Context) {
	var req SimulateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, invalidFormat(err))
		return
	}
	if err := req.Profile.Validate(); err != nil {
		s.respondError(c, err)
		return
	}
	if req.Trials < 0 {
		s.respondError(c, domain.NewValidationError("trials", "must not be negative", req.Trials))
		return
	}

	result, err := s.analyzer.Simulate(c.Request.Context(), req.Profile, req.Trials, req.Seed)
	if err != nil {
		s.respondError(c, err)
		return
	}

	format := c.Query("format")
	if format == "" {
		s.respondJSON(c, result)
		return
	}
	exporter, err := report.NewExporter(format)
	if err != nil {
		s.respondError(c, err)
		return
	}
	var buf bytes.Buffer
	if err := exporter.ExportSimulation(&buf, result); err != nil {
		s.respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=simulation-%d.%s", *result.Seed, exporter.FileExtension()))
	c.Data(http.StatusOK, exporter.ContentType(), buf.Bytes())
}

func (s *Server) handleCarveOut(c *gin.Context) {
	var req CarveOutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, invalidFormat(err))
		return
	}

	analysis, ok := service.CarveOutBreakEven(req.Backbone, req.MarginPerPanel)
	if !ok {
		s.respondError(c, domain.NewValidationError("backbone", "carve-out analysis applies to Exome and Genome backbones", req.Backbone))
		return
	}
	s.respondJSON(c, analysis)
}

// handleDenialSummary accepts a multipart "file" upload or a raw CSV body.
func (s *Server) handleDenialSummary(c *gin.Context) {
	var reader io.Reader
	if file, err := c.FormFile("file"); err == nil {
		f, err := file.Open()
		if err != nil {
			s.respondError(c, err)
			return
		}
		defer f.Close()
		reader = f
	} else {
		reader = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	}

	rows, err := service.ParseDenialRiskCSV(reader)
	if err != nil {
		s.respondError(c, err)
		return
	}

	summary := service.SummarizeDenialRisk(rows, service.DenialFilter{
		CPTCode: c.Query("cpt_code"),
		Payer:   c.Query("payer"),
	})
	if c.Query("include_rows") != "true" {
		summary.Rows = nil
	}
	s.respondJSON(c, summary)
}

func (s *Server) handleListAnalyses(c *gin.Context) {
	if !s.requireHistory(c) {
		return
	}
	limit, err := queryInt(c, "limit", defaultPageSize)
	if err != nil {
		s.respondError(c, err)
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		s.respondError(c, err)
		return
	}
	limit = min(max(limit, 1), maxPageSize)

	ctx := c.Request.Context()
	records, err := s.history.List(ctx, limit, offset)
	if err != nil {
		s.respondError(c, err)
		return
	}
	total, err := s.history.Count(ctx)
	if err != nil {
		s.respondError(c, err)
		return
	}

	out := make([]analysisSummary, 0, len(records))
	for _, r := range records {
		out = append(out, analysisSummary{
			ID:              r.ID,
			Catalog:         r.CatalogName,
			Panel:           r.PanelName,
			CPTCode:         r.CPTCode,
			RiskLevel:       r.RiskLevel,
			OverallScore:    r.OverallScore,
			AnnualNetProfit: r.AnnualNetProfit,
			CreatedAt:       r.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	s.respondJSON(c, gin.H{"analyses": out, "total": total, "limit": limit, "offset": offset})
}

func (s *Server) handleGetAnalysis(c *gin.Context) {
	result, ok := s.loadAnalysis(c)
	if !ok {
		return
	}
	s.respondJSON(c, result)
}

func (s *Server) handleExportAnalysis(c *gin.Context) {
	exporter, err := report.NewExporter(c.DefaultQuery("format", string(report.FormatCSV)))
	if err != nil {
		s.respondError(c, err)
		return
	}
	result, ok := s.loadAnalysis(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := exporter.ExportAnalysis(&buf, result); err != nil {
		s.respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=analysis-%s.%s", result.ID, exporter.FileExtension()))
	c.Data(http.StatusOK, exporter.ContentType(), buf.Bytes())
}

func (s *Server) handleDeleteAnalysis(c *gin.Context) {
	if !s.requireHistory(c) {
		return
	}
	if err := s.history.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) loadAnalysis(c *gin.Context) (*domain.AnalysisResult, bool) {
	if !s.requireHistory(c) {
		return nil, false
	}
	rec, err := s.history.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return nil, false
	}
	result, err := rec.DecodeResult()
	if err != nil {
		s.respondError(c, err)
		return nil, false
	}
	return result, true
}

func (s *Server) requireHistory(c *gin.Context) bool {
	if s.history != nil {
		return true
	}
	s.respondError(c, domain.NewEngineError(domain.ErrCodeUnavailable, "analysis history is not configured", "", ""))
	return false
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, domain.NewValidationError(key, "must be a non-negative integer", raw)
	}
	return n, nil
}
