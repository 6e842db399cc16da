package api

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ngs-reimbursement-mcp-server/internal/catalog"
	"github.com/ngs-reimbursement-mcp-server/internal/domain"
	"github.com/ngs-reimbursement-mcp-server/internal/health"
	"github.com/ngs-reimbursement-mcp-server/internal/history"
	"github.com/ngs-reimbursement-mcp-server/internal/service"
)

const hematologic65 = "Hematologic – DNA Panel (65 genes)"

func testConfig() *domain.Config {
	return &domain.Config{
		Server: domain.ServerConfig{
			Host:           "127.0.0.1",
			Port:           0,
			RequestTimeout: 5 * time.Second,
			Mode:           "test",
		},
	}
}

func testLogger() *logrus.Logger {
	logger, _ := test.NewNullLogger()
	return logger
}

func newTestServer(t *testing.T, withHistory bool) (*Server, history.Store) {
	t.Helper()
	logger := testLogger()

	var store history.Store
	opts := service.AnalysisOptions{MaxTrials: 5000}
	if withHistory {
		sqlite, err := history.NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"))
		require.NoError(t, err)
		t.Cleanup(func() { sqlite.Close() })
		store = sqlite
		opts.History = sqlite
	}

	analyzer := service.NewAnalysisService(catalog.Default(), logger, opts)
	server := NewServer(testConfig(), Dependencies{
		Analyzer: analyzer,
		History:  store,
		Logger:   logger,
	})
	return server, store
}

func profileJSON() string {
	return `{
		"backbone": "Panel",
		"positioning": "FirstLine",
		"region": "National",
		"reporting_strategy": "FullReport",
		"specialty": "Oncology",
		"annual_volume": 1000,
		"cost_per_sample": 728,
		"reimbursement": 1000,
		"prior_auth_rate": 0.5,
		"bad_debt_rate": 0.02
	}`
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) *domain.EngineError {
	t.Helper()
	var body domain.EngineError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return &body
}

func TestHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		s, _ := newTestServer(t, false)
		w := do(t, s, http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"healthy"`)
	})

	t.Run("unhealthy dependency", func(t *testing.T) {
		logger := testLogger()
		checker := health.NewChecker(Version, time.Second, logger)
		checker.Register(health.CheckFunc{CheckName: "database", Fn: func(ctx context.Context) error {
			return errors.New("connection refused")
		}})
		s := NewServer(testConfig(), Dependencies{
			Analyzer: service.NewAnalysisService(catalog.Default(), logger, service.AnalysisOptions{}),
			Health:   checker,
			Logger:   logger,
		})

		w := do(t, s, http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), "connection refused")
	})
}

func TestSecurityHeadersApplied(t *testing.T) {
	s, _ := newTestServer(t, false)
	w := do(t, s, http.MethodGet, "/api/v1/cpt-codes", "")
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, w.Header().Get("X-Correlation-ID"))
}

func TestListCatalogs(t *testing.T) {
	s, _ := newTestServer(t, false)
	w := do(t, s, http.MethodGet, "/api/v1/catalogs", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Catalogs []catalogInfo `json:"catalogs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Catalogs, 2)

	byName := map[string]catalogInfo{}
	for _, c := range body.Catalogs {
		byName[c.Name] = c
	}
	assert.Equal(t, 10, byName[catalog.SophiaCatalog].Panels)
	assert.Equal(t, 8, byName[catalog.GeneralCatalog].Panels)
	assert.True(t, byName[catalog.SophiaCatalog].Default)
}

func TestListPanels(t *testing.T) {
	s, _ := newTestServer(t, false)

	w := do(t, s, http.MethodGet, "/api/v1/catalogs/sophia/panels", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Panels []domain.PanelClassification `json:"panels"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Panels, 10)
	for _, p := range body.Panels {
		assert.NotEmpty(t, p.CPTCode, p.Panel)
		assert.True(t, p.RiskLevel.IsValid(), p.Panel)
	}

	w = do(t, s, http.MethodGet, "/api/v1/catalogs/missing/panels", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, domain.ErrCodeUnknownPanel, decodeError(t, w).Code)
}

func TestListCPTCodes(t *testing.T) {
	s, _ := newTestServer(t, false)
	w := do(t, s, http.MethodGet, "/api/v1/cpt-codes", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		CPTCodes []cptCodeInfo `json:"cpt_codes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.CPTCodes, 4)
	assert.Equal(t, domain.CPT0326U, body.CPTCodes[0].Code)
	assert.Equal(t, 2800.0, body.CPTCodes[0].BaseRate)
	assert.Equal(t, domain.CPT81455, body.CPTCodes[3].Code)
	assert.Equal(t, 1200.0, body.CPTCodes[3].BaseRate)
}

func TestBillingChecklist(t *testing.T) {
	s, _ := newTestServer(t, false)
	w := do(t, s, http.MethodGet, "/api/v1/billing-checklist", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Items []string `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, service.BillingChecklist(), body.Items)
}

func TestClassify(t *testing.T) {
	s, _ := newTestServer(t, false)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"known panel", `{"catalog":"sophia","panel":"` + hematologic65 + `"}`, http.StatusOK, ""},
		{"unknown panel", `{"catalog":"sophia","panel":"Nope"}`, http.StatusNotFound, domain.ErrCodeUnknownPanel},
		{"missing panel", `{"catalog":"sophia"}`, http.StatusBadRequest, domain.ErrCodeInvalidFormat},
		{"malformed json", `{"panel":`, http.StatusBadRequest, domain.ErrCodeInvalidFormat},
		{"invalid gene count", `{"panel":"` + hematologic65 + `","gene_count":0}`, http.StatusBadRequest, domain.ErrCodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, http.MethodPost, "/api/v1/classify", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, decodeError(t, w).Code)
			}
		})
	}

	w := do(t, s, http.MethodPost, "/api/v1/classify", `{"panel":"`+hematologic65+`"}`)
	var pc domain.PanelClassification
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pc))
	assert.Equal(t, domain.CPT81455, pc.CPTCode)
	assert.Equal(t, domain.RiskMedium, pc.RiskLevel)
	assert.Equal(t, 1200.0, pc.BaseRate)
}

func TestRisk(t *testing.T) {
	s, _ := newTestServer(t, false)

	w := do(t, s, http.MethodPost, "/api/v1/risk", profileJSON())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body RiskResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.InDelta(t, 0.704, body.Risk.OverallScore, 1e-9)
	assert.InDelta(t, 0.4224, body.Risk.DenialRisk, 1e-9)
	assert.InDelta(t, 0.1056, body.EstimatedDenialRate, 1e-9)
	assert.InDelta(t, 0.10448, body.TotalLossRate, 1e-9)

	w = do(t, s, http.MethodPost, "/api/v1/risk", `{"annual_volume":0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, domain.ErrCodeInvalidInput, decodeError(t, w).Code)
}

func TestFinancials(t *testing.T) {
	s, _ := newTestServer(t, false)

	w := do(t, s, http.MethodPost, "/api/v1/financials",
		`{"cost_per_sample":728,"reimbursement":1000,"volume":1000,"total_loss_rate":0.15}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body FinancialsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	want := service.ComputeFinancials(domain.FinancialInputs{CostPerSample: 728, Reimbursement: 1000, Volume: 1000, TotalLossRate: 0.15})
	assert.InDelta(t, want.AnnualNetProfit, body.Financials.AnnualNetProfit, 1e-6)
	assert.InDelta(t, 16.758, body.Financials.ROI, 1e-3)
	assert.True(t, body.BreakEven.Profitable)

	w = do(t, s, http.MethodPost, "/api/v1/financials", `{"cost_per_sample":-1,"reimbursement":1000,"volume":10}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodPost, "/api/v1/financials",
		`{"cost_per_sample":1e308,"reimbursement":1e308,"volume":1000,"total_loss_rate":0.1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, domain.ErrCodeInvalidInput, decodeError(t, w).Code)
}

func TestRespondJSON_UnencodableValue(t *testing.T) {
	s, _ := newTestServer(t, false)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	s.respondJSON(c, map[string]float64{"roi": math.Inf(1)})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, domain.ErrCodeInternal, decodeError(t, w).Code)
}

func TestAnalyzeAndHistory(t *testing.T) {
	s, _ := newTestServer(t, true)

	body := `{"catalog":"sophia","panel":"` + hematologic65 + `","use_cpt_rate":true,"profile":` + profileJSON() + `}`
	w := do(t, s, http.MethodPost, "/api/v1/analyze", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result domain.AnalysisResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	require.NotEmpty(t, result.ID)
	assert.Equal(t, 1200.0, result.Profile.Reimbursement)
	assert.Equal(t, domain.CPT81455, result.Classification.CPTCode)

	w = do(t, s, http.MethodGet, "/api/v1/analyses", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Analyses []analysisSummary `json:"analyses"`
		Total    int64             `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, int64(1), list.Total)
	require.Len(t, list.Analyses, 1)
	assert.Equal(t, result.ID, list.Analyses[0].ID)
	assert.Equal(t, "81455", list.Analyses[0].CPTCode)

	w = do(t, s, http.MethodGet, "/api/v1/analyses/"+result.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	var stored domain.AnalysisResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stored))
	assert.Equal(t, result.Analysis.Financials, stored.Analysis.Financials)

	w = do(t, s, http.MethodGet, "/api/v1/analyses/"+result.ID+"/export?format=csv", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "analysis-"+result.ID+".csv")
	assert.True(t, strings.HasPrefix(w.Body.String(), "section,field,value"))

	w = do(t, s, http.MethodGet, "/api/v1/analyses/"+result.ID+"/export?format=xml", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodDelete, "/api/v1/analyses/"+result.ID, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, s, http.MethodGet, "/api/v1/analyses/"+result.ID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, domain.ErrCodeNotFound, decodeError(t, w).Code)
}

func TestAnalyzeRejectsBadRequests(t *testing.T) {
	s, _ := newTestServer(t, false)

	w := do(t, s, http.MethodPost, "/api/v1/analyze", `{"profile":`+profileJSON()+`}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodPost, "/api/v1/analyze", `{"panel":"Unknown","profile":`+profileJSON()+`}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, domain.ErrCodeUnknownPanel, decodeError(t, w).Code)
}

func TestHistoryUnavailable(t *testing.T) {
	s, _ := newTestServer(t, false)
	w := do(t, s, http.MethodGet, "/api/v1/analyses", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, domain.ErrCodeUnavailable, decodeError(t, w).Code)
}

func TestListAnalysesRejectsBadPaging(t *testing.T) {
	s, _ := newTestServer(t, true)
	w := do(t, s, http.MethodGet, "/api/v1/analyses?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSimulate(t *testing.T) {
	s, _ := newTestServer(t, false)
	body := `{"profile":` + profileJSON() + `,"trials":200,"seed":42}`

	w := do(t, s, http.MethodPost, "/api/v1/simulate", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var first domain.SimulationResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))
	assert.Equal(t, 200, first.Summary.Trials)
	assert.Len(t, first.Samples, 200)
	require.NotNil(t, first.Seed)
	assert.Equal(t, uint64(42), *first.Seed)

	w = do(t, s, http.MethodPost, "/api/v1/simulate", body)
	var second domain.SimulationResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))
	assert.Equal(t, first.Samples, second.Samples)

	w = do(t, s, http.MethodPost, "/api/v1/simulate?format=csv", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "simulation-42.csv")

	w = do(t, s, http.MethodPost, "/api/v1/simulate", `{"profile":`+profileJSON()+`,"trials":999999}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, domain.ErrCodeInvalidInput, decodeError(t, w).Code)
}

func TestCarveOut(t *testing.T) {
	s, _ := newTestServer(t, false)

	w := do(t, s, http.MethodPost, "/api/v1/carve-out", `{"backbone":"Exome","margin_per_panel":0}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var analysis domain.CarveOutAnalysis
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &analysis))
	assert.True(t, analysis.MarginFallback)
	assert.Equal(t, 100.0, analysis.MarginPerPanel)
	assert.InDelta(t, analysis.BackboneCost/100, analysis.RequiredPanels, 1e-9)

	w = do(t, s, http.MethodPost, "/api/v1/carve-out", `{"backbone":"Panel","margin_per_panel":50}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDenialSummary(t *testing.T) {
	s, _ := newTestServer(t, false)
	csv := "test_name,cpt_code,denial_risk,estimated_reimbursement,payer\n" +
		"Heme,81455,High,1200,Medicare\n" +
		"Hereditary,81445,Low,600,Aetna\n" +
		"Solid,81455,High,1000,Aetna\n"

	req := httptest.NewRequest(http.MethodPost, "/api/v1/denial-summary?cpt_code=81455", strings.NewReader(csv))
	req.Header.Set("Content-Type", "text/csv")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var summary domain.DenialRiskSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, 2, summary.TotalRows)
	require.Len(t, summary.Buckets, 1)
	assert.Equal(t, domain.RiskHigh, summary.Buckets[0].RiskLevel)
	assert.InDelta(t, 1100.0, summary.Buckets[0].AverageEstimatedReimbursement, 1e-9)
	assert.Empty(t, summary.Rows)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/denial-summary",
		strings.NewReader("test_name,cpt_code,denial_risk,estimated_reimbursement\nA,81450,Low,NaN\n"))
	req.Header.Set("Content-Type", "text/csv")
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, domain.ErrCodeInvalidInput, decodeError(t, w).Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/denial-summary", strings.NewReader("name,value\n"))
	req.Header.Set("Content-Type", "text/csv")
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusForCode(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusForCode(domain.ErrCodeUnknownPanel))
	assert.Equal(t, http.StatusNotFound, statusForCode(domain.ErrCodeNotFound))
	assert.Equal(t, http.StatusBadRequest, statusForCode(domain.ErrCodeInvalidInput))
	assert.Equal(t, http.StatusTooManyRequests, statusForCode(domain.ErrCodeRateLimit))
	assert.Equal(t, http.StatusServiceUnavailable, statusForCode(domain.ErrCodeUnavailable))
	assert.Equal(t, http.StatusInternalServerError, statusForCode(domain.ErrCodeInternal))
}
