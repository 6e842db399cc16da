// Package api exposes the reimbursement engine over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ngs-reimbursement-mcp-server/internal/domain"
	"github.com/ngs-reimbursement-mcp-server/internal/health"
	"github.com/ngs-reimbursement-mcp-server/internal/history"
	"github.com/ngs-reimbursement-mcp-server/internal/middleware"
	"github.com/ngs-reimbursement-mcp-server/internal/service"
)

// Version is reported by the health endpoint.
const Version = "v0.1.0"

// Dependencies are the collaborators the HTTP layer serves. History and Health
// are optional.
type Dependencies struct {
	Analyzer *service.AnalysisService
	History  history.Store
	Health   *health.Checker
	Logger   *logrus.Logger
}

// Server represents the HTTP server
type Server struct {
	config   *domain.Config
	analyzer *service.AnalysisService
	history  history.Store
	health   *health.Checker
	logger   *logrus.Logger
	router   *gin.Engine
	server   *http.Server
}

// NewServer creates a new HTTP server instance
func NewServer(cfg *domain.Config, deps Dependencies) *Server {
	switch cfg.Server.Mode {
	case gin.DebugMode, gin.TestMode:
		gin.SetMode(cfg.Server.Mode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	checker := deps.Health
	if checker == nil {
		checker = health.NewChecker(Version, 0, deps.Logger)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.AuditLogger(deps.Logger))
	router.Use(middleware.RateLimit(cfg.RateLimit))
	router.Use(middleware.RequestTimeout(cfg.Server.RequestTimeout))

	server := &Server{
		config:   cfg,
		analyzer: deps.Analyzer,
		history:  deps.History,
		health:   checker,
		logger:   deps.Logger,
		router:   router,
	}

	server.setupRoutes()

	return server
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.config.Server
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/catalogs", s.handleListCatalogs)
		v1.GET("/catalogs/:catalog/panels", s.handleListPanels)
		v1.GET("/cpt-codes", s.handleListCPTCodes)
		v1.GET("/billing-checklist", s.handleBillingChecklist)

		v1.POST("/classify", s.handleClassify)
		v1.POST("/risk", s.handleRisk)
		v1.POST("/financials", s.handleFinancials)
		v1.POST("/analyze", s.handleAnalyze)
		v1.POST("/simulate", s.handleSimulate)
		v1.POST("/carve-out", s.handleCarveOut)
		v1.POST("/denial-summary", s.handleDenialSummary)

		v1.GET("/analyses", s.handleListAnalyses)
		v1.GET("/analyses/:id", s.handleGetAnalysis)
		v1.GET("/analyses/:id/export", s.handleExportAnalysis)
		v1.DELETE("/analyses/:id", s.handleDeleteAnalysis)
	}
}

// handleHealth reports the state of the registered dependency checks.
func (s *Server) handleHealth(c *gin.Context) {
	status := s.health.Run(c.Request.Context())
	code := http.StatusOK
	if status.Overall != health.HealthStateHealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}

// respondError writes the standard error body with the status its code maps to.
func (s *Server) respondError(c *gin.Context, err error) {
	code := domain.ErrorCode(err)
	status := statusForCode(code)

	entry := s.logger.WithError(err).WithFields(logrus.Fields{
		"correlation_id": c.GetString(middleware.CorrelationIDKey),
		"code":           code,
	})
	message := err.Error()
	if status >= http.StatusInternalServerError {
		entry.Error("Request failed")
		message = "internal error"
	} else {
		entry.Debug("Request rejected")
	}

	var engineErr *domain.EngineError
	if errors.As(err, &engineErr) {
		message = engineErr.Message
	}
	c.AbortWithStatusJSON(status, domain.NewEngineError(code, message, "", c.GetString(middleware.CorrelationIDKey)))
}

// respondJSON encodes v before writing so a value JSON cannot represent, such as
// NaN or Inf, turns into an error response rather than an empty 200.
func (s *Server) respondJSON(c *gin.Context, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.respondError(c, fmt.Errorf("failed to encode response: %w", err))
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

func statusForCode(code string) int {
	switch code {
	case domain.ErrCodeUnknownPanel, domain.ErrCodeNotFound:
		return http.StatusNotFound
	case domain.ErrCodeInvalidInput, domain.ErrCodeInvalidFormat:
		return http.StatusBadRequest
	case domain.ErrCodeRateLimit:
		return http.StatusTooManyRequests
	case domain.ErrCodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func invalidFormat(err error) error {
	return domain.NewEngineError(domain.ErrCodeInvalidFormat, "malformed request body: "+err.Error(), "", "")
}
