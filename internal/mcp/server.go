// Package mcp exposes the reimbursement engine as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/ngs-reimbursement-mcp-server/internal/domain"
	"github.com/ngs-reimbursement-mcp-server/internal/history"
	"github.com/ngs-reimbursement-mcp-server/internal/service"
)

const (
	DefaultServerName    = "ngs-reimbursement-mcp-server"
	DefaultServerVersion = "v0.1.0"
)

// Options configures a Server. History is optional; without it the history
// tools are not registered. ExportDir is where export_analyses writes.
type Options struct {
	Name      string
	Version   string
	History   history.Store
	ExportDir string
}

// Server represents the NGS reimbursement MCP server implementation
type Server struct {
	mcpServer *mcp.Server
	analyzer  *service.AnalysisService
	history   history.Store
	exportDir string
	logger    *logrus.Logger
	tools     []string
}

// NewServer creates a new MCP server and registers its tools.
func NewServer(analyzer *service.AnalysisService, logger *logrus.Logger, opts Options) *Server {
	if opts.Name == "" {
		opts.Name = DefaultServerName
	}
	if opts.Version == "" {
		opts.Version = DefaultServerVersion
	}

	serverInfo := &mcp.Implementation{
		Name:    opts.Name,
		Version: opts.Version,
	}

	s := &Server{
		mcpServer: mcp.NewServer(serverInfo, nil),
		analyzer:  analyzer,
		history:   opts.History,
		exportDir: opts.ExportDir,
		logger:    logger,
	}
	s.registerTools()

	logger.WithFields(logrus.Fields{
		"server":     opts.Name,
		"version":    opts.Version,
		"tool_count": len(s.tools),
	}).Info("MCP server initialized")
	return s
}

// MCPServer returns the underlying SDK server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcpServer
}

// ToolNames lists the registered tools in registration order.
func (s *Server) ToolNames() []string {
	return append([]string(nil), s.tools...)
}

// Run serves MCP requests over transport until ctx is cancelled or the client
// disconnects.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	if err := s.mcpServer.Run(ctx, transport); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// Start serves over stdio.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting NGS reimbursement MCP server on stdio")
	return s.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	addTool(s, "list_panels",
		"List the panels of a catalog with their CPT code, base rate and reimbursement risk tier",
		s.handleListPanels)
	addTool(s, "classify_panel",
		"Classify a catalog panel: CPT code, complexity, base rate and risk tier, optionally overriding the gene count",
		s.handleClassifyPanel)
	addTool(s, "assess_risk",
		"Compute the composite reimbursement risk score and derived denial and loss rates for a lab profile",
		s.handleAssessRisk)
	addTool(s, "project_financials",
		"Project per-sample and annual revenue, cost, profit, ROI, margin and break-even volume",
		s.handleProjectFinancials)
	addTool(s, "analyze_panel",
		"Run the full reimbursement analysis for a panel and lab profile, optionally with a Monte Carlo simulation",
		s.handleAnalyzePanel)
	addTool(s, "simulate_profit",
		"Monte Carlo simulation of annual net profit under uncertain denial, reimbursement and cost",
		s.handleSimulateProfit)
	addTool(s, "carve_out_break_even",
		"Number of carved-out panels needed to cover one exome or genome backbone run",
		s.handleCarveOut)
	addTool(s, "billing_checklist",
		"Billing and documentation checklist for NGS panel claims",
		s.handleBillingChecklist)
	addTool(s, "summarize_denial_risk",
		"Summarize a denial-risk CSV by risk tier, optionally filtered by CPT code or payer",
		s.handleDenialSummary)

	if s.history != nil {
		addTool(s, "list_analyses",
			"List stored analyses, newest first",
			s.handleListAnalyses)
		addTool(s, "get_analysis",
			"Fetch a stored analysis by ID, as JSON or CSV",
			s.handleGetAnalysis)
		addTool(s, "export_analyses",
			"Export every stored analysis to a JSON file for backup",
			s.handleExportAnalyses)
		addTool(s, "import_analyses",
			"Import analyses from a JSON export, skipping IDs that already exist",
			s.handleImportAnalyses)
	}
}

// toolFunc is the domain side of a tool: typed input in, JSON-serializable output out.
type toolFunc[In any] func(ctx context.Context, in In) (any, error)

// addTool registers fn and wraps it in the standard result envelope.
func addTool[In any](s *Server, name, description string, fn toolFunc[In]) {
	tool := &mcp.Tool{Name: name, Description: description}
	mcp.AddTool(s.mcpServer, tool, func(ctx context.Context, req *mcp.CallToolRequest, in In) (*mcp.CallToolResult, any, error) {
		return runTool(ctx, s.logger, name, in, fn)
	})
	s.tools = append(s.tools, name)
	s.logger.WithField("tool_name", name).Debug("Registered MCP tool")
}

// runTool invokes fn. Domain failures become error results rather than
// protocol errors so the client can show them.
func runTool[In any](ctx context.Context, logger *logrus.Logger, name string, in In, fn toolFunc[In]) (*mcp.CallToolResult, any, error) {
	startTime := time.Now()
	out, err := fn(ctx, in)
	entry := logger.WithFields(logrus.Fields{
		"tool":        name,
		"duration_ms": time.Since(startTime).Milliseconds(),
	})
	if err != nil {
		entry.WithError(err).WithField("code", domain.ErrorCode(err)).Warn("Tool call failed")
		return errorResult(err), nil, nil
	}

	if text, ok := out.(string); ok {
		entry.Debug("Tool call completed")
		return textResult(text), nil, nil
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode %s result: %w", name, err)
	}
	entry.Debug("Tool call completed")
	return textResult(string(data)), out, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

// errorResult creates a standardized error result for tool calls
func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("Error [%s]: %v", domain.ErrorCode(err), err)},
		},
		IsError: true,
	}
}
