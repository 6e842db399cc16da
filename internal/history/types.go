// Package history stores completed analyses so they can be listed, re-exported
// and moved between installations.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/ngs-reimbursement-mcp-server/internal/domain"
)

// Record is one stored analysis. Request and Result hold the JSON encoded
// domain.AnalysisRequest and domain.AnalysisResult.
type Record struct {
	ID              string          `json:"id"`
	CatalogName     string          `json:"catalog_name"`
	PanelName       string          `json:"panel_name"`
	CPTCode         string          `json:"cpt_code"`
	RiskLevel       string          `json:"risk_level"`
	OverallScore    float64         `json:"overall_score"`
	AnnualNetProfit float64         `json:"annual_net_profit"`
	Request         json.RawMessage `json:"request"`
	Result          json.RawMessage `json:"result"`
	CreatedAt       time.Time       `json:"created_at"`
}

// NewRecord builds a record from a finished analysis. A result without an ID is
// assigned a new UUID.
func NewRecord(req *domain.AnalysisRequest, res *domain.AnalysisResult) (*Record, error) {
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now().UTC()
	}

	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	resJSON, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}

	return &Record{
		ID:              res.ID,
		CatalogName:     res.Classification.Catalog,
		PanelName:       res.Classification.Panel,
		CPTCode:         string(res.Classification.CPTCode),
		RiskLevel:       string(res.Classification.RiskLevel),
		OverallScore:    res.Analysis.Risk.OverallScore,
		AnnualNetProfit: res.Analysis.Financials.AnnualNetProfit,
		Request:         reqJSON,
		Result:          resJSON,
		CreatedAt:       res.CreatedAt,
	}, nil
}

// DecodeResult unmarshals the stored analysis result.
func (r *Record) DecodeResult() (*domain.AnalysisResult, error) {
	var res domain.AnalysisResult
	if err := json.Unmarshal(r.Result, &res); err != nil {
		return nil, fmt.Errorf("failed to decode stored result %s: %w", r.ID, err)
	}
	return &res, nil
}

// Store defines the interface for analysis history storage.
type Store interface {
	// Save inserts a record. Saving an existing ID replaces it.
	Save(ctx context.Context, record *Record) error

	// Get returns the record with the given ID, or domain.ErrNotFound.
	Get(ctx context.Context, id string) (*Record, error)

	// List returns records newest first.
	List(ctx context.Context, limit, offset int) ([]*Record, error)

	// Count returns the total number of records.
	Count(ctx context.Context) (int64, error)

	// Delete removes a record, or returns domain.ErrNotFound.
	Delete(ctx context.Context, id string) error

	// ExportJSON writes every record to writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// ImportJSON reads an export, skipping IDs that already exist.
	ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error)

	// Close releases the underlying connection.
	Close() error
}

// Export represents the JSON export format.
type Export struct {
	Version    string    `json:"version"`
	ExportedAt time.Time `json:"exported_at"`
	Count      int       `json:"count"`
	Records    []*Record `json:"records"`
}

const (
	exportVersion  = "1.0"
	maxExportLimit = 1000000
)

// lister is the part of Store the shared export/import helpers need.
type lister interface {
	List(ctx context.Context, limit, offset int) ([]*Record, error)
	Get(ctx context.Context, id string) (*Record, error)
	Save(ctx context.Context, record *Record) error
}

func exportJSON(ctx context.Context, s lister, writer io.Writer) error {
	all, err := s.List(ctx, maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list records: %w", err)
	}

	export := &Export{
		Version:    exportVersion,
		ExportedAt: time.Now().UTC(),
		Count:      len(all),
		Records:    all,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

func importJSON(ctx context.Context, s lister, reader io.Reader) (imported int, skipped int, err error) {
	var export Export
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("failed to decode JSON: %w", err)
	}

	for _, rec := range export.Records {
		if rec.ID == "" {
			skipped++
			continue
		}
		_, err := s.Get(ctx, rec.ID)
		if err == nil {
			skipped++
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return imported, skipped, fmt.Errorf("failed to check existing: %w", err)
		}
		if err := s.Save(ctx, rec); err != nil {
			return imported, skipped, fmt.Errorf("failed to save: %w", err)
		}
		imported++
	}

	return imported, skipped, nil
}
