package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/ngs-reimbursement-mcp-server/internal/domain"
)

// PostgresStore implements the Store interface using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL history store.
// It expects the schema to already exist (created via migrations).
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Save inserts a record, replacing any record with the same ID.
func (s *PostgresStore) Save(ctx context.Context, record *Record) error {
	query := `
		INSERT INTO analyses (
			id, catalog_name, panel_name, cpt_code, risk_level,
			overall_score, annual_net_profit, request, result, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			catalog_name = EXCLUDED.catalog_name,
			panel_name = EXCLUDED.panel_name,
			cpt_code = EXCLUDED.cpt_code,
			risk_level = EXCLUDED.risk_level,
			overall_score = EXCLUDED.overall_score,
			annual_net_profit = EXCLUDED.annual_net_profit,
			request = EXCLUDED.request,
			result = EXCLUDED.result
	`

	_, err := s.db.ExecContext(ctx, query,
		record.ID,
		record.CatalogName,
		record.PanelName,
		record.CPTCode,
		record.RiskLevel,
		record.OverallScore,
		record.AnnualNetProfit,
		string(record.Request),
		string(record.Result),
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save analysis: %w", err)
	}
	return nil
}

// Get retrieves a record by ID.
func (s *PostgresStore) Get(ctx context.Context, id string) (*Record, error) {
	query := `SELECT ` + selectColumns + ` FROM analyses WHERE id = $1`

	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("analysis %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}
	return rec, nil
}

// List returns records newest first with pagination.
func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]*Record, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM analyses
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	defer rows.Close()

	var result []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, rec)
	}

	return result, rows.Err()
}

// Count returns the total number of records.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM analyses").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count analyses: %w", err)
	}
	return count, nil
}

// Delete removes a record by ID.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM analyses WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete analysis: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("analysis %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ExportJSON exports all records to a JSON writer.
func (s *PostgresStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	return exportJSON(ctx, s, writer)
}

// ImportJSON imports records from a JSON reader.
func (s *PostgresStore) ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error) {
	return importJSON(ctx, s, reader)
}

// Close closes the store and releases resources.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
