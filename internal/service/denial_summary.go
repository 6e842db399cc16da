package service

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/ngs-reimbursement-mcp-server/internal/domain"
)

// Denial-risk CSV columns.
const (
	colTestName               = "test_name"
	colCPTCode                = "cpt_code"
	colDenialRisk             = "denial_risk"
	colEstimatedReimbursement = "estimated_reimbursement"
	colPayer                  = "payer"
)

var requiredDenialColumns = []string{colTestName, colCPTCode, colDenialRisk, colEstimatedReimbursement}

// DenialFilter narrows a denial-risk summary. Empty fields match everything.
type DenialFilter struct {
	CPTCode string `json:"cpt_code,omitempty"`
	Payer   string `json:"payer,omitempty"`
}

// ParseDenialRiskCSV reads denial-risk rows. Header names are matched
// case-insensitively and a leading UTF-8 BOM is ignored. The payer column is
// optional.
func ParseDenialRiskCSV(r io.Reader) ([]domain.DenialRiskRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, domain.NewValidationError("header", "file is empty", nil)
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	colIdx := make(map[string]int, len(header))
	for i, h := range header {
		colIdx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range requiredDenialColumns {
		if _, ok := colIdx[col]; !ok {
			return nil, domain.NewValidationError(col, "required column is missing", nil)
		}
	}
	payerIdx, hasPayer := colIdx[colPayer]

	var rows []domain.DenialRiskRow
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", line, err)
		}
		if isBlankRecord(record) {
			continue
		}

		field := func(col string) string {
			i := colIdx[col]
			if i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		level, err := domain.ParseRiskLevel(field(colDenialRisk))
		if err != nil {
			return nil, domain.NewValidationError(colDenialRisk, fmt.Sprintf("row %d: unknown risk level", line), field(colDenialRisk))
		}
		raw := strings.NewReplacer("$", "", ",", "").Replace(field(colEstimatedReimbursement))
		amount, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, domain.NewValidationError(colEstimatedReimbursement, fmt.Sprintf("row %d: not a number", line), field(colEstimatedReimbursement))
		}
		if math.IsNaN(amount) || math.Abs(amount) > domain.MaxAmount {
			return nil, domain.NewValidationError(colEstimatedReimbursement, fmt.Sprintf("row %d: must be a finite amount within 1e9", line), field(colEstimatedReimbursement))
		}

		row := domain.DenialRiskRow{
			TestName:               field(colTestName),
			CPTCode:                field(colCPTCode),
			DenialRisk:             level,
			EstimatedReimbursement: amount,
		}
		if hasPayer && payerIdx < len(record) {
			row.Payer = strings.TrimSpace(record[payerIdx])
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func isBlankRecord(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// SummarizeDenialRisk groups rows by risk level after applying the filter.
// Buckets are ordered Low, Medium, High, VeryHigh and only present levels are
// listed. CPTCodes and Payers list the distinct values of the unfiltered input.
func SummarizeDenialRisk(rows []domain.DenialRiskRow, filter DenialFilter) *domain.DenialRiskSummary {
	summary := &domain.DenialRiskSummary{
		CPTCodes: distinct(rows, func(r domain.DenialRiskRow) string { return r.CPTCode }),
		Payers:   distinct(rows, func(r domain.DenialRiskRow) string { return r.Payer }),
	}

	counts := make(map[domain.RiskLevel]int)
	totals := make(map[domain.RiskLevel]float64)
	for _, r := range rows {
		if filter.CPTCode != "" && r.CPTCode != filter.CPTCode {
			continue
		}
		if filter.Payer != "" && !strings.EqualFold(r.Payer, filter.Payer) {
			continue
		}
		summary.Rows = append(summary.Rows, r)
		counts[r.DenialRisk]++
		totals[r.DenialRisk] += r.EstimatedReimbursement
	}
	summary.TotalRows = len(summary.Rows)

	for _, level := range []domain.RiskLevel{domain.RiskLow, domain.RiskMedium, domain.RiskHigh, domain.RiskVeryHigh} {
		n := counts[level]
		if n == 0 {
			continue
		}
		summary.Buckets = append(summary.Buckets, domain.DenialRiskBucket{
			RiskLevel:                     level,
			Count:                         n,
			AverageEstimatedReimbursement: totals[level] / float64(n),
		})
	}
	return summary
}

func distinct(rows []domain.DenialRiskRow, key func(domain.DenialRiskRow) string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range rows {
		k := key(r)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
