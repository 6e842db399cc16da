package service

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ngs-reimbursement-mcp-server/internal/domain"
)

const denialCSV = "\ufeffTest_Name,CPT_Code,Denial_Risk,Estimated_Reimbursement,Payer\n" +
	"Solid Tumor DNA,81455,High,\"$1,200.00\",Aetna\n" +
	"Heme DNA,81450,Medium,750,Medicare\n" +
	"\n" +
	"Hereditary Cancer,81450,Low,600,Aetna\n" +
	"Pediatric,81455,Very High,1000,Cigna\n" +
	"Liquid Biopsy,0326U,High,2800,Medicare\n"

func TestParseDenialRiskCSV(t *testing.T) {
	rows, err := ParseDenialRiskCSV(strings.NewReader(denialCSV))
	require.NoError(t, err)
	require.Len(t, rows, 5)

	assert.Equal(t, domain.DenialRiskRow{
		TestName:               "Solid Tumor DNA",
		CPTCode:                "81455",
		DenialRisk:             domain.RiskHigh,
		EstimatedReimbursement: 1200,
		Payer:                  "Aetna",
	}, rows[0])
	assert.Equal(t, domain.RiskVeryHigh, rows[3].DenialRisk)
}

func TestParseDenialRiskCSV_PayerOptional(t *testing.T) {
	rows, err := ParseDenialRiskCSV(strings.NewReader("test_name,cpt_code,denial_risk,estimated_reimbursement\nA,81445,Low,600\n"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Empty(t, rows[0].Payer)
}

func TestParseDenialRiskCSV_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		field string
	}{
		{"empty file", "", "header"},
		{"missing column", "test_name,cpt_code,estimated_reimbursement\nA,81445,600\n", colDenialRisk},
		{"bad risk level", "test_name,cpt_code,denial_risk,estimated_reimbursement\nA,81445,Extreme,600\n", colDenialRisk},
		{"bad amount", "test_name,cpt_code,denial_risk,estimated_reimbursement\nA,81445,Low,n/a\n", colEstimatedReimbursement},
		{"NaN amount", "test_name,cpt_code,denial_risk,estimated_reimbursement\nA,81450,Low,NaN\n", colEstimatedReimbursement},
		{"infinite amount", "test_name,cpt_code,denial_risk,estimated_reimbursement\nA,81450,Low,+Inf\n", colEstimatedReimbursement},
		{"huge amount", "test_name,cpt_code,denial_risk,estimated_reimbursement\nA,81450,Low,1e308\n", colEstimatedReimbursement},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := ParseDenialRiskCSV(strings.NewReader(tt.input))
			assert.Nil(t, rows)
			var vErr *domain.ValidationError
			require.True(t, errors.As(err, &vErr), "expected validation error, got %v", err)
			assert.Equal(t, tt.field, vErr.Field)
			assert.Equal(t, domain.ErrCodeInvalidInput, domain.ErrorCode(err))
		})
	}
}

func TestSummarizeDenialRisk(t *testing.T) {
	rows, err := ParseDenialRiskCSV(strings.NewReader(denialCSV))
	require.NoError(t, err)

	summary := SummarizeDenialRisk(rows, DenialFilter{})
	assert.Equal(t, 5, summary.TotalRows)
	assert.Equal(t, []string{"0326U", "81450", "81455"}, summary.CPTCodes)
	assert.Equal(t, []string{"Aetna", "Cigna", "Medicare"}, summary.Payers)
	require.Len(t, summary.Buckets, 4)
	assert.Equal(t, domain.RiskLow, summary.Buckets[0].RiskLevel)
	assert.Equal(t, domain.RiskVeryHigh, summary.Buckets[3].RiskLevel)

	high := summary.Buckets[2]
	assert.Equal(t, domain.RiskHigh, high.RiskLevel)
	assert.Equal(t, 2, high.Count)
	assert.InDelta(t, 2000, high.AverageEstimatedReimbursement, 1e-9)
}

func TestSummarizeDenialRisk_Filters(t *testing.T) {
	rows, err := ParseDenialRiskCSV(strings.NewReader(denialCSV))
	require.NoError(t, err)

	summary := SummarizeDenialRisk(rows, DenialFilter{CPTCode: "81455"})
	assert.Equal(t, 2, summary.TotalRows)
	require.Len(t, summary.Buckets, 2)
	assert.Equal(t, domain.RiskHigh, summary.Buckets[0].RiskLevel)
	assert.Equal(t, domain.RiskVeryHigh, summary.Buckets[1].RiskLevel)
	assert.Len(t, summary.CPTCodes, 3, "filter options list the whole file")

	summary = SummarizeDenialRisk(rows, DenialFilter{Payer: "medicare"})
	assert.Equal(t, 2, summary.TotalRows)

	summary = SummarizeDenialRisk(rows, DenialFilter{CPTCode: "81445"})
	assert.Zero(t, summary.TotalRows)
	assert.Empty(t, summary.Buckets)
}
