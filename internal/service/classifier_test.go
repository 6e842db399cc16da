package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ngs-reimbursement-mcp-server/internal/catalog"
	"github.com/ngs-reimbursement-mcp-server/internal/domain"
)

func TestSelectCPTCode(t *testing.T) {
	tests := []struct {
		name       string
		category   domain.PanelCategory
		geneCount  int
		expected   domain.CPTCode
		complexity domain.Complexity
	}{
		{"solid tumor 45 genes", domain.CategorySolidTumor, 45, domain.CPT81450, domain.ComplexityMid},
		{"liquid biopsy 500 genes", domain.CategoryLiquidBiopsy, 500, domain.CPT0326U, domain.ComplexityCtDNA},
		{"liquid biopsy small panel", domain.CategoryLiquidBiopsy, 3, domain.CPT0326U, domain.ComplexityCtDNA},
		{"germline 150 genes", domain.CategoryGermline, 150, domain.CPT81455, domain.ComplexityHigh},
		{"germline 47 genes", domain.CategoryGermline, 47, domain.CPT81450, domain.ComplexityMid},
		{"boundary 50 is mid", domain.CategoryHematologic, 50, domain.CPT81450, domain.ComplexityMid},
		{"boundary 51 is high", domain.CategoryHematologic, 51, domain.CPT81455, domain.ComplexityHigh},
		{"boundary 6 is mid", domain.CategoryOther, 6, domain.CPT81450, domain.ComplexityMid},
		{"boundary 5 is low", domain.CategoryOther, 5, domain.CPT81445, domain.ComplexityLow},
		{"single gene", domain.CategoryOther, 1, domain.CPT81445, domain.ComplexityLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, complexity := SelectCPTCode(tt.category, tt.geneCount)
			assert.Equal(t, tt.expected, code)
			assert.Equal(t, tt.complexity, complexity)
		})
	}
}

func TestRiskLevelForGeneCount(t *testing.T) {
	tests := []struct {
		genes    int
		expected domain.RiskLevel
	}{
		{1, domain.RiskLow},
		{50, domain.RiskLow},
		{51, domain.RiskMedium},
		{100, domain.RiskMedium},
		{101, domain.RiskHigh},
		{300, domain.RiskHigh},
		{301, domain.RiskVeryHigh},
		{5000, domain.RiskVeryHigh},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, RiskLevelForGeneCount(tt.genes), "gene count %d", tt.genes)
	}
}

func TestPanelClassifier_ClassifyPanel(t *testing.T) {
	c := NewPanelClassifier(catalog.Default())

	t.Run("threshold tier", func(t *testing.T) {
		result, err := c.ClassifyPanel(catalog.SophiaCatalog, "Hematologic – DNA Panel (65 genes)")
		require.NoError(t, err)

		assert.Equal(t, domain.CPT81455, result.CPTCode)
		assert.Equal(t, 1200.0, result.BaseRate)
		assert.Equal(t, domain.RiskMedium, result.RiskLevel)
		assert.Equal(t, domain.RiskSourceThreshold, result.RiskSource)
		assert.Equal(t, domain.CategoryHematologic, result.Category)
		assert.Equal(t, 65, result.GeneCount)
	})

	t.Run("explicit rule wins over thresholds", func(t *testing.T) {
		result, err := c.ClassifyPanel("", "Liquid Biopsy – ctDNA (500 genes)")
		require.NoError(t, err)

		assert.Equal(t, catalog.SophiaCatalog, result.Catalog)
		assert.Equal(t, domain.CPT0326U, result.CPTCode)
		assert.Equal(t, 2800.0, result.BaseRate)
		assert.Equal(t, domain.RiskHigh, result.RiskLevel)
		assert.Equal(t, domain.RiskSourceExplicit, result.RiskSource)
		assert.NotEmpty(t, result.RiskNote)
	})

	t.Run("tier and code are independent", func(t *testing.T) {
		result, err := c.ClassifyPanel(catalog.SophiaCatalog, "Germline – Pediatric/Undiagnosed Disease Panel (160 genes)")
		require.NoError(t, err)

		assert.Equal(t, domain.CPT81455, result.CPTCode)
		assert.Equal(t, domain.RiskVeryHigh, result.RiskLevel)
	})

	t.Run("general catalog", func(t *testing.T) {
		result, err := c.ClassifyPanel(catalog.GeneralCatalog, "Solid Tumor – DNA")
		require.NoError(t, err)
		assert.Equal(t, domain.CPT81450, result.CPTCode)
		assert.Equal(t, 750.0, result.BaseRate)
	})
}

func TestPanelClassifier_UnknownPanel(t *testing.T) {
	c := NewPanelClassifier(catalog.Default())

	result, err := c.ClassifyPanel(catalog.SophiaCatalog, "Whole Exome Lite")
	assert.Nil(t, result)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnknownPanel))

	var upe *domain.UnknownPanelError
	require.True(t, errors.As(err, &upe))
	assert.Equal(t, "Whole Exome Lite", upe.Panel)
	assert.Equal(t, catalog.SophiaCatalog, upe.Catalog)

	_, err = c.ClassifyPanel("missing", "anything")
	assert.ErrorIs(t, err, domain.ErrUnknownCatalog)
}

func TestPanelClassifier_ClassifyPanelWithGeneCount(t *testing.T) {
	c := NewPanelClassifier(catalog.Default())

	result, err := c.ClassifyPanelWithGeneCount(catalog.SophiaCatalog, "Solid Tumor – DNA Panel (325 genes)", 4)
	require.NoError(t, err)
	assert.Equal(t, 4, result.GeneCount)
	assert.Equal(t, domain.CPT81445, result.CPTCode)
	assert.Equal(t, 600.0, result.BaseRate)
	assert.Equal(t, domain.RiskLow, result.RiskLevel)

	result, err = c.ClassifyPanelWithGeneCount(catalog.SophiaCatalog, "Liquid Biopsy – ctDNA (500 genes)", 10)
	require.NoError(t, err)
	assert.Equal(t, domain.CPT0326U, result.CPTCode, "category override ignores gene count")

	_, err = c.ClassifyPanelWithGeneCount(catalog.SophiaCatalog, "Solid Tumor – DNA Panel (325 genes)", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidGeneCount)

	_, err = c.ClassifyPanelWithGeneCount(catalog.SophiaCatalog, "Unknown", 10)
	assert.ErrorIs(t, err, domain.ErrUnknownPanel)
}

func TestPanelClassifier_EveryDefaultPanelResolves(t *testing.T) {
	set := catalog.Default()
	c := NewPanelClassifier(set)

	for _, name := range set.Names() {
		cat, err := set.Catalog(name)
		require.NoError(t, err)
		for _, entry := range cat.Entries() {
			result, err := c.ClassifyPanel(name, entry.Name)
			require.NoError(t, err, entry.Name)
			assert.True(t, result.RiskLevel.IsValid(), entry.Name)
			assert.NotEmpty(t, result.CPTCode, entry.Name)
			assert.Positive(t, result.BaseRate, entry.Name)
		}
	}
}
