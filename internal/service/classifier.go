package service

import (
	"fmt"

	"github.com/ngs-reimbursement-mcp-server/internal/catalog"
	"github.com/ngs-reimbursement-mcp-server/internal/domain"
)

// Gene-count ladder boundaries.
const (
	highComplexityThreshold = 50
	midComplexityThreshold  = 5
)

// Risk-tier gene-count boundaries.
const (
	lowRiskMaxGenes    = 50
	mediumRiskMaxGenes = 100
	highRiskMaxGenes   = 300
)

// PanelClassifier maps catalog panels to CPT codes, base rates and risk tiers.
type PanelClassifier struct {
	set *catalog.Set
}

// NewPanelClassifier creates a classifier over the given reference data.
func NewPanelClassifier(set *catalog.Set) *PanelClassifier {
	return &PanelClassifier{set: set}
}

// Catalogs exposes the reference data the classifier reads.
func (c *PanelClassifier) Catalogs() *catalog.Set {
	return c.set
}

// ClassifyPanel classifies a panel using the gene count recorded in the catalog.
// A panel missing from the catalog is an *domain.UnknownPanelError.
func (c *PanelClassifier) ClassifyPanel(catalogName, panel string) (*domain.PanelClassification, error) {
	entry, name, err := c.lookup(catalogName, panel)
	if err != nil {
		return nil, err
	}
	return c.classify(name, entry, entry.GeneCount), nil
}

// ClassifyPanelWithGeneCount classifies a catalog panel with an overridden gene
// count. The panel must still exist; its category comes from the catalog.
func (c *PanelClassifier) ClassifyPanelWithGeneCount(catalogName, panel string, geneCount int) (*domain.PanelClassification, error) {
	if geneCount <= 0 {
		return nil, fmt.Errorf("panel %q: %w", panel, domain.ErrInvalidGeneCount)
	}
	entry, name, err := c.lookup(catalogName, panel)
	if err != nil {
		return nil, err
	}
	return c.classify(name, entry, geneCount), nil
}

func (c *PanelClassifier) lookup(catalogName, panel string) (catalog.Entry, string, error) {
	cat, err := c.set.Catalog(catalogName)
	if err != nil {
		return catalog.Entry{}, "", err
	}
	entry, ok := cat.Lookup(panel)
	if !ok {
		return catalog.Entry{}, "", &domain.UnknownPanelError{Catalog: cat.Name(), Panel: panel}
	}
	return entry, cat.Name(), nil
}

func (c *PanelClassifier) classify(catalogName string, entry catalog.Entry, geneCount int) *domain.PanelClassification {
	code, complexity := SelectCPTCode(entry.Category, geneCount)
	result := &domain.PanelClassification{
		Catalog:    catalogName,
		Panel:      entry.Name,
		Category:   entry.Category,
		GeneCount:  geneCount,
		CPTCode:    code,
		Complexity: complexity,
		BaseRate:   c.set.Rate(code),
	}

	if rule, ok := c.set.RiskTierRule(entry.Name); ok {
		result.RiskLevel = rule.RiskLevel
		result.RiskNote = rule.Note
		result.RiskSource = domain.RiskSourceExplicit
	} else {
		result.RiskLevel = RiskLevelForGeneCount(geneCount)
		result.RiskSource = domain.RiskSourceThreshold
	}
	return result
}

// SelectCPTCode applies the liquid-biopsy override, then the gene-count ladder.
// Germline and every other category use the ladder.
func SelectCPTCode(category domain.PanelCategory, geneCount int) (domain.CPTCode, domain.Complexity) {
	if category == domain.CategoryLiquidBiopsy {
		return domain.CPT0326U, domain.ComplexityCtDNA
	}
	switch {
	case geneCount > highComplexityThreshold:
		return domain.CPT81455, domain.ComplexityHigh
	case geneCount > midComplexityThreshold:
		return domain.CPT81450, domain.ComplexityMid
	default:
		return domain.CPT81445, domain.ComplexityLow
	}
}

// RiskLevelForGeneCount is the threshold fallback used when no explicit rule
// names the panel.
func RiskLevelForGeneCount(geneCount int) domain.RiskLevel {
	switch {
	case geneCount <= lowRiskMaxGenes:
		return domain.RiskLow
	case geneCount <= mediumRiskMaxGenes:
		return domain.RiskMedium
	case geneCount <= highRiskMaxGenes:
		return domain.RiskHigh
	default:
		return domain.RiskVeryHigh
	}
}
