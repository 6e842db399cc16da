package catalog

import "github.com/ngs-reimbursement-mcp-server/internal/domain"

// Built-in catalog names.
const (
	SophiaCatalog  = "sophia"
	GeneralCatalog = "general"
)

var sophiaEntries = []Entry{
	{Name: "Solid Tumor – DNA Panel (325 genes)", GeneCount: 325, Category: domain.CategorySolidTumor},
	{Name: "Solid Tumor – RNA Panel (50 genes)", GeneCount: 50, Category: domain.CategorySolidTumor},
	{Name: "Solid Tumor – DNA + RNA Panel (375 genes)", GeneCount: 375, Category: domain.CategorySolidTumor},
	{Name: "Hematologic – DNA Panel (65 genes)", GeneCount: 65, Category: domain.CategoryHematologic},
	{Name: "Hematologic – RNA Panel (50 genes)", GeneCount: 50, Category: domain.CategoryHematologic},
	{Name: "Hematologic – DNA + RNA Panel (115 genes)", GeneCount: 115, Category: domain.CategoryHematologic},
	{Name: "Liquid Biopsy – ctDNA (500 genes)", GeneCount: 500, Category: domain.CategoryLiquidBiopsy},
	{Name: "Germline – Hereditary Cancer Panel (47 genes)", GeneCount: 47, Category: domain.CategoryGermline},
	{Name: "Germline – Cardiovascular/Metabolic Panel (60 genes)", GeneCount: 60, Category: domain.CategoryGermline},
	{Name: "Germline – Pediatric/Undiagnosed Disease Panel (160 genes)", GeneCount: 160, Category: domain.CategoryGermline},
}

var generalEntries = []Entry{
	{Name: "Solid Tumor – DNA", GeneCount: 45, Category: domain.CategorySolidTumor},
	{Name: "Solid Tumor – Comprehensive", GeneCount: 300, Category: domain.CategorySolidTumor},
	{Name: "Hematologic – Myeloid", GeneCount: 50, Category: domain.CategoryHematologic},
	{Name: "Hematologic – Lymphoid", GeneCount: 80, Category: domain.CategoryHematologic},
	{Name: "Liquid Biopsy", GeneCount: 500, Category: domain.CategoryLiquidBiopsy},
	{Name: "Germline – Hereditary Cancer", GeneCount: 150, Category: domain.CategoryGermline},
	{Name: "Germline – Cardiomyopathy", GeneCount: 100, Category: domain.CategoryGermline},
	{Name: "Pharmacogenomics", GeneCount: 5, Category: domain.CategoryOther},
}

var defaultRules = []RiskTierRule{
	{
		Panel:     "Liquid Biopsy – ctDNA (500 genes)",
		RiskLevel: domain.RiskHigh,
		Note:      "Billed under 0326U; coverage follows the FDA-cleared assay rather than gene count",
	},
	{
		Panel:     "Germline – Hereditary Cancer Panel (47 genes)",
		RiskLevel: domain.RiskLow,
		Note:      "Hereditary cancer criteria are widely covered when NCCN testing criteria are documented",
	},
	{
		Panel:     "Germline – Pediatric/Undiagnosed Disease Panel (160 genes)",
		RiskLevel: domain.RiskVeryHigh,
		Note:      "Frequently denied in favor of exome sequencing for undiagnosed disease",
	},
}

// DefaultRates is the CPT base-rate table in dollars.
func DefaultRates() map[domain.CPTCode]float64 {
	return map[domain.CPTCode]float64{
		domain.CPT81445: 600,
		domain.CPT81450: 750,
		domain.CPT81455: 1200,
		domain.CPT0326U: 2800,
	}
}

// DefaultRules returns the built-in explicit risk-tier rules.
func DefaultRules() []RiskTierRule {
	return append([]RiskTierRule(nil), defaultRules...)
}

// Default returns the built-in reference data: the SOPHiA and general catalogs,
// the explicit risk-tier rules and the CPT rates.
func Default() *Set {
	sophia, err := NewCatalog(SophiaCatalog, sophiaEntries)
	if err != nil {
		panic(err)
	}
	general, err := NewCatalog(GeneralCatalog, generalEntries)
	if err != nil {
		panic(err)
	}
	set, err := NewSet([]*Catalog{sophia, general}, SophiaCatalog, DefaultRules(), DefaultRates())
	if err != nil {
		panic(err)
	}
	return set
}
