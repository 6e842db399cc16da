// Package domain contains the core value types for NGS panel reimbursement analysis:
// panel categories, billing codes, lab configuration factors and the risk and financial
// records the engine produces.
//
// All records are plain values. Nothing in this package holds shared mutable state.
package domain

import (
	"errors"
	"strings"
)

// Backbone is the sequencing breadth underlying a report.
type Backbone string

const (
	BackbonePanel  Backbone = "Panel"
	BackboneExome  Backbone = "Exome"
	BackboneGenome Backbone = "Genome"
)

// Positioning describes where a test sits in the clinical workup.
type Positioning string

const (
	PositioningFirstLine    Positioning = "FirstLine"
	PositioningReflex       Positioning = "Reflex"
	PositioningConfirmatory Positioning = "Confirmatory"
)

// Region is the payer geography the lab bills into.
type Region string

const (
	RegionNational  Region = "National"
	RegionNortheast Region = "Northeast"
	RegionSouth     Region = "South"
	RegionMidwest   Region = "Midwest"
	RegionWest      Region = "West"
)

// ReportingStrategy controls whether the full backbone or a carved-out subset is reported.
type ReportingStrategy string

const (
	ReportingFullReport ReportingStrategy = "FullReport"
	ReportingCarveOut   ReportingStrategy = "CarveOut"
)

// Specialty is the ordering clinical specialty.
type Specialty string

const (
	SpecialtyOncology    Specialty = "Oncology"
	SpecialtyCardiology  Specialty = "Cardiology"
	SpecialtyNeurology   Specialty = "Neurology"
	SpecialtyRareDisease Specialty = "RareDisease"
	SpecialtyPrenatal    Specialty = "Prenatal"
)

// PanelCategory is the clinical category attached to every catalog entry at load time.
type PanelCategory string

const (
	CategorySolidTumor   PanelCategory = "SolidTumor"
	CategoryHematologic  PanelCategory = "Hematologic"
	CategoryLiquidBiopsy PanelCategory = "LiquidBiopsy"
	CategoryGermline     PanelCategory = "Germline"
	CategoryOther        PanelCategory = "Other"
)

// RiskLevel is the gene-count derived reimbursement risk tier of a panel.
type RiskLevel string

const (
	RiskLow      RiskLevel = "Low"
	RiskMedium   RiskLevel = "Medium"
	RiskHigh     RiskLevel = "High"
	RiskVeryHigh RiskLevel = "VeryHigh"
)

// CPTCode is a billing procedure code.
type CPTCode string

const (
	CPT81445 CPTCode = "81445"
	CPT81450 CPTCode = "81450"
	CPT81455 CPTCode = "81455"
	// CPT0326U is a placeholder for FDA-cleared ctDNA assays.
	CPT0326U CPTCode = "0326U"
)

// Complexity is the billing complexity bucket a CPT code was selected from.
type Complexity string

const (
	ComplexityLow   Complexity = "low"
	ComplexityMid   Complexity = "mid"
	ComplexityHigh  Complexity = "high"
	ComplexityCtDNA Complexity = "ctdna"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrUnknownPanel     = errors.New("unknown panel")
	ErrUnknownCatalog   = errors.New("unknown catalog")
	ErrInvalidCategory  = errors.New("invalid panel category")
	ErrInvalidRiskLevel = errors.New("invalid risk level")
	ErrInvalidGeneCount = errors.New("gene count must be positive")
)

// IsValid reports whether b is one of the known backbones.
func (b Backbone) IsValid() bool {
	switch b {
	case BackbonePanel, BackboneExome, BackboneGenome:
		return true
	default:
		return false
	}
}

func (b Backbone) String() string { return string(b) }

// IsValid reports whether p is one of the known positionings.
func (p Positioning) IsValid() bool {
	switch p {
	case PositioningFirstLine, PositioningReflex, PositioningConfirmatory:
		return true
	default:
		return false
	}
}

func (p Positioning) String() string { return string(p) }

// IsValid reports whether r is one of the known regions.
func (r Region) IsValid() bool {
	switch r {
	case RegionNational, RegionNortheast, RegionSouth, RegionMidwest, RegionWest:
		return true
	default:
		return false
	}
}

func (r Region) String() string { return string(r) }

// IsValid reports whether s is one of the known reporting strategies.
func (s ReportingStrategy) IsValid() bool {
	return s == ReportingFullReport || s == ReportingCarveOut
}

func (s ReportingStrategy) String() string { return string(s) }

// IsValid reports whether s is one of the known specialties.
func (s Specialty) IsValid() bool {
	switch s {
	case SpecialtyOncology, SpecialtyCardiology, SpecialtyNeurology, SpecialtyRareDisease, SpecialtyPrenatal:
		return true
	default:
		return false
	}
}

func (s Specialty) String() string { return string(s) }

// IsValid reports whether c is one of the known panel categories.
func (c PanelCategory) IsValid() bool {
	switch c {
	case CategorySolidTumor, CategoryHematologic, CategoryLiquidBiopsy, CategoryGermline, CategoryOther:
		return true
	default:
		return false
	}
}

func (c PanelCategory) String() string { return string(c) }

// DisplayName returns the human readable category label.
func (c PanelCategory) DisplayName() string {
	switch c {
	case CategorySolidTumor:
		return "Solid Tumor"
	case CategoryHematologic:
		return "Hematologic"
	case CategoryLiquidBiopsy:
		return "Liquid Biopsy"
	case CategoryGermline:
		return "Germline"
	default:
		return "Other"
	}
}

// ParsePanelCategory resolves a category from its enum value or display label.
// Matching ignores case, spaces, hyphens and underscores.
func ParsePanelCategory(s string) (PanelCategory, error) {
	key := normalizeKey(s)
	for _, c := range []PanelCategory{CategorySolidTumor, CategoryHematologic, CategoryLiquidBiopsy, CategoryGermline, CategoryOther} {
		if key == normalizeKey(string(c)) || key == normalizeKey(c.DisplayName()) {
			return c, nil
		}
	}
	return "", ErrInvalidCategory
}

// IsValid reports whether l is one of the four risk tiers.
func (l RiskLevel) IsValid() bool {
	switch l {
	case RiskLow, RiskMedium, RiskHigh, RiskVeryHigh:
		return true
	default:
		return false
	}
}

func (l RiskLevel) String() string { return string(l) }

// DisplayName returns the human readable tier label.
func (l RiskLevel) DisplayName() string {
	if l == RiskVeryHigh {
		return "Very High"
	}
	return string(l)
}

// ParseRiskLevel resolves a risk level from its enum value or display label.
func ParseRiskLevel(s string) (RiskLevel, error) {
	key := normalizeKey(s)
	for _, l := range []RiskLevel{RiskLow, RiskMedium, RiskHigh, RiskVeryHigh} {
		if key == normalizeKey(string(l)) {
			return l, nil
		}
	}
	return "", ErrInvalidRiskLevel
}

func (c CPTCode) String() string { return string(c) }

// Description returns a short description of the code.
func (c CPTCode) Description() string {
	switch c {
	case CPT81445:
		return "Targeted genomic sequence analysis panel, 5-50 genes"
	case CPT81450:
		return "Targeted genomic sequence analysis panel, hematolymphoid, 5-50 genes"
	case CPT81455:
		return "Targeted genomic sequence analysis panel, 51 or greater genes"
	case CPT0326U:
		return "Targeted genomic sequence analysis, cell-free circulating DNA (FDA-cleared ctDNA assay placeholder)"
	default:
		return "Unrecognized CPT code"
	}
}

func normalizeKey(s string) string {
	r := strings.NewReplacer(" ", "", "-", "", "_", "", "–", "")
	return strings.ToLower(r.Replace(strings.TrimSpace(s)))
}
