package service

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/ngs-reimbursement-mcp-server/internal/domain"
)

// Fallback margin used when a carve-out panel does not make money.
const carveOutFallbackMargin = 100.0

var backboneCosts = map[domain.Backbone]float64{
	domain.BackboneExome:  800,
	domain.BackboneGenome: 1300,
}

// Strategy messages.
const (
	msgPanelUnprofitable    = "Current panel strategy may not be profitable. Consider revising panel content or switching to WES/WGS."
	msgPanelCostEffective   = "Panel design appears cost-effective under current assumptions."
	msgBackboneSustainable  = "WES/WGS is likely sustainable with germline panel carve-outs."
	msgBackboneUnprofitable = "WES/WGS carve-outs do not recover the sequencing backbone cost under current assumptions."
)

var billingChecklist = []string{
	"CPT Code matches test content and platform",
	"Z-code submitted and registered in DEX",
	"LOINC code present for test identity",
	"SNOMED code linked to clinical indication",
	"Physician order includes diagnosis aligned with payer criteria",
	"Inpatient vs. outpatient correctly documented (14-day rule consideration)",
	"Test panel adheres to gene count thresholds (<50 for payers restricting CPT 81455)",
	"Clinical utility documentation available (e.g., NCCN guideline citation)",
}

// BackboneCost returns the sequencing cost of one exome or genome run.
func BackboneCost(backbone domain.Backbone) (float64, bool) {
	cost, ok := backboneCosts[backbone]
	return cost, ok
}

// CarveOutBreakEven returns how many carved-out panels one exome or genome run
// needs to cover its backbone cost. A non-positive margin is replaced with a
// fixed 100 and flagged. The second result is false for panel backbones.
func CarveOutBreakEven(backbone domain.Backbone, marginPerPanel float64) (*domain.CarveOutAnalysis, bool) {
	cost, ok := BackboneCost(backbone)
	if !ok {
		return nil, false
	}
	margin := marginPerPanel
	fallback := false
	if !(margin > 0) || math.IsInf(margin, 1) {
		margin = carveOutFallbackMargin
		fallback = true
	}
	required := decimal.NewFromFloat(cost).Div(decimal.NewFromFloat(margin))
	return &domain.CarveOutAnalysis{
		Backbone:       backbone,
		BackboneCost:   cost,
		MarginPerPanel: margin,
		MarginFallback: fallback,
		RequiredPanels: required.InexactFloat64(),
	}, true
}

// RecommendStrategy returns the advisory for a configuration given its
// reimbursement, cost and per-sample profit.
func RecommendStrategy(backbone domain.Backbone, reimbursement, cost, profit float64) domain.StrategyRecommendation {
	switch backbone {
	case domain.BackboneExome, domain.BackboneGenome:
		if profit > 0 {
			return domain.StrategyRecommendation{Level: domain.StrategyOK, Messages: []string{msgBackboneSustainable}}
		}
		return domain.StrategyRecommendation{Level: domain.StrategyWarning, Messages: []string{msgBackboneUnprofitable}}
	default:
		if reimbursement < cost {
			return domain.StrategyRecommendation{Level: domain.StrategyWarning, Messages: []string{msgPanelUnprofitable}}
		}
		return domain.StrategyRecommendation{Level: domain.StrategyOK, Messages: []string{msgPanelCostEffective}}
	}
}

// BillingChecklist returns the claim documentation checklist.
func BillingChecklist() []string {
	return append([]string(nil), billingChecklist...)
}
