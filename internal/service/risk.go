package service

import (
	"math"

	"github.com/ngs-reimbursement-mcp-server/internal/domain"
)

const (
	neutralMultiplier = 1.0

	volumeFactorBase    = 1.2
	volumeFactorDivisor = 5000.0
	volumeFactorFloor   = 0.7

	priorAuthScale    = 0.8
	denialScale       = 0.6
	appealScale       = 0.4
	appealFloor       = 0.3
	timeToPayScale    = 0.7
	baseDenialScale   = 0.15
	priorAuthDiscount = 0.4
)

// RiskModel holds the categorical multiplier tables. Values missing from a table
// score as neutral (1.0). A RiskModel is never modified after construction.
type RiskModel struct {
	backbone    map[domain.Backbone]float64
	positioning map[domain.Positioning]float64
	region      map[domain.Region]float64
	reporting   map[domain.ReportingStrategy]float64
	specialty   map[domain.Specialty]float64
}

// DefaultRiskModel returns the standard multiplier tables.
func DefaultRiskModel() *RiskModel {
	return &RiskModel{
		backbone: map[domain.Backbone]float64{
			domain.BackbonePanel:  0.8,
			domain.BackboneExome:  1.0,
			domain.BackboneGenome: 1.2,
		},
		positioning: map[domain.Positioning]float64{
			domain.PositioningFirstLine:    1.1,
			domain.PositioningReflex:       0.9,
			domain.PositioningConfirmatory: 0.7,
		},
		region: map[domain.Region]float64{
			domain.RegionNational:  1.0,
			domain.RegionNortheast: 0.9,
			domain.RegionSouth:     1.2,
			domain.RegionMidwest:   1.0,
			domain.RegionWest:      1.1,
		},
		reporting: map[domain.ReportingStrategy]float64{
			domain.ReportingFullReport: 1.0,
			domain.ReportingCarveOut:   0.9,
		},
		specialty: map[domain.Specialty]float64{
			domain.SpecialtyOncology:    0.8,
			domain.SpecialtyCardiology:  1.0,
			domain.SpecialtyNeurology:   1.1,
			domain.SpecialtyRareDisease: 1.3,
			domain.SpecialtyPrenatal:    0.9,
		},
	}
}

func lookupMultiplier[K comparable](table map[K]float64, key K) float64 {
	if m, ok := table[key]; ok {
		return m
	}
	return neutralMultiplier
}

// VolumeFactor is max(0.7, 1.2 - volume/5000); non-increasing in volume.
func VolumeFactor(volume int) float64 {
	return math.Max(volumeFactorFloor, volumeFactorBase-float64(volume)/volumeFactorDivisor)
}

// ComputeRiskScore multiplies the six factor multipliers into the overall score
// and derives the four component scores from it.
func (m *RiskModel) ComputeRiskScore(profile domain.LabProfile) domain.RiskMetrics {
	factors := domain.RiskFactors{
		Backbone:          lookupMultiplier(m.backbone, profile.Backbone),
		Positioning:       lookupMultiplier(m.positioning, profile.Positioning),
		Region:            lookupMultiplier(m.region, profile.Region),
		ReportingStrategy: lookupMultiplier(m.reporting, profile.ReportingStrategy),
		Specialty:         lookupMultiplier(m.specialty, profile.Specialty),
		Volume:            VolumeFactor(profile.AnnualVolume),
	}

	overall := factors.Backbone * factors.Positioning * factors.Region *
		factors.ReportingStrategy * factors.Specialty * factors.Volume

	return domain.RiskMetrics{
		OverallScore:           overall,
		PriorAuthorizationRisk: math.Min(overall*priorAuthScale, 1.0),
		DenialRisk:             math.Min(overall*denialScale, 1.0),
		AppealSuccessRate:      math.Max(appealFloor, 1.0-overall*appealScale),
		TimeToPaymentRisk:      math.Min(overall*timeToPayScale, 1.0),
		Factors:                factors,
	}
}

// EstimatedDenialRate is the base denial rate implied by a risk score.
func EstimatedDenialRate(risk domain.RiskMetrics) float64 {
	return risk.OverallScore * baseDenialScale
}

// TotalLossRate combines the base denial rate, discounted by up to 40% for prior
// authorization, with the bad-debt rate. The result is not clamped.
func TotalLossRate(risk domain.RiskMetrics, profile domain.LabProfile) float64 {
	return EstimatedDenialRate(risk)*(1-profile.PriorAuthRate*priorAuthDiscount) + profile.BadDebtRate
}
