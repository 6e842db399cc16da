package service

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/ngs-reimbursement-mcp-server/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// ComputeFinancials derives the per-sample and annual financial breakdown.
// Money is computed in decimal and converted to float64 at the end. ROI and
// margin are zero when their denominators are not positive. Inputs decimal
// cannot represent (NaN, Inf) take the float64 path.
func ComputeFinancials(in domain.FinancialInputs) domain.FinancialMetrics {
	if !finite(in.CostPerSample, in.Reimbursement, in.TotalLossRate) {
		return computeFinancialsFloat(in)
	}

	cost := decimal.NewFromFloat(in.CostPerSample)
	reimbursement := decimal.NewFromFloat(in.Reimbursement)
	volume := decimal.NewFromInt(int64(in.Volume))

	grossProfit := reimbursement.Sub(cost)
	effective := reimbursement.Mul(decimal.NewFromInt(1).Sub(decimal.NewFromFloat(in.TotalLossRate)))
	netProfit := effective.Sub(cost)

	roi, margin := decimal.Zero, decimal.Zero
	if cost.IsPositive() {
		roi = netProfit.Div(cost).Mul(hundred)
	}
	if effective.IsPositive() {
		margin = netProfit.Div(effective).Mul(hundred)
	}

	return domain.FinancialMetrics{
		GrossProfit:            grossProfit.InexactFloat64(),
		EffectiveReimbursement: effective.InexactFloat64(),
		NetProfit:              netProfit.InexactFloat64(),
		AnnualGrossRevenue:     reimbursement.Mul(volume).InexactFloat64(),
		AnnualNetRevenue:       effective.Mul(volume).InexactFloat64(),
		AnnualCosts:            cost.Mul(volume).InexactFloat64(),
		AnnualNetProfit:        netProfit.Mul(volume).InexactFloat64(),
		ROI:                    roi.InexactFloat64(),
		Margin:                 margin.InexactFloat64(),
		DenialImpact:           grossProfit.Sub(netProfit).Mul(volume).InexactFloat64(),
		TotalLossRate:          in.TotalLossRate,
	}
}

// computeFinancialsFloat is the float64 form of ComputeFinancials. The sampler
// uses it for every trial.
func computeFinancialsFloat(in domain.FinancialInputs) domain.FinancialMetrics {
	volume := float64(in.Volume)

	grossProfit := in.Reimbursement - in.CostPerSample
	effective := in.Reimbursement * (1 - in.TotalLossRate)
	netProfit := effective - in.CostPerSample

	var roi, margin float64
	if in.CostPerSample > 0 {
		roi = netProfit / in.CostPerSample * 100
	}
	if effective > 0 {
		margin = netProfit / effective * 100
	}

	return domain.FinancialMetrics{
		GrossProfit:            grossProfit,
		EffectiveReimbursement: effective,
		NetProfit:              netProfit,
		AnnualGrossRevenue:     in.Reimbursement * volume,
		AnnualNetRevenue:       effective * volume,
		AnnualCosts:            in.CostPerSample * volume,
		AnnualNetProfit:        netProfit * volume,
		ROI:                    roi,
		Margin:                 margin,
		DenialImpact:           (grossProfit - netProfit) * volume,
		TotalLossRate:          in.TotalLossRate,
	}
}

// ComputeBreakEven returns annualCosts/netProfit when each sample is profitable,
// otherwise the not-profitable sentinel.
func ComputeBreakEven(fin domain.FinancialMetrics) domain.BreakEven {
	if !(fin.NetProfit > 0) {
		return domain.BreakEven{Profitable: false}
	}
	if !finite(fin.AnnualCosts, fin.NetProfit) {
		return domain.BreakEven{Profitable: true, Volume: fin.AnnualCosts / fin.NetProfit}
	}
	volume := decimal.NewFromFloat(fin.AnnualCosts).Div(decimal.NewFromFloat(fin.NetProfit))
	return domain.BreakEven{Profitable: true, Volume: volume.InexactFloat64()}
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// AnalyzeProfile runs risk scoring, loss-rate derivation, financials and break-even
// for one profile.
func (m *RiskModel) AnalyzeProfile(profile domain.LabProfile) domain.ProfileAnalysis {
	risk := m.ComputeRiskScore(profile)
	lossRate := TotalLossRate(risk, profile)
	fin := ComputeFinancials(domain.FinancialInputs{
		CostPerSample: profile.CostPerSample,
		Reimbursement: profile.Reimbursement,
		Volume:        profile.AnnualVolume,
		TotalLossRate: lossRate,
	})
	return domain.ProfileAnalysis{
		Risk:          risk,
		TotalLossRate: lossRate,
		Financials:    fin,
		BreakEven:     ComputeBreakEven(fin),
	}
}
