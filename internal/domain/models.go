package domain

import (
	"math"
	"time"
)

// Upper bounds applied by the caller-side checks. Within them every derived
// annual figure stays finite.
const (
	MaxAmount        = 1e9
	MaxAnnualVolume  = 1_000_000_000
	MaxTotalLossRate = 10.0
)

// LabProfile is the calculator's input: one lab/test configuration.
// Categorical fields accept values outside the known enumerations; the risk model
// treats those as neutral.
type LabProfile struct {
	Backbone          Backbone          `json:"backbone" mapstructure:"backbone"`
	Positioning       Positioning       `json:"positioning" mapstructure:"positioning"`
	Region            Region            `json:"region" mapstructure:"region"`
	ReportingStrategy ReportingStrategy `json:"reporting_strategy" mapstructure:"reporting_strategy"`
	Specialty         Specialty         `json:"specialty" mapstructure:"specialty"`
	AnnualVolume      int               `json:"annual_volume" mapstructure:"annual_volume"`
	CostPerSample     float64           `json:"cost_per_sample" mapstructure:"cost_per_sample"`
	Reimbursement     float64           `json:"reimbursement" mapstructure:"reimbursement"`
	PriorAuthRate     float64           `json:"prior_auth_rate" mapstructure:"prior_auth_rate"`
	BadDebtRate       float64           `json:"bad_debt_rate" mapstructure:"bad_debt_rate"`
}

// Validate performs the optional caller-side input check. The engine itself never
// calls it; it accepts any numeric input and returns consistent results.
func (p LabProfile) Validate() error {
	if p.AnnualVolume <= 0 || p.AnnualVolume > MaxAnnualVolume {
		return NewValidationError("annual_volume", "must be a positive integer no greater than 1e9", p.AnnualVolume)
	}
	if err := validateAmount("cost_per_sample", p.CostPerSample); err != nil {
		return err
	}
	if err := validateAmount("reimbursement", p.Reimbursement); err != nil {
		return err
	}
	if err := validateFraction("prior_auth_rate", p.PriorAuthRate); err != nil {
		return err
	}
	return validateFraction("bad_debt_rate", p.BadDebtRate)
}

// RiskMetrics is the composite risk score and its derived component scores.
type RiskMetrics struct {
	OverallScore           float64     `json:"overall_score"`
	PriorAuthorizationRisk float64     `json:"prior_authorization_risk"`
	DenialRisk             float64     `json:"denial_risk"`
	AppealSuccessRate      float64     `json:"appeal_success_rate"`
	TimeToPaymentRisk      float64     `json:"time_to_payment_risk"`
	Factors                RiskFactors `json:"factors"`
}

// RiskFactors records the multiplier each factor contributed to the overall score.
type RiskFactors struct {
	Backbone          float64 `json:"backbone"`
	Positioning       float64 `json:"positioning"`
	Region            float64 `json:"region"`
	ReportingStrategy float64 `json:"reporting_strategy"`
	Specialty         float64 `json:"specialty"`
	Volume            float64 `json:"volume"`
}

// FinancialInputs are the four values the financial projection is derived from.
type FinancialInputs struct {
	CostPerSample float64 `json:"cost_per_sample"`
	Reimbursement float64 `json:"reimbursement"`
	Volume        int     `json:"volume"`
	TotalLossRate float64 `json:"total_loss_rate"`
}

// Validate performs the optional caller-side input check.
func (in FinancialInputs) Validate() error {
	if in.Volume <= 0 || in.Volume > MaxAnnualVolume {
		return NewValidationError("volume", "must be a positive integer no greater than 1e9", in.Volume)
	}
	if err := validateAmount("cost_per_sample", in.CostPerSample); err != nil {
		return err
	}
	if err := validateAmount("reimbursement", in.Reimbursement); err != nil {
		return err
	}
	if in.TotalLossRate < 0 || in.TotalLossRate > MaxTotalLossRate || math.IsNaN(in.TotalLossRate) {
		return NewValidationError("total_loss_rate", "must be a number in [0,10]", in.TotalLossRate)
	}
	return nil
}

// FinancialMetrics is the per-sample and annual financial breakdown.
type FinancialMetrics struct {
	GrossProfit            float64 `json:"gross_profit"`
	EffectiveReimbursement float64 `json:"effective_reimbursement"`
	NetProfit              float64 `json:"net_profit"`
	AnnualGrossRevenue     float64 `json:"annual_gross_revenue"`
	AnnualNetRevenue       float64 `json:"annual_net_revenue"`
	AnnualCosts            float64 `json:"annual_costs"`
	AnnualNetProfit        float64 `json:"annual_net_profit"`
	ROI                    float64 `json:"roi"`
	Margin                 float64 `json:"margin"`
	DenialImpact           float64 `json:"denial_impact"`
	TotalLossRate          float64 `json:"total_loss_rate"`
}

// BreakEven is the break-even volume, or the "not profitable at any volume" sentinel
// when Profitable is false. Volume is zero whenever Profitable is false.
type BreakEven struct {
	Profitable bool    `json:"profitable"`
	Volume     float64 `json:"volume,omitempty"`
}

// PanelClassification is the classifier's output for one panel.
type PanelClassification struct {
	Catalog    string        `json:"catalog"`
	Panel      string        `json:"panel"`
	Category   PanelCategory `json:"category"`
	GeneCount  int           `json:"gene_count"`
	CPTCode    CPTCode       `json:"cpt_code"`
	Complexity Complexity    `json:"complexity"`
	BaseRate   float64       `json:"base_rate"`
	RiskLevel  RiskLevel     `json:"risk_level"`
	RiskNote   string        `json:"risk_note,omitempty"`
	RiskSource string        `json:"risk_source"`
}

// Risk tier sources.
const (
	RiskSourceExplicit  = "explicit"
	RiskSourceThreshold = "threshold"
)

// ProfileAnalysis is the calculator's full output for one profile.
type ProfileAnalysis struct {
	Risk          RiskMetrics      `json:"risk"`
	TotalLossRate float64          `json:"total_loss_rate"`
	Financials    FinancialMetrics `json:"financials"`
	BreakEven     BreakEven        `json:"break_even"`
}

// SimulationSummary summarises the sampled annual net profit distribution.
type SimulationSummary struct {
	Trials            int     `json:"trials"`
	Mean              float64 `json:"mean"`
	StdDev            float64 `json:"std_dev"`
	P5                float64 `json:"p5"`
	Median            float64 `json:"median"`
	P95               float64 `json:"p95"`
	ProbabilityOfLoss float64 `json:"probability_of_loss"`
}

// SimulationResult is the sampler's output.
type SimulationResult struct {
	Seed          *uint64           `json:"seed,omitempty"`
	PointEstimate float64           `json:"point_estimate"`
	Summary       SimulationSummary `json:"summary"`
	Samples       []float64         `json:"samples"`
}

// ConfidenceInterval returns the 90% interval [P5, P95].
func (r *SimulationResult) ConfidenceInterval() (low, high float64) {
	return r.Summary.P5, r.Summary.P95
}

// CarveOutAnalysis is the number of carved-out panels needed to cover one
// exome or genome backbone run.
type CarveOutAnalysis struct {
	Backbone       Backbone `json:"backbone"`
	BackboneCost   float64  `json:"backbone_cost"`
	MarginPerPanel float64  `json:"margin_per_panel"`
	MarginFallback bool     `json:"margin_fallback"`
	RequiredPanels float64  `json:"required_panels"`
}

// Strategy recommendation levels.
const (
	StrategyOK      = "ok"
	StrategyWarning = "warning"
)

// StrategyRecommendation is the advisory text for a lab configuration.
type StrategyRecommendation struct {
	Level    string   `json:"level"`
	Messages []string `json:"messages"`
}

// AnalysisRequest is a full pipeline request: a panel plus a lab profile.
// With UseCPTRate set the profile's reimbursement is replaced by the base rate
// of the CPT code the panel resolves to. A zero reimbursement is analyzed as is.
type AnalysisRequest struct {
	Catalog    string     `json:"catalog,omitempty"`
	Panel      string     `json:"panel"`
	GeneCount  *int       `json:"gene_count,omitempty"`
	Profile    LabProfile `json:"profile"`
	UseCPTRate bool       `json:"use_cpt_rate,omitempty"`
	Simulate   bool       `json:"simulate,omitempty"`
	Trials     int        `json:"trials,omitempty"`
	Seed       *uint64    `json:"seed,omitempty"`
}

// AnalysisResult is the combined pipeline output.
type AnalysisResult struct {
	ID             string                 `json:"id,omitempty"`
	Classification PanelClassification    `json:"classification"`
	Profile        LabProfile             `json:"profile"`
	Analysis       ProfileAnalysis        `json:"analysis"`
	CarveOut       *CarveOutAnalysis      `json:"carve_out,omitempty"`
	Strategy       StrategyRecommendation `json:"strategy"`
	Simulation     *SimulationResult      `json:"simulation,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}

// DenialRiskRow is one uploaded test row for the denial risk summary.
type DenialRiskRow struct {
	TestName               string    `json:"test_name"`
	CPTCode                string    `json:"cpt_code"`
	DenialRisk             RiskLevel `json:"denial_risk"`
	EstimatedReimbursement float64   `json:"estimated_reimbursement"`
	Payer                  string    `json:"payer,omitempty"`
}

// DenialRiskBucket aggregates rows sharing a denial risk level.
type DenialRiskBucket struct {
	RiskLevel                     RiskLevel `json:"risk_level"`
	Count                         int       `json:"count"`
	AverageEstimatedReimbursement float64   `json:"average_estimated_reimbursement"`
}

// DenialRiskSummary is the aggregate view of an uploaded denial risk file.
type DenialRiskSummary struct {
	TotalRows int                `json:"total_rows"`
	Buckets   []DenialRiskBucket `json:"buckets"`
	CPTCodes  []string           `json:"cpt_codes"`
	Payers    []string           `json:"payers,omitempty"`
	Rows      []DenialRiskRow    `json:"rows,omitempty"`
}

func validateAmount(field string, v float64) error {
	if v < 0 || v > MaxAmount || math.IsNaN(v) {
		return NewValidationError(field, "must be an amount in [0,1e9]", v)
	}
	return nil
}

func validateFraction(field string, v float64) error {
	if v < 0 || v > 1 || math.IsNaN(v) {
		return NewValidationError(field, "must be a fraction in [0,1]", v)
	}
	return nil
}
