package domain

import (
	"math"
	"testing"
)

func TestParsePanelCategory(t *testing.T) {
	tests := []struct {
		input    string
		expected PanelCategory
		wantErr  bool
	}{
		{"SolidTumor", CategorySolidTumor, false},
		{"Solid Tumor", CategorySolidTumor, false},
		{"solid_tumor", CategorySolidTumor, false},
		{"Liquid Biopsy", CategoryLiquidBiopsy, false},
		{"liquid-biopsy", CategoryLiquidBiopsy, false},
		{"GERMLINE", CategoryGermline, false},
		{"Hematologic", CategoryHematologic, false},
		{"other", CategoryOther, false},
		{"Cardiac", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParsePanelCategory(tt.input)
			if tt.wantErr {
				if err != ErrInvalidCategory {
					t.Errorf("Expected ErrInvalidCategory, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestParseRiskLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected RiskLevel
	}{
		{"Low", RiskLow},
		{"medium", RiskMedium},
		{"HIGH", RiskHigh},
		{"Very High", RiskVeryHigh},
		{"very_high", RiskVeryHigh},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseRiskLevel(tt.input)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}

	if _, err := ParseRiskLevel("Critical"); err != ErrInvalidRiskLevel {
		t.Errorf("Expected ErrInvalidRiskLevel, got %v", err)
	}
}

func TestEnumValidity(t *testing.T) {
	if !BackboneGenome.IsValid() || Backbone("Transcriptome").IsValid() {
		t.Error("Backbone validity mismatch")
	}
	if !PositioningReflex.IsValid() || Positioning("Screening").IsValid() {
		t.Error("Positioning validity mismatch")
	}
	if !RegionMidwest.IsValid() || Region("Pacific").IsValid() {
		t.Error("Region validity mismatch")
	}
	if !ReportingCarveOut.IsValid() || ReportingStrategy("Partial").IsValid() {
		t.Error("ReportingStrategy validity mismatch")
	}
	if !SpecialtyPrenatal.IsValid() || Specialty("Dermatology").IsValid() {
		t.Error("Specialty validity mismatch")
	}
	if RiskVeryHigh.DisplayName() != "Very High" || RiskLow.DisplayName() != "Low" {
		t.Error("RiskLevel display names mismatch")
	}
	if CategoryLiquidBiopsy.DisplayName() != "Liquid Biopsy" {
		t.Errorf("Unexpected display name %s", CategoryLiquidBiopsy.DisplayName())
	}
}

func TestLabProfileValidate(t *testing.T) {
	valid := LabProfile{
		Backbone:          BackbonePanel,
		Positioning:       PositioningFirstLine,
		Region:            RegionNational,
		ReportingStrategy: ReportingFullReport,
		Specialty:         SpecialtyOncology,
		AnnualVolume:      1000,
		CostPerSample:     728,
		Reimbursement:     1000,
		PriorAuthRate:     0.5,
		BadDebtRate:       0.02,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Expected valid profile, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(p *LabProfile)
		field  string
	}{
		{"zero volume", func(p *LabProfile) { p.AnnualVolume = 0 }, "annual_volume"},
		{"negative cost", func(p *LabProfile) { p.CostPerSample = -1 }, "cost_per_sample"},
		{"NaN reimbursement", func(p *LabProfile) { p.Reimbursement = math.NaN() }, "reimbursement"},
		{"huge reimbursement", func(p *LabProfile) { p.Reimbursement = 1e308 }, "reimbursement"},
		{"infinite cost", func(p *LabProfile) { p.CostPerSample = math.Inf(1) }, "cost_per_sample"},
		{"volume above bound", func(p *LabProfile) { p.AnnualVolume = MaxAnnualVolume + 1 }, "annual_volume"},
		{"prior auth above one", func(p *LabProfile) { p.PriorAuthRate = 1.5 }, "prior_auth_rate"},
		{"negative bad debt", func(p *LabProfile) { p.BadDebtRate = -0.1 }, "bad_debt_rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			err := p.Validate()
			verr, ok := err.(*ValidationError)
			if !ok {
				t.Fatalf("Expected *ValidationError, got %T", err)
			}
			if verr.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, verr.Field)
			}
		})
	}
}

func TestFinancialInputsValidate(t *testing.T) {
	in := FinancialInputs{CostPerSample: 728, Reimbursement: 1000, Volume: 1000, TotalLossRate: 0.15}
	if err := in.Validate(); err != nil {
		t.Fatalf("Expected valid inputs, got %v", err)
	}

	in.TotalLossRate = math.Inf(1)
	if err := in.Validate(); err == nil {
		t.Error("Expected error for infinite loss rate")
	}

	in.TotalLossRate = 0.15
	in.CostPerSample = 1e308
	in.Reimbursement = 1e308
	if err := in.Validate(); err == nil {
		t.Error("Expected error for amounts that overflow the annual figures")
	}
}

func TestSimulationResultConfidenceInterval(t *testing.T) {
	r := &SimulationResult{Summary: SimulationSummary{P5: -10, P95: 250}}
	low, high := r.ConfidenceInterval()
	if low != -10 || high != 250 {
		t.Errorf("Expected [-10, 250], got [%v, %v]", low, high)
	}
}
