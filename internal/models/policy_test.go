package models

import "testing"

func TestDefaultEVPolicy(t *testing.T) {
	p := DefaultEVPolicy()

	if p.DebtMode != DebtModeTotalOnly {
		t.Errorf("DebtMode = %q, want %q", p.DebtMode, DebtModeTotalOnly)
	}
	if !p.SubtractCash {
		t.Error("SubtractCash should default to true")
	}
	if !p.SubtractMarketableSecurities {
		t.Error("SubtractMarketableSecurities should default to true")
	}
	if p.IncludeLeases {
		t.Error("IncludeLeases should default to false")
	}
	if !p.IncludePreferred {
		t.Error("IncludePreferred should default to true")
	}
	if !p.IncludeNCI {
		t.Error("IncludeNCI should default to true")
	}
	if p.SubtractEquityMethodInvestments {
		t.Error("SubtractEquityMethodInvestments should default to false")
	}
}

func TestEVPolicyValidate(t *testing.T) {
	tests := []struct {
		name    string
		mode    string
		wantErr bool
	}{
		{"total_only", DebtModeTotalOnly, false},
		{"split", DebtModeSplit, false},
		{"total_plus_short_term", DebtModeTotalPlusShortTerm, false},
		{"empty", "", true},
		{"unknown", "bogus", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultEVPolicy()
			p.DebtMode = tt.mode
			err := p.Validate()
			if tt.wantErr && err == nil {
				t.Errorf("Validate() with debt_mode=%q expected error, got nil", tt.mode)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Validate() with debt_mode=%q unexpected error: %v", tt.mode, err)
			}
		})
	}
}
