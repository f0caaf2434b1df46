package validation

import (
	"math"
	"strings"
	"testing"

	"github.com/iwvelando/pv-scenario/pkg/rules"
)

func validParameters() map[string]float64 {
	return map[string]float64{
		rules.ParamPVPower:                10,
		rules.ParamSpecificYield:          950,
		rules.ParamElectricityPrice:       0.30,
		rules.ParamTotalInvestment:        15000,
		rules.ParamCO2Factor:              0.4,
		rules.ParamSystemLifetime:         25,
		rules.ParamAnnualDegradation:      0.5,
		rules.ParamMaintenanceCost:        1,
		rules.ParamElectricityPriceChange: 3,
	}
}

func TestValidateParameters(t *testing.T) {
	tests := []struct {
		name     string
		modify   func(map[string]float64)
		expected []string
	}{
		{
			name:   "Valid parameters",
			modify: func(map[string]float64) {},
		},
		{
			name:     "Missing parameter",
			modify:   func(p map[string]float64) { delete(p, rules.ParamCO2Factor) },
			expected: []string{"'co2_factor_kg_per_kwh' is missing"},
		},
		{
			name:     "Negative power",
			modify:   func(p map[string]float64) { p[rules.ParamPVPower] = -1 },
			expected: []string{"'pv_power_kWp' is negative"},
		},
		{
			name:   "Falling electricity prices are allowed",
			modify: func(p map[string]float64) { p[rules.ParamElectricityPriceChange] = -2 },
		},
		{
			name:     "Fractional lifetime",
			modify:   func(p map[string]float64) { p[rules.ParamSystemLifetime] = 20.5 },
			expected: []string{"not a whole number"},
		},
		{
			name:     "Lifetime below one year",
			modify:   func(p map[string]float64) { p[rules.ParamSystemLifetime] = 0 },
			expected: []string{"below 1 year"},
		},
		{
			name:     "Unrealistic lifetime",
			modify:   func(p map[string]float64) { p[rules.ParamSystemLifetime] = 150 },
			expected: []string{"exceeds the realistic 100 years"},
		},
		{
			name:     "Total degradation",
			modify:   func(p map[string]float64) { p[rules.ParamAnnualDegradation] = 100 },
			expected: []string{"leaves no yield"},
		},
		{
			name:     "Zero investment",
			modify:   func(p map[string]float64) { p[rules.ParamTotalInvestment] = 0 },
			expected: []string{"Total investment is 0"},
		},
		{
			name:     "Non-finite value",
			modify:   func(p map[string]float64) { p["custom"] = math.Inf(-1) },
			expected: []string{"'custom' is not a finite number"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := validParameters()
			tt.modify(params)

			warnings := ValidateParameters(params)
			if len(warnings) != len(tt.expected) {
				t.Fatalf("ValidateParameters() returned %d warnings %v, expected %d", len(warnings), warnings, len(tt.expected))
			}
			for i, want := range tt.expected {
				if !strings.Contains(warnings[i], want) {
					t.Errorf("warning[%d] = %q, expected it to contain %q", i, warnings[i], want)
				}
			}
		})
	}
}

func TestValidateParametersEmpty(t *testing.T) {
	warnings := ValidateParameters(nil)
	if len(warnings) != len(RequiredParameters) {
		t.Errorf("ValidateParameters(nil) returned %d warnings, expected one per required parameter", len(warnings))
	}
}
