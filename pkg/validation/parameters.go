package validation

import (
	"fmt"
	"math"
	"sort"

	"github.com/iwvelando/pv-scenario/pkg/constants"
	"github.com/iwvelando/pv-scenario/pkg/rules"
)

// RequiredParameters lists the parameters the default rules and the
// projection read.
var RequiredParameters = []string{
	rules.ParamPVPower,
	rules.ParamSpecificYield,
	rules.ParamElectricityPrice,
	rules.ParamTotalInvestment,
	rules.ParamCO2Factor,
	rules.ParamSystemLifetime,
	rules.ParamAnnualDegradation,
	rules.ParamMaintenanceCost,
	rules.ParamElectricityPriceChange,
}

// ValidateParameters checks a scenario's parameter set and returns warnings
// for values that will produce zero or partial results. It never rejects a
// parameter set; the calculation itself stays total.
func ValidateParameters(params map[string]float64) []string {
	var warnings []string

	for _, key := range RequiredParameters {
		if _, ok := params[key]; !ok {
			warnings = append(warnings, fmt.Sprintf("Parameter '%s' is missing - dependent metrics will be 0", key))
		}
	}

	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		value := params[key]
		if math.IsNaN(value) || math.IsInf(value, 0) {
			warnings = append(warnings, fmt.Sprintf("Parameter '%s' is not a finite number", key))
			continue
		}
		// Price changes may legitimately be negative.
		if value < 0 && key != rules.ParamElectricityPriceChange {
			warnings = append(warnings, fmt.Sprintf("Parameter '%s' is negative (%v)", key, value))
		}
	}

	if lifetime, ok := params[rules.ParamSystemLifetime]; ok {
		switch {
		case lifetime != math.Trunc(lifetime):
			warnings = append(warnings, fmt.Sprintf("System lifetime %v is not a whole number of years - no cash flow will be projected", lifetime))
		case lifetime < constants.MinLifetimeYears:
			warnings = append(warnings, fmt.Sprintf("System lifetime %v is below %d year - no cash flow will be projected",
				lifetime, constants.MinLifetimeYears))
		case lifetime > constants.MaxLifetimeYears:
			warnings = append(warnings, fmt.Sprintf("System lifetime %v exceeds the realistic %d years",
				lifetime, constants.MaxLifetimeYears))
		}
	}

	if degradation, ok := params[rules.ParamAnnualDegradation]; ok && degradation >= 100 {
		warnings = append(warnings, fmt.Sprintf("Annual degradation of %v%% leaves no yield after the first year", degradation))
	}

	if investment, ok := params[rules.ParamTotalInvestment]; ok && investment == 0 {
		warnings = append(warnings, "Total investment is 0 - payback period, ROI and IRR cannot be derived")
	}

	return warnings
}
