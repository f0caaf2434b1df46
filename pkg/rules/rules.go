// Package rules holds the calculation rules that derive the basic metrics of
// a PV scenario from its parameters.
package rules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/iwvelando/pv-scenario/pkg/formula"
)

// Priority classifies how prominently a metric is presented.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Category groups metrics for presentation and for the dynamic data registry.
type Category string

const (
	CategoryEnergy        Category = "energy"
	CategoryFinancial     Category = "financial"
	CategoryEnvironmental Category = "environmental"
)

// Parameter keys consumed by the rule set and the projector.
const (
	ParamPVPower                = "pv_power_kWp"
	ParamSpecificYield          = "specific_yield_kwh_per_kwp"
	ParamElectricityPrice       = "electricity_price_per_kwh"
	ParamTotalInvestment        = "total_investment_euro"
	ParamCO2Factor              = "co2_factor_kg_per_kwh"
	ParamSystemLifetime         = "system_lifetime_years"
	ParamAnnualDegradation      = "annual_degradation_percent"
	ParamMaintenanceCost        = "maintenance_cost_percent"
	ParamElectricityPriceChange = "electricity_price_increase_percent"
)

// Keys of the metrics produced by the default rule set.
const (
	AnnualYield       = "annual_yield_kwh"
	AnnualSavings     = "annual_savings_euro"
	PaybackPeriod     = "payback_period_years"
	ROIPercentage     = "roi_percentage"
	CO2SavingsPerYear = "co2_savings_kg_per_year"
	LifetimeSavings   = "lifetime_savings_euro"
	MonthlySavings    = "monthly_savings_euro"
	SpecificCost      = "specific_cost_per_kwp"
)

// CalculationRule derives one metric. Key doubles as the output variable name
// later rules can reference.
type CalculationRule struct {
	Key          string   `json:"key" yaml:"key"`
	Label        string   `json:"label" yaml:"label"`
	Formula      string   `json:"formula" yaml:"formula"`
	Dependencies []string `json:"dependencies" yaml:"dependencies"`
	Category     Category `json:"category" yaml:"category"`
	Priority     Priority `json:"priority" yaml:"priority"`
	Unit         string   `json:"unit,omitempty" yaml:"unit,omitempty"`
}

var defaultRules = []CalculationRule{
	{
		Key:          AnnualYield,
		Label:        "Annual energy yield",
		Formula:      "pv_power_kWp * specific_yield_kwh_per_kwp",
		Dependencies: []string{ParamPVPower, ParamSpecificYield},
		Category:     CategoryEnergy,
		Priority:     PriorityHigh,
		Unit:         "kWh",
	},
	{
		Key:          AnnualSavings,
		Label:        "Annual savings",
		Formula:      "annual_yield_kwh * electricity_price_per_kwh",
		Dependencies: []string{AnnualYield, ParamElectricityPrice},
		Category:     CategoryFinancial,
		Priority:     PriorityHigh,
		Unit:         "EUR",
	},
	{
		Key:          PaybackPeriod,
		Label:        "Payback period",
		Formula:      "total_investment_euro / annual_savings_euro",
		Dependencies: []string{ParamTotalInvestment, AnnualSavings},
		Category:     CategoryFinancial,
		Priority:     PriorityHigh,
		Unit:         "years",
	},
	{
		Key:          ROIPercentage,
		Label:        "Return on investment",
		Formula:      "(annual_savings_euro / total_investment_euro) * 100",
		Dependencies: []string{AnnualSavings, ParamTotalInvestment},
		Category:     CategoryFinancial,
		Priority:     PriorityMedium,
		Unit:         "%",
	},
	{
		Key:          CO2SavingsPerYear,
		Label:        "CO2 savings per year",
		Formula:      "annual_yield_kwh * co2_factor_kg_per_kwh",
		Dependencies: []string{AnnualYield, ParamCO2Factor},
		Category:     CategoryEnvironmental,
		Priority:     PriorityMedium,
		Unit:         "kg",
	},
	{
		Key:          LifetimeSavings,
		Label:        "Lifetime savings",
		Formula:      "annual_savings_euro * system_lifetime_years",
		Dependencies: []string{AnnualSavings, ParamSystemLifetime},
		Category:     CategoryFinancial,
		Priority:     PriorityMedium,
		Unit:         "EUR",
	},
	{
		Key:          MonthlySavings,
		Label:        "Monthly savings",
		Formula:      "annual_savings_euro / 12",
		Dependencies: []string{AnnualSavings},
		Category:     CategoryFinancial,
		Priority:     PriorityLow,
		Unit:         "EUR",
	},
	{
		Key:          SpecificCost,
		Label:        "Specific cost per kWp",
		Formula:      "total_investment_euro / pv_power_kWp",
		Dependencies: []string{ParamTotalInvestment, ParamPVPower},
		Category:     CategoryFinancial,
		Priority:     PriorityLow,
		Unit:         "EUR/kWp",
	},
}

// Default returns a copy of the built-in rule table.
func Default() []CalculationRule {
	return Clone(defaultRules)
}

// Clone deep-copies a rule list.
func Clone(rules []CalculationRule) []CalculationRule {
	out := make([]CalculationRule, len(rules))
	for i, r := range rules {
		out[i] = r
		out[i].Dependencies = append([]string(nil), r.Dependencies...)
	}
	return out
}

// Keys returns the output keys of rules in order.
func Keys(rules []CalculationRule) []string {
	keys := make([]string, len(rules))
	for i, r := range rules {
		keys[i] = r.Key
	}
	return keys
}

// Validate checks that rules can be evaluated in declaration order: keys are
// unique, every formula parses, every identifier a formula uses is declared
// as a dependency, and no rule depends on its own output or on a rule
// declared after it.
func Validate(rules []CalculationRule) error {
	position := make(map[string]int, len(rules))
	for i, r := range rules {
		if strings.TrimSpace(r.Key) == "" {
			return fmt.Errorf("rule %d has an empty key", i)
		}
		if _, dup := position[r.Key]; dup {
			return fmt.Errorf("duplicate rule key %q", r.Key)
		}
		position[r.Key] = i
	}

	for i, r := range rules {
		expr, err := formula.Parse(r.Formula)
		if err != nil {
			return fmt.Errorf("rule %q: %w", r.Key, err)
		}

		declared := make(map[string]struct{}, len(r.Dependencies))
		for _, dep := range r.Dependencies {
			declared[dep] = struct{}{}
		}
		for _, ident := range expr.Identifiers() {
			if _, ok := declared[ident]; !ok {
				return fmt.Errorf("rule %q uses %q without declaring it as a dependency", r.Key, ident)
			}
		}

		for _, dep := range r.Dependencies {
			producer, isRule := position[dep]
			if !isRule {
				continue
			}
			if producer == i {
				return fmt.Errorf("rule %q depends on itself", r.Key)
			}
			if producer > i {
				return fmt.Errorf("rule %q depends on %q which is declared later", r.Key, dep)
			}
		}
	}
	return nil
}

// Sort returns the rules in an order where every producer precedes its
// consumers. Independent rules keep their declaration order. A dependency
// cycle is an error.
func Sort(rules []CalculationRule) ([]CalculationRule, error) {
	position := make(map[string]int, len(rules))
	for i, r := range rules {
		if _, dup := position[r.Key]; dup {
			return nil, fmt.Errorf("duplicate rule key %q", r.Key)
		}
		position[r.Key] = i
	}

	indegree := make([]int, len(rules))
	consumers := make([][]int, len(rules))
	for i, r := range rules {
		seen := make(map[int]struct{})
		for _, dep := range r.Dependencies {
			producer, isRule := position[dep]
			if !isRule {
				continue
			}
			if _, ok := seen[producer]; ok {
				continue
			}
			seen[producer] = struct{}{}
			indegree[i]++
			consumers[producer] = append(consumers[producer], i)
		}
	}

	var ready []int
	for i := range rules {
		if indegree[i] == 0 {
			ready = append(ready, i)
		}
	}

	sorted := make([]CalculationRule, 0, len(rules))
	for len(ready) > 0 {
		sort.Ints(ready)
		current := ready[0]
		ready = ready[1:]
		sorted = append(sorted, rules[current])
		for _, consumer := range consumers[current] {
			indegree[consumer]--
			if indegree[consumer] == 0 {
				ready = append(ready, consumer)
			}
		}
	}

	if len(sorted) != len(rules) {
		var cyclic []string
		for i, deg := range indegree {
			if deg > 0 {
				cyclic = append(cyclic, rules[i].Key)
			}
		}
		return nil, fmt.Errorf("dependency cycle between rules: %s", strings.Join(cyclic, ", "))
	}
	return Clone(sorted), nil
}
