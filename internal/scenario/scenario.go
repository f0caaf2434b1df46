// Package scenario defines PV scenarios and the store that edits, calculates
// and persists them.
package scenario

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/iwvelando/pv-scenario/pkg/projection"
	"github.com/iwvelando/pv-scenario/pkg/rules"
)

// Scenario is a named parameter set together with its last computed results.
type Scenario struct {
	ID             string             `json:"id" yaml:"id"`
	Name           string             `json:"name" yaml:"name"`
	Description    string             `json:"description" yaml:"description"`
	Enabled        bool               `json:"enabled" yaml:"enabled"`
	Parameters     map[string]float64 `json:"parameters" yaml:"parameters"`
	Results        Results            `json:"results" yaml:"results"`
	CreatedAt      time.Time          `json:"createdAt" yaml:"createdAt"`
	LastCalculated *time.Time         `json:"lastCalculated,omitempty" yaml:"lastCalculated,omitempty"`
}

// Calculated reports whether the scenario has been calculated at least once.
func (s Scenario) Calculated() bool {
	return s.LastCalculated != nil
}

// Clone returns a deep copy.
func (s Scenario) Clone() Scenario {
	out := s
	out.Parameters = cloneValues(s.Parameters)
	out.Results = s.Results.Clone()
	if s.LastCalculated != nil {
		t := *s.LastCalculated
		out.LastCalculated = &t
	}
	return out
}

// Results holds every metric of one calculation run. On disk it is a single
// flat object: the scalar metrics by key plus the cash flow table under
// "cashflow_analysis".
type Results struct {
	Metrics  map[string]float64
	Cashflow []projection.CashflowYear
}

// Empty reports whether nothing has been calculated.
func (r Results) Empty() bool {
	return len(r.Metrics) == 0 && len(r.Cashflow) == 0
}

// Value returns the scalar metric stored under key.
func (r Results) Value(key string) (float64, bool) {
	v, ok := r.Metrics[key]
	return v, ok
}

// Keys returns all result keys in sorted order, including the cash flow key
// when a cash flow is present.
func (r Results) Keys() []string {
	keys := make([]string, 0, len(r.Metrics)+1)
	for k := range r.Metrics {
		keys = append(keys, k)
	}
	if r.Cashflow != nil {
		keys = append(keys, projection.KeyCashflow)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a deep copy.
func (r Results) Clone() Results {
	out := Results{Metrics: cloneValues(r.Metrics)}
	if r.Cashflow != nil {
		out.Cashflow = append([]projection.CashflowYear(nil), r.Cashflow...)
	}
	return out
}

func (r Results) flatten() map[string]any {
	flat := make(map[string]any, len(r.Metrics)+1)
	for k, v := range r.Metrics {
		flat[k] = v
	}
	if r.Cashflow != nil {
		flat[projection.KeyCashflow] = r.Cashflow
	}
	return flat
}

// MarshalJSON implements json.Marshaler.
func (r Results) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.flatten())
}

// MarshalYAML implements yaml.Marshaler.
func (r Results) MarshalYAML() (interface{}, error) {
	return r.flatten(), nil
}

// UnmarshalJSON implements json.Unmarshaler. Null metrics are skipped.
func (r *Results) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to decode results: %w", err)
	}

	out := Results{}
	for key, value := range raw {
		if string(value) == "null" {
			continue
		}
		if key == projection.KeyCashflow {
			if err := json.Unmarshal(value, &out.Cashflow); err != nil {
				return fmt.Errorf("failed to decode %s: %w", key, err)
			}
			continue
		}
		var v float64
		if err := json.Unmarshal(value, &v); err != nil {
			return fmt.Errorf("failed to decode result %s: %w", key, err)
		}
		if out.Metrics == nil {
			out.Metrics = make(map[string]float64)
		}
		out.Metrics[key] = v
	}
	*r = out
	return nil
}

// DefaultParameters returns the parameter set new scenarios start with.
func DefaultParameters() map[string]float64 {
	return map[string]float64{
		rules.ParamPVPower:                10.0,
		rules.ParamSpecificYield:          950,
		rules.ParamElectricityPrice:       0.30,
		rules.ParamTotalInvestment:        15000,
		rules.ParamCO2Factor:              0.4,
		rules.ParamSystemLifetime:         25,
		rules.ParamAnnualDegradation:      0.5,
		rules.ParamMaintenanceCost:        1.0,
		rules.ParamElectricityPriceChange: 3.0,
	}
}

func cloneValues(in map[string]float64) map[string]float64 {
	if in == nil {
		return nil
	}
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
