// Package testutil provides common utility functions for testing.
package testutil

import (
	"math"

	"github.com/iwvelando/pv-scenario/internal/scenario"
)

// FindScenario finds a scenario by name in the scenarios slice.
// Returns a pointer to the scenario if found, nil otherwise.
func FindScenario(scenarios []scenario.Scenario, name string) *scenario.Scenario {
	for i := range scenarios {
		if scenarios[i].Name == name {
			return &scenarios[i]
		}
	}
	return nil
}

// MetricWithin reports whether the scenario's metric key is present and lies
// within tolerance of expected.
func MetricWithin(sc scenario.Scenario, key string, expected, tolerance float64) bool {
	v, ok := sc.Results.Value(key)
	return ok && math.Abs(v-expected) <= tolerance
}
