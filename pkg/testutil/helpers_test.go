package testutil

import (
	"testing"

	"github.com/iwvelando/pv-scenario/internal/scenario"
)

func TestFindScenario(t *testing.T) {
	scenarios := []scenario.Scenario{
		{ID: "1", Name: "Scenario A"},
		{ID: "2", Name: "Scenario B"},
		{ID: "3", Name: "Another Scenario"},
	}

	tests := []struct {
		name       string
		searchName string
		expectedID string
	}{
		{"Find existing scenario A", "Scenario A", "1"},
		{"Find existing scenario B", "Scenario B", "2"},
		{"Scenario not found", "Missing", ""},
		{"Case sensitive", "scenario a", ""},
		{"Empty name", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FindScenario(scenarios, tt.searchName)
			if tt.expectedID == "" {
				if got != nil {
					t.Errorf("FindScenario() = %v, expected nil", got.ID)
				}
				return
			}
			if got == nil || got.ID != tt.expectedID {
				t.Errorf("FindScenario() = %v, expected ID %s", got, tt.expectedID)
			}
		})
	}

	if FindScenario(nil, "Scenario A") != nil {
		t.Error("FindScenario(nil) expected nil")
	}
}

func TestMetricWithin(t *testing.T) {
	sc := scenario.Scenario{Results: scenario.Results{Metrics: map[string]float64{"roi_percentage": 19.004}}}

	tests := []struct {
		key       string
		expected  float64
		tolerance float64
		want      bool
	}{
		{"roi_percentage", 19, 0.01, true},
		{"roi_percentage", 19, 0.001, false},
		{"npv", 0, 1, false},
	}
	for _, tt := range tests {
		if got := MetricWithin(sc, tt.key, tt.expected, tt.tolerance); got != tt.want {
			t.Errorf("MetricWithin(%s, %v, %v) = %v, expected %v", tt.key, tt.expected, tt.tolerance, got, tt.want)
		}
	}
}
