// Package output provides utilities for formatting and displaying scenario results.
package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/iwvelando/pv-scenario/internal/scenario"
	"github.com/iwvelando/pv-scenario/pkg/format"
	"github.com/iwvelando/pv-scenario/pkg/projection"
	"github.com/iwvelando/pv-scenario/pkg/rules"
	"gopkg.in/yaml.v3"
)

const timestampLayout = "2006-01-02 15:04:05"

// metricLine describes how one result key is printed.
type metricLine struct {
	key   string
	label string
	unit  string
}

func metricLines() []metricLine {
	var lines []metricLine
	for _, rule := range rules.Default() {
		lines = append(lines, metricLine{key: rule.Key, label: rule.Label, unit: rule.Unit})
	}
	return append(lines,
		metricLine{projection.KeyNPV, "Net present value (5 %)", "EUR"},
		metricLine{projection.KeyIRR, "Internal rate of return (simplified)", "%"},
		metricLine{projection.KeyTrueIRR, "Internal rate of return", "%"},
		metricLine{projection.KeyLifetimeCO2Kg, "Lifetime CO2 savings", "kg"},
		metricLine{projection.KeyCO2Tons, "Lifetime CO2 savings", "t"},
	)
}

func formatValue(value float64, unit string) string {
	switch unit {
	case "EUR", "EUR/kWp":
		s := format.Euro(value)
		if unit == "EUR/kWp" {
			s += "/kWp"
		}
		return s
	case "%":
		return format.Percent(value)
	case "kWh", "kg":
		return format.Number(value, 0) + " " + unit
	case "":
		return format.Number(value, 2)
	default:
		return format.Number(value, 2) + " " + unit
	}
}

// PrettyFormat writes a human-readable rather than machine-readable report.
func PrettyFormat(w io.Writer, scenarios []scenario.Scenario) error {
	lines := metricLines()
	for i, sc := range scenarios {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		if err := prettyScenario(w, sc, lines); err != nil {
			return err
		}
	}
	return nil
}

func prettyScenario(w io.Writer, sc scenario.Scenario, lines []metricLine) error {
	ew := &errWriter{w: w}

	ew.printf("--- Results for scenario %s (%s) ---\n", sc.Name, sc.ID)
	if sc.Description != "" {
		ew.printf("%s\n", sc.Description)
	}
	if !sc.Enabled {
		ew.printf("(disabled)\n")
	}

	ew.printf("\nParameter                                | Value\n")
	ew.printf("_________                                | _____\n")
	keys := make([]string, 0, len(sc.Parameters))
	for key := range sc.Parameters {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		ew.printf("%-40s | %s\n", key, format.Number(sc.Parameters[key], 2))
	}

	if !sc.Calculated() {
		ew.printf("\nNot calculated yet.\n")
		return ew.err
	}

	ew.printf("\nMetric                                   | Value\n")
	ew.printf("______                                   | _____\n")
	shown := make(map[string]bool, len(lines))
	for _, line := range lines {
		shown[line.key] = true
		value, ok := sc.Results.Value(line.key)
		if !ok {
			continue
		}
		ew.printf("%-40s | %s\n", line.label, formatValue(value, line.unit))
	}
	for _, key := range sc.Results.Keys() {
		if shown[key] || key == projection.KeyCashflow {
			continue
		}
		value, _ := sc.Results.Value(key)
		ew.printf("%-40s | %s\n", key, format.Number(value, 2))
	}

	if len(sc.Results.Cashflow) > 0 {
		ew.printf("\nYear | Yield (kWh) | Savings        | Maintenance    | Net\n")
		ew.printf("____ | ___________ | _______        | ___________    | ___\n")
		for _, year := range sc.Results.Cashflow {
			ew.printf("%4d | %11s | %14s | %14s | %s\n",
				year.Year,
				format.Number(year.Yield, 0),
				format.Euro(year.Savings),
				format.Euro(year.Maintenance),
				format.Euro(year.Net),
			)
		}
	}

	ew.printf("\nCalculated at %s\n", sc.LastCalculated.Format(timestampLayout))
	return ew.err
}

// CsvFormat writes the cash flow analysis of one scenario in comma-separated
// value format. The cumulative column starts at the negative investment.
func CsvFormat(w io.Writer, sc scenario.Scenario) error {
	cw := csv.NewWriter(w)
	header := []string{"year", "yield_kwh", "savings_euro", "maintenance_euro", "net_euro", "cumulative_euro"}
	if err := cw.Write(header); err != nil {
		return err
	}

	cumulative := -sc.Parameters[rules.ParamTotalInvestment]
	for _, year := range sc.Results.Cashflow {
		cumulative += year.Net
		record := []string{
			strconv.Itoa(year.Year),
			strconv.FormatFloat(year.Yield, 'f', 2, 64),
			strconv.FormatFloat(year.Savings, 'f', 2, 64),
			strconv.FormatFloat(year.Maintenance, 'f', 2, 64),
			strconv.FormatFloat(year.Net, 'f', 2, 64),
			strconv.FormatFloat(cumulative, 'f', 2, 64),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// YAMLFormat writes the scenarios, parameters and results included, as one
// YAML document.
func YAMLFormat(w io.Writer, scenarios []scenario.Scenario) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(scenarios); err != nil {
		return fmt.Errorf("failed to encode scenarios: %w", err)
	}
	return enc.Close()
}

// errWriter keeps the first write error so a report can be printed without
// checking every line.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(layout string, args ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, layout, args...)
}
