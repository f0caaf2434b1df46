package integration

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/iwvelando/pv-scenario/internal/config"
	"github.com/iwvelando/pv-scenario/internal/scenario"
	"github.com/iwvelando/pv-scenario/pkg/dynamicdata"
	"github.com/iwvelando/pv-scenario/pkg/output"
	"github.com/iwvelando/pv-scenario/pkg/projection"
	"github.com/iwvelando/pv-scenario/pkg/rules"
	"github.com/iwvelando/pv-scenario/pkg/storage"
	"github.com/iwvelando/pv-scenario/pkg/testutil"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// openStore wires configuration, file storage and store the same way the CLI
// does, on the real filesystem.
func openStore(t *testing.T, configPath string, registry *dynamicdata.Manager) *scenario.Store {
	t.Helper()
	logger := zap.NewNop()

	conf, err := config.LoadConfiguration(configPath)
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	if err := conf.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	st, err := storage.NewFileStorage(logger, afero.NewOsFs(), conf.Storage.StoragePath())
	if err != nil {
		t.Fatalf("NewFileStorage() error = %v", err)
	}
	store, err := scenario.NewStore(logger, st,
		scenario.WithRegistry(registry),
		scenario.WithDefaults(conf.Defaults),
	)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return store
}

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	content := "storage:\n  dir: " + filepath.Join(dir, "data") + "\n  namespace: offers\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

// TestScenarioComparison calculates three sizes of the same roof and checks
// the results against hand-computed values.
func TestScenarioComparison(t *testing.T) {
	dir := t.TempDir()
	configPath := writeConfig(t, dir)
	registry := dynamicdata.NewManager(nil)
	store := openStore(t, configPath, registry)

	sizes := []struct {
		name       string
		power      float64
		investment float64
		yield      float64
		savings    float64
		payback    float64
	}{
		{"small", 5, 9000, 4750, 1425, 6.32},
		{"seed", 10, 15000, 9500, 2850, 5.26},
		{"large", 15, 21000, 14250, 4275, 4.91},
	}

	ctx := context.Background()
	for _, size := range sizes {
		sc, err := store.CreateScenario(size.name)
		if err != nil {
			t.Fatalf("CreateScenario() error = %v", err)
		}
		if _, err := store.UpdateParameter(sc.ID, rules.ParamPVPower, size.power); err != nil {
			t.Fatalf("UpdateParameter() error = %v", err)
		}
		if _, err := store.UpdateParameter(sc.ID, rules.ParamTotalInvestment, size.investment); err != nil {
			t.Fatalf("UpdateParameter() error = %v", err)
		}
		if _, err := store.RunCalculation(ctx, sc.ID, nil); err != nil {
			t.Fatalf("RunCalculation() error = %v", err)
		}
	}

	// A second process sees exactly what the first one persisted.
	reopened := openStore(t, configPath, dynamicdata.NewManager(nil))
	scenarios := reopened.Scenarios()
	if len(scenarios) != len(sizes) {
		t.Fatalf("reloaded %d scenarios, expected %d", len(scenarios), len(sizes))
	}

	for _, size := range sizes {
		sc := testutil.FindScenario(scenarios, size.name)
		if sc == nil {
			t.Errorf("scenario %s not found after reload", size.name)
			continue
		}
		checks := []struct {
			key      string
			expected float64
		}{
			{rules.AnnualYield, size.yield},
			{rules.AnnualSavings, size.savings},
			{rules.PaybackPeriod, size.payback},
		}
		for _, c := range checks {
			if !testutil.MetricWithin(*sc, c.key, c.expected, 0.001) {
				v, _ := sc.Results.Value(c.key)
				t.Errorf("%s: %s = %v, expected %v", size.name, c.key, v, c.expected)
			}
		}
		if len(sc.Results.Cashflow) != 25 {
			t.Errorf("%s: %d cash flow years, expected 25", size.name, len(sc.Results.Cashflow))
		}
		npv, ok := sc.Results.Value(projection.KeyNPV)
		if !ok || npv <= 0 {
			t.Errorf("%s: npv = %v, expected a profitable system", size.name, npv)
		}
	}

	if _, err := os.Stat(filepath.Join(dir, "data", "offers", "pv-scenarios.json")); err != nil {
		t.Errorf("scenario file not written where configured: %v", err)
	}

	// The registry holds the values of the last run.
	if e, ok := registry.Get(rules.AnnualYield); !ok || e.Value != 14250.0 {
		t.Errorf("registry %s = %+v, expected the last run's value", rules.AnnualYield, e)
	}

	var buf bytes.Buffer
	if err := output.PrettyFormat(&buf, scenarios); err != nil {
		t.Fatalf("PrettyFormat() error = %v", err)
	}
	if got := strings.Count(buf.String(), "--- Results for scenario"); got != len(sizes) {
		t.Errorf("report has %d scenario sections, expected %d", got, len(sizes))
	}
}

// TestCalculationPerformance keeps a full run of the default rules well below
// interactive latency.
func TestCalculationPerformance(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping performance test in short mode")
	}

	store, err := scenario.NewStore(zap.NewNop(), storage.NewMemoryStorage())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	sc, err := store.CreateScenario("timing")
	if err != nil {
		t.Fatalf("CreateScenario() error = %v", err)
	}
	if _, err := store.UpdateParameter(sc.ID, rules.ParamSystemLifetime, 100); err != nil {
		t.Fatalf("UpdateParameter() error = %v", err)
	}

	const runs = 50
	start := time.Now()
	for i := 0; i < runs; i++ {
		if _, err := store.RunCalculation(context.Background(), sc.ID, nil); err != nil {
			t.Fatalf("RunCalculation() error = %v", err)
		}
	}
	perRun := time.Since(start) / runs
	t.Logf("average calculation time: %v", perRun)

	if perRun > 250*time.Millisecond {
		t.Errorf("calculation took %v per run, expected under 250ms", perRun)
	}
}

func BenchmarkRunCalculation(b *testing.B) {
	store, err := scenario.NewStore(zap.NewNop(), storage.NewMemoryStorage())
	if err != nil {
		b.Fatalf("NewStore() error = %v", err)
	}
	sc, err := store.CreateScenario("bench")
	if err != nil {
		b.Fatalf("CreateScenario() error = %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := store.RunCalculation(context.Background(), sc.ID, nil); err != nil {
			b.Fatalf("RunCalculation() error = %v", err)
		}
	}
}
