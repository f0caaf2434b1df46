package scenario

import (
	"context"
	"fmt"

	"github.com/iwvelando/pv-scenario/pkg/dynamicdata"
	"github.com/iwvelando/pv-scenario/pkg/projection"
	"go.uber.org/zap"
)

// extendedMetadata describes the projector's metrics for the registry, in
// the order they are registered.
var extendedMetadata = []struct {
	key  string
	meta dynamicdata.Metadata
}{
	{projection.KeyCashflow, dynamicdata.Metadata{
		Category: "financial", Label: "Cash flow analysis", DataType: "array", Priority: "medium",
		Description: "Yearly yield, savings, maintenance and net cash flow over the system lifetime",
	}},
	{projection.KeyNPV, dynamicdata.Metadata{
		Category: "financial", Label: "Net present value", DataType: "currency", Priority: "high",
		Description: "Discounted at 5 % per year",
	}},
	{projection.KeyIRR, dynamicdata.Metadata{
		Category: "financial", Label: "Internal rate of return (simplified)", DataType: "percentage", Priority: "medium",
		Description: "Annual savings relative to the investment",
	}},
	{projection.KeyTrueIRR, dynamicdata.Metadata{
		Category: "financial", Label: "Internal rate of return", DataType: "percentage", Priority: "low",
		Description: "Rate at which the projected cash flow has a net present value of zero",
	}},
	{projection.KeyLifetimeCO2Kg, dynamicdata.Metadata{
		Category: "environmental", Label: "Lifetime CO2 savings", DataType: "number", Priority: "medium",
	}},
	{projection.KeyCO2Tons, dynamicdata.Metadata{
		Category: "environmental", Label: "Lifetime CO2 savings in tons", DataType: "number", Priority: "high",
	}},
}

// Calculating reports whether a run is in flight for the scenario.
func (s *Store) Calculating(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.running[id]
	return ok
}

// CancelCalculation stops the run in flight for the scenario. Its results are
// discarded. It reports false when nothing was running.
func (s *Store) CancelCalculation(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cancel, ok := s.running[id]
	if ok {
		cancel()
	}
	return ok
}

// RunCalculation evaluates every rule over the scenario's parameters, then
// projects the extended metrics, and stores the merged results together with
// the calculation time. A scenario can only have one run in flight. If the
// run fails or is cancelled, the previous results stay in place.
func (s *Store) RunCalculation(ctx context.Context, id string, progress ProgressFunc) (Scenario, error) {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return Scenario{}, fmt.Errorf("%w: %s", ErrScenarioNotFound, id)
	}
	if _, busy := s.running[id]; busy {
		s.mu.Unlock()
		return Scenario{}, fmt.Errorf("%w: %s", ErrCalculationInProgress, id)
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.running[id] = cancel
	params := cloneValues(s.scenarios[idx].Parameters)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.running, id)
		s.mu.Unlock()
		cancel()
	}()

	results, err := s.calculate(runCtx, params, progress)
	if err != nil {
		s.logger.Error("scenario calculation failed, keeping previous results",
			zap.String("op", "scenario.RunCalculation"),
			zap.String("scenario", id),
			zap.Error(err),
		)
		return Scenario{}, err
	}

	calculated, err := s.commitResults(runCtx, id, results)
	if err != nil {
		return Scenario{}, err
	}

	// Outside the lock, so a registrar may read the store.
	s.publish(results)

	s.logger.Info("scenario calculated",
		zap.String("op", "scenario.RunCalculation"),
		zap.String("scenario", id),
		zap.Int("metrics", len(results.Metrics)),
		zap.Int("cashflowYears", len(results.Cashflow)),
	)
	return calculated, nil
}

// commitResults stores the results of a finished run unless it was cancelled
// or the scenario was deleted meanwhile.
func (s *Store) commitResults(ctx context.Context, id string, results Results) (Scenario, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Scenario{}, fmt.Errorf("calculation of %s cancelled: %w", id, err)
	}
	idx := s.indexLocked(id)
	if idx < 0 {
		return Scenario{}, fmt.Errorf("%w: %s", ErrScenarioNotFound, id)
	}

	next := s.cloneListLocked()
	calculatedAt := s.now()
	next[idx].Results = results
	next[idx].LastCalculated = &calculatedAt
	if err := s.commitLocked(next, "scenario.RunCalculation"); err != nil {
		return Scenario{}, err
	}
	return next[idx].Clone(), nil
}

// calculate runs the rule table and the projector. The context is checked
// between rules; a panic anywhere in the pipeline is turned into an error.
func (s *Store) calculate(ctx context.Context, params map[string]float64, progress ProgressFunc) (results Results, err error) {
	defer func() {
		if r := recover(); r != nil {
			results = Results{}
			err = fmt.Errorf("calculation aborted: %v", r)
		}
	}()

	values := make(map[string]float64, len(s.rules)+len(extendedMetadata))
	total := len(s.rules)
	for i, rule := range s.rules {
		if err := ctx.Err(); err != nil {
			return Results{}, fmt.Errorf("calculation cancelled before rule %s: %w", rule.Key, err)
		}
		values[rule.Key] = s.evaluator.Evaluate(rule.Key, rule.Formula, params, values)
		if progress != nil {
			progress(float64(i+1) / float64(total))
		}
	}
	if err := ctx.Err(); err != nil {
		return Results{}, fmt.Errorf("calculation cancelled before projection: %w", err)
	}

	metrics := s.projector.Project(params, values)
	for k, v := range metrics.Values() {
		values[k] = v
	}
	return Results{Metrics: values, Cashflow: metrics.Cashflow}, nil
}

func (s *Store) publish(results Results) {
	if s.registry == nil {
		return
	}
	for _, rule := range s.rules {
		v, ok := results.Metrics[rule.Key]
		if !ok {
			continue
		}
		s.registry.RegisterValue(rule.Key, v, dynamicdata.Metadata{
			Category:    string(rule.Category),
			Label:       rule.Label,
			DataType:    "number",
			Priority:    string(rule.Priority),
			Description: rule.Formula,
		})
	}
	for _, ext := range extendedMetadata {
		if ext.key == projection.KeyCashflow {
			if results.Cashflow != nil {
				s.registry.RegisterValue(ext.key, append([]projection.CashflowYear(nil), results.Cashflow...), ext.meta)
			}
			continue
		}
		if v, ok := results.Metrics[ext.key]; ok {
			s.registry.RegisterValue(ext.key, v, ext.meta)
		}
	}
}
