package formula

import (
	"fmt"
	"sync"

	"github.com/iwvelando/pv-scenario/pkg/mathutil"
	"go.uber.org/zap"
)

// Evaluator resolves rule formulas against a flat variable context. Parsed
// expressions are cached by source text, so an Evaluator is meant to be
// shared and is safe for concurrent use.
type Evaluator struct {
	logger *zap.Logger

	mu    sync.Mutex
	cache map[string]*Expression
}

// NewEvaluator creates a new evaluator with the given logger.
// If logger is nil, it will use a no-op logger to prevent panics.
func NewEvaluator(logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{
		logger: logger,
		cache:  make(map[string]*Expression),
	}
}

// Evaluate computes the formula of the named rule and rounds the result to
// two decimals. Any failure is logged and yields 0 so that the remaining
// rules of a run can still be evaluated.
func (ev *Evaluator) Evaluate(name, expr string, parameters, prior map[string]float64) float64 {
	value, err := ev.EvaluateStrict(expr, parameters, prior)
	if err != nil {
		ev.logger.Warn("formula evaluation failed, using 0",
			zap.String("op", "formula.Evaluate"),
			zap.String("rule", name),
			zap.String("formula", expr),
			zap.Error(err),
		)
		return 0
	}
	return value
}

// EvaluateStrict is Evaluate without the fallback: the rounded value or the
// reason it could not be computed.
func (ev *Evaluator) EvaluateStrict(expr string, parameters, prior map[string]float64) (float64, error) {
	compiled, err := ev.compile(expr)
	if err != nil {
		return 0, err
	}

	value, err := compiled.Eval(Context(parameters, prior))
	if err != nil {
		return 0, fmt.Errorf("evaluate %q: %w", expr, err)
	}
	return mathutil.Round(value), nil
}

func (ev *Evaluator) compile(expr string) (*Expression, error) {
	ev.mu.Lock()
	defer ev.mu.Unlock()

	if compiled, ok := ev.cache[expr]; ok {
		return compiled, nil
	}
	compiled, err := Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", expr, err)
	}
	ev.cache[expr] = compiled
	return compiled, nil
}

// Context merges the given maps into a fresh variable context. Later maps win
// on key collisions, so prior results shadow raw parameters.
func Context(layers ...map[string]float64) map[string]float64 {
	size := 0
	for _, layer := range layers {
		size += len(layer)
	}
	vars := make(map[string]float64, size)
	for _, layer := range layers {
		for k, v := range layer {
			vars[k] = v
		}
	}
	return vars
}
