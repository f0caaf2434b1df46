// Package projection projects the yearly cash flow of a PV system over its
// lifetime and derives the extended financial and environmental metrics.
package projection

import (
	"errors"
	"fmt"
	"math"

	"github.com/iwvelando/pv-scenario/pkg/constants"
	"github.com/iwvelando/pv-scenario/pkg/mathutil"
	"github.com/iwvelando/pv-scenario/pkg/rules"
	"go.uber.org/zap"
)

// Keys of the extended metrics.
const (
	KeyCashflow      = "cashflow_analysis"
	KeyNPV           = "npv"
	KeyIRR           = "irr_percent"
	KeyTrueIRR       = "true_irr_percent"
	KeyLifetimeCO2Kg = "lifetime_co2_savings_kg"
	KeyCO2Tons       = "co2_savings_tons"
)

// ErrMissingInput is returned when a required parameter or basic metric is absent.
var ErrMissingInput = errors.New("missing input")

// ErrInvalidInput is returned for non-finite or out-of-range inputs.
var ErrInvalidInput = errors.New("invalid input")

// CashflowYear is one row of the cash flow analysis.
type CashflowYear struct {
	Year        int     `json:"year" yaml:"year"`
	Yield       float64 `json:"yield" yaml:"yield"`
	Savings     float64 `json:"savings" yaml:"savings"`
	Maintenance float64 `json:"maintenance" yaml:"maintenance"`
	Net         float64 `json:"net" yaml:"net"`
}

// Metrics holds the extended metrics of one projection. Fields that could not
// be computed stay nil.
type Metrics struct {
	Cashflow      []CashflowYear
	NPV           *float64
	IRRPercent    *float64
	TrueIRR       *float64
	LifetimeCO2Kg *float64
	CO2Tons       *float64
}

// Values returns the scalar metrics that were computed, keyed by metric name.
func (m Metrics) Values() map[string]float64 {
	values := make(map[string]float64)
	for key, v := range map[string]*float64{
		KeyNPV:           m.NPV,
		KeyIRR:           m.IRRPercent,
		KeyTrueIRR:       m.TrueIRR,
		KeyLifetimeCO2Kg: m.LifetimeCO2Kg,
		KeyCO2Tons:       m.CO2Tons,
	} {
		if v != nil {
			values[key] = *v
		}
	}
	return values
}

// Projector computes extended metrics.
type Projector struct {
	logger *zap.Logger
}

// NewProjector creates a new projector with the given logger.
// If logger is nil, it will use a no-op logger to prevent panics.
func NewProjector(logger *zap.Logger) *Projector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Projector{logger: logger}
}

// Project runs the yearly projection. A missing or invalid input ends the
// projection early; whatever was computed up to that point is returned and
// the cause is logged.
func (p *Projector) Project(parameters, basic map[string]float64) Metrics {
	var m Metrics
	if err := p.project(parameters, basic, &m); err != nil {
		p.logger.Warn("projection incomplete, returning partial metrics",
			zap.String("op", "projection.Project"),
			zap.Error(err),
		)
	}
	return m
}

func (p *Projector) project(parameters, basic map[string]float64, m *Metrics) error {
	in := inputs{parameters: parameters, basic: basic}

	lifetime, err := in.lifetime()
	if err != nil {
		return err
	}
	annualYield := in.basicValue(rules.AnnualYield)
	degradation := in.param(rules.ParamAnnualDegradation)
	price := in.param(rules.ParamElectricityPrice)
	priceIncrease := in.param(rules.ParamElectricityPriceChange)
	investment := in.param(rules.ParamTotalInvestment)
	maintenancePercent := in.param(rules.ParamMaintenanceCost)
	if in.err != nil {
		return in.err
	}

	maintenance := mathutil.ApplyPercentage(investment, maintenancePercent)
	cashflow := make([]CashflowYear, 0, lifetime)
	nets := make([]float64, 0, lifetime)
	npv := -investment
	for year := 1; year <= lifetime; year++ {
		degradationFactor := mathutil.GrowthFactor(-degradation, year-1)
		priceFactor := mathutil.GrowthFactor(priceIncrease, year-1)

		yearlyYield := annualYield * degradationFactor
		yearlySavings := yearlyYield * price * priceFactor
		net := yearlySavings - maintenance

		if !mathutil.IsFinite(net) {
			return fmt.Errorf("%w: non-finite cash flow in year %d", ErrInvalidInput, year)
		}

		cashflow = append(cashflow, CashflowYear{
			Year:        year,
			Yield:       mathutil.RoundWhole(yearlyYield),
			Savings:     mathutil.RoundWhole(yearlySavings),
			Maintenance: mathutil.RoundWhole(maintenance),
			Net:         mathutil.RoundWhole(net),
		})
		nets = append(nets, net)
		npv += net * mathutil.DiscountFactor(constants.DiscountRate, year)
	}
	m.Cashflow = cashflow

	if !mathutil.IsFinite(npv) {
		return fmt.Errorf("%w: non-finite net present value", ErrInvalidInput)
	}
	m.NPV = ptr(mathutil.RoundWhole(npv))

	annualSavings := in.basicValue(rules.AnnualSavings)
	if in.err != nil {
		return in.err
	}
	if mathutil.IsZero(investment) {
		// No rate of return without an investment; CO2 is still projected.
		p.logger.Warn("skipping rate of return, investment is zero",
			zap.String("op", "projection.Project"),
			zap.String("parameter", rules.ParamTotalInvestment),
		)
	} else {
		m.IRRPercent = ptr(mathutil.Round(mathutil.CalculatePercentage(annualSavings, investment)))
		if rate, ok := IRR(-investment, nets); ok {
			m.TrueIRR = ptr(mathutil.Round(rate * constants.PercentageMultiplier))
		}
	}

	co2PerYear := in.basicValue(rules.CO2SavingsPerYear)
	if in.err != nil {
		return in.err
	}
	lifetimeCO2 := mathutil.RoundWhole(co2PerYear * float64(lifetime))
	m.LifetimeCO2Kg = ptr(lifetimeCO2)
	m.CO2Tons = ptr(mathutil.Round(lifetimeCO2 / constants.KgPerTon))

	return nil
}

// IRR finds the rate at which the net present value of initial followed by
// the yearly flows is zero, searching by bisection in (-99 %, 1000 %]. The
// second return value is false when no sign change exists in that interval.
func IRR(initial float64, flows []float64) (float64, bool) {
	npvAt := func(rate float64) float64 {
		total := initial
		for i, flow := range flows {
			total += flow / math.Pow(1+rate, float64(i+1))
		}
		return total
	}

	low, high := -0.99, 10.0
	fLow, fHigh := npvAt(low), npvAt(high)
	if !mathutil.IsFinite(fLow) || !mathutil.IsFinite(fHigh) || fLow*fHigh > 0 {
		return 0, false
	}
	for i := 0; i < constants.IRRMaxIterations; i++ {
		mid := (low + high) / 2
		fMid := npvAt(mid)
		if mathutil.WithinTolerance(fMid, 0, constants.IRRTolerance) || (high-low)/2 < constants.IRRTolerance {
			return mid, true
		}
		if fLow*fMid < 0 {
			high = mid
		} else {
			low, fLow = mid, fMid
		}
	}
	return (low + high) / 2, true
}

func ptr(v float64) *float64 {
	return &v
}

// inputs reads required values and remembers the first failure so a block
// of lookups can be checked once.
type inputs struct {
	parameters map[string]float64
	basic      map[string]float64
	err        error
}

func (in *inputs) lookup(source map[string]float64, key string) float64 {
	if in.err != nil {
		return 0
	}
	v, ok := source[key]
	if !ok {
		in.err = fmt.Errorf("%w: %s", ErrMissingInput, key)
		return 0
	}
	if !mathutil.IsFinite(v) {
		in.err = fmt.Errorf("%w: %s is not finite", ErrInvalidInput, key)
		return 0
	}
	return v
}

func (in *inputs) param(key string) float64 {
	return in.lookup(in.parameters, key)
}

func (in *inputs) basicValue(key string) float64 {
	return in.lookup(in.basic, key)
}

func (in *inputs) lifetime() (int, error) {
	years := in.param(rules.ParamSystemLifetime)
	if in.err != nil {
		return 0, in.err
	}
	if years != math.Trunc(years) {
		return 0, fmt.Errorf("%w: %s must be a whole number, got %v", ErrInvalidInput, rules.ParamSystemLifetime, years)
	}
	if years < constants.MinLifetimeYears {
		return 0, fmt.Errorf("%w: %s must be at least %d, got %v", ErrInvalidInput,
			rules.ParamSystemLifetime, constants.MinLifetimeYears, years)
	}
	return int(years), nil
}
