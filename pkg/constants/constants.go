// Package constants provides shared constants for the pv-scenario application.
package constants

// Financial constants
const (
	// DecimalPrecision is the precision for currency rounding (2 decimal places)
	DecimalPrecision = 100

	// PercentageMultiplier is used for percentage conversions
	PercentageMultiplier = 100.0

	// DiscountRate is the fixed yearly rate used for net present value.
	DiscountRate = 0.05

	// KgPerTon converts kilograms of CO2 into metric tons.
	KgPerTon = 1000.0
)

// System lifetime bounds in years.
const (
	MinLifetimeYears = 1
	MaxLifetimeYears = 100
)

// Output format constants
const (
	// OutputFormatPretty is the human-readable output format
	OutputFormatPretty = "pretty"

	// OutputFormatCSV is the CSV output format
	OutputFormatCSV = "csv"

	// OutputFormatYAML exports scenarios as YAML documents
	OutputFormatYAML = "yaml"
)

// Configuration file constants
const (
	// DefaultConfigFile is the default configuration file name
	DefaultConfigFile = "config.yaml"

	// EnvPrefix prefixes environment overrides, e.g. PVSCENARIO_STORAGE_DIR.
	EnvPrefix = "PVSCENARIO"
)

// Storage constants
const (
	// ScenarioStorageKey is the fixed namespace the scenario list is persisted under.
	ScenarioStorageKey = "pv-scenarios"

	// DefaultStorageDir is where scenario files live when nothing is configured.
	DefaultStorageDir = ".pv-scenario"
)

// Validation constants
const (
	// CurrencyTolerance is the tolerance for currency comparisons (1 cent)
	CurrencyTolerance = 0.01

	// IRRTolerance bounds the bisection search for the true internal rate of return.
	IRRTolerance = 1e-7

	// IRRMaxIterations caps the bisection search.
	IRRMaxIterations = 200
)
