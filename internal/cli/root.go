// Package cli implements the pv-scenario command line interface.
package cli

import (
	"fmt"

	"github.com/iwvelando/pv-scenario/internal/config"
	"github.com/iwvelando/pv-scenario/internal/scenario"
	"github.com/iwvelando/pv-scenario/pkg/constants"
	"github.com/iwvelando/pv-scenario/pkg/dynamicdata"
	"github.com/iwvelando/pv-scenario/pkg/storage"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app carries what every subcommand needs once the root command has loaded
// the configuration.
type app struct {
	fs afero.Fs

	configPath   string
	logLevel     string
	outputFormat string

	conf     *config.Configuration
	logger   *zap.Logger
	registry *dynamicdata.Manager
	store    *scenario.Store
}

// NewRootCmd creates the root Cobra command working on the local filesystem.
func NewRootCmd() *cobra.Command {
	return NewRootCmdWithFs(afero.NewOsFs())
}

// NewRootCmdWithFs creates the root command on the given filesystem. Config
// and scenario files are both read from fs.
func NewRootCmdWithFs(fs afero.Fs) *cobra.Command {
	a := &app{fs: fs}

	cmd := &cobra.Command{
		Use:   "pv-scenario",
		Short: "Compare the economics of photovoltaic system scenarios",
		Long: `pv-scenario keeps a list of PV system scenarios, calculates yield,
savings, payback, return on investment and CO2 savings for each of them and
projects their cash flow over the system lifetime.`,
		Example:           rootCmdExample,
		SilenceUsage:      true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error { return a.setup() },
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&a.configPath, "config", constants.DefaultConfigFile, "path to configuration file")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&a.outputFormat, "output-format", "", "type of output override: pretty, csv, yaml")

	cmd.AddCommand(
		a.newCreateCmd(),
		a.newListCmd(),
		a.newShowCmd(),
		a.newSetCmd(),
		a.newRunCmd(),
		a.newDeleteCmd(),
		a.newDuplicateCmd(),
		a.newRulesCmd(),
	)
	return cmd
}

const rootCmdExample = `  # Create a scenario with the default parameters
  pv-scenario create "South roof"

  # Change parameters
  pv-scenario set <id> pv_power_kWp=12.5 total_investment_euro=18000

  # Calculate and print the results
  pv-scenario run <id>

  # Export the cash flow of one scenario
  pv-scenario show <id> --output-format csv`

// setup loads the configuration and wires logger, storage and store.
func (a *app) setup() error {
	conf, err := config.LoadConfigurationFs(a.fs, a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration at %s: %w", a.configPath, err)
	}
	if a.outputFormat != "" {
		conf.Output.Format = a.outputFormat
	}
	if err := conf.Validate(); err != nil {
		return err
	}

	logger, err := initializeLogger(conf.Logging, a.logLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	for _, warning := range conf.ValidateConfiguration() {
		logger.Warn("Configuration warning: "+warning,
			zap.String("op", "cli.setup"),
		)
	}

	st, err := storage.NewFileStorage(logger, a.fs, conf.Storage.StoragePath())
	if err != nil {
		return err
	}

	registry := dynamicdata.NewManager(logger)
	store, err := scenario.NewStore(logger, st,
		scenario.WithRegistry(registry),
		scenario.WithDefaults(conf.Defaults),
	)
	if err != nil {
		return err
	}

	a.conf = conf
	a.logger = logger
	a.registry = registry
	a.store = store
	return nil
}
