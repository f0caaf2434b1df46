// Package config defines the data structures related to configuration and
// includes functions for loading and validating it.
package config

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/iwvelando/pv-scenario/internal/scenario"
	"github.com/iwvelando/pv-scenario/pkg/constants"
	"github.com/iwvelando/pv-scenario/pkg/validation"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// Configuration holds all configuration for pv-scenario.
type Configuration struct {
	Storage  StorageConfig      `yaml:"storage,omitempty"`
	Logging  LoggingConfig      `yaml:"logging,omitempty"`
	Output   OutputConfig       `yaml:"output,omitempty"`
	Progress ProgressConfig     `yaml:"progress,omitempty"`
	Defaults map[string]float64 `yaml:"defaults,omitempty"` // overrides for new scenarios
}

// StorageConfig holds where scenarios are persisted.
type StorageConfig struct {
	Dir       string `yaml:"dir,omitempty"`
	Namespace string `yaml:"namespace,omitempty"` // optional subdirectory of Dir
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty"`      // debug, info, warn, error
	Format     string `yaml:"format,omitempty"`     // json, console
	OutputFile string `yaml:"outputFile,omitempty"` // optional file output
}

// OutputConfig holds output format configuration options
type OutputConfig struct {
	Format string `yaml:"format,omitempty"` // pretty, csv, yaml
}

// ProgressConfig toggles the progress bar of the run command.
type ProgressConfig struct {
	Enabled bool `yaml:"enabled"`
}

// StoragePath returns the directory scenario documents are written to.
func (s StorageConfig) StoragePath() string {
	if s.Namespace == "" {
		return s.Dir
	}
	return filepath.Join(s.Dir, s.Namespace)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("storage.dir", constants.DefaultStorageDir)
	v.SetDefault("storage.namespace", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.outputFile", "")
	v.SetDefault("output.format", constants.OutputFormatPretty)
	v.SetDefault("progress.enabled", true)
}

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// configuration there. A missing file yields the built-in defaults.
func LoadConfiguration(configPath string) (*Configuration, error) {
	return LoadConfigurationFs(afero.NewOsFs(), configPath)
}

// LoadConfigurationFs is LoadConfiguration on an arbitrary filesystem.
func LoadConfigurationFs(fs afero.Fs, configPath string) (*Configuration, error) {
	v := viper.New()
	v.SetFs(fs)
	setDefaults(v)

	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		exists, err := afero.Exists(fs, configPath)
		if err != nil {
			return nil, fmt.Errorf("error reading config file, %w", err)
		}
		if exists {
			v.SetConfigFile(configPath)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("error reading config file, %w", err)
			}
		}
	}

	var configuration Configuration
	if err := v.Unmarshal(&configuration); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %w", err)
	}
	configuration.Defaults = canonicalParameters(configuration.Defaults)

	return &configuration, nil
}

// canonicalParameters restores the spelling of known parameter keys, which
// viper lower-cases when reading nested maps.
func canonicalParameters(in map[string]float64) map[string]float64 {
	if len(in) == 0 {
		return nil
	}
	known := scenario.DefaultParameters()
	out := make(map[string]float64, len(in))
	for key, value := range in {
		for name := range known {
			if strings.EqualFold(name, key) {
				key = name
				break
			}
		}
		out[key] = value
	}
	return out
}

// Validate checks the configuration for values the application cannot run
// with.
func (c *Configuration) Validate() error {
	if strings.TrimSpace(c.Storage.Dir) == "" {
		return fmt.Errorf("storage.dir must not be empty")
	}
	if strings.ContainsAny(c.Storage.Namespace, `/\`) || c.Storage.Namespace == ".." {
		return fmt.Errorf("storage.namespace %q must be a single directory name", c.Storage.Namespace)
	}
	if err := validation.ValidateOutputFormat(c.Output.Format); err != nil {
		return err
	}
	for key, value := range c.Defaults {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return fmt.Errorf("defaults.%s is not a finite number", key)
		}
	}
	return nil
}

// ValidateConfiguration returns warnings about the parameter set new
// scenarios will start with.
func (c *Configuration) ValidateConfiguration() []string {
	params := scenario.DefaultParameters()
	for key, value := range c.Defaults {
		params[key] = value
	}
	return validation.ValidateParameters(params)
}
