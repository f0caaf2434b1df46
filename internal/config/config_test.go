package config

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/iwvelando/pv-scenario/pkg/constants"
	"github.com/iwvelando/pv-scenario/pkg/rules"
	"github.com/spf13/afero"
)

const exampleConfig = `
storage:
  dir: /var/lib/pv
  namespace: customer-42
logging:
  level: debug
  format: console
  outputFile: /var/log/pv.log
output:
  format: csv
progress:
  enabled: false
defaults:
  pv_power_kWp: 7.5
  electricity_price_per_kwh: 0.35
`

func writeConfig(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	if err := afero.WriteFile(fs, path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func TestLoadConfiguration(t *testing.T) {
	tests := []struct {
		name       string
		configPath string
		wantError  bool
	}{
		{
			name:       "Non-existent config file falls back to defaults",
			configPath: "nonexistent.yaml",
			wantError:  false,
		},
		{
			name:       "No config file",
			configPath: "",
			wantError:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config, err := LoadConfigurationFs(afero.NewMemMapFs(), tt.configPath)
			if tt.wantError {
				if err == nil {
					t.Errorf("LoadConfiguration() expected error but got none")
				}
				return
			}
			if err != nil {
				t.Errorf("LoadConfiguration() error = %v", err)
				return
			}
			if config == nil {
				t.Fatal("LoadConfiguration() returned nil config")
			}
			if config.Storage.Dir != constants.DefaultStorageDir {
				t.Errorf("Storage.Dir = %q, expected %q", config.Storage.Dir, constants.DefaultStorageDir)
			}
			if config.Output.Format != constants.OutputFormatPretty {
				t.Errorf("Output.Format = %q, expected %q", config.Output.Format, constants.OutputFormatPretty)
			}
			if config.Logging.Level != "info" || config.Logging.Format != "json" {
				t.Errorf("Logging = %+v, expected info/json", config.Logging)
			}
			if !config.Progress.Enabled {
				t.Error("Progress.Enabled = false, expected true by default")
			}
			if config.Defaults != nil {
				t.Errorf("Defaults = %v, expected none", config.Defaults)
			}
		})
	}
}

func TestLoadConfigurationExample(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeConfig(t, fs, "config.yaml", exampleConfig)

	config, err := LoadConfigurationFs(fs, "config.yaml")
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}

	if got := config.Storage.StoragePath(); got != filepath.Join("/var/lib/pv", "customer-42") {
		t.Errorf("StoragePath() = %q", got)
	}
	if config.Logging.Level != "debug" || config.Logging.Format != "console" || config.Logging.OutputFile != "/var/log/pv.log" {
		t.Errorf("Logging = %+v", config.Logging)
	}
	if config.Output.Format != "csv" {
		t.Errorf("Output.Format = %q, expected csv", config.Output.Format)
	}
	if config.Progress.Enabled {
		t.Error("Progress.Enabled = true, expected false")
	}
	if config.Defaults[rules.ParamPVPower] != 7.5 {
		t.Errorf("Defaults[%s] = %v, expected 7.5 (keys: %v)", rules.ParamPVPower, config.Defaults[rules.ParamPVPower], config.Defaults)
	}
	if config.Defaults[rules.ParamElectricityPrice] != 0.35 {
		t.Errorf("Defaults[%s] = %v, expected 0.35", rules.ParamElectricityPrice, config.Defaults[rules.ParamElectricityPrice])
	}
	if err := config.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadConfigurationEnvOverride(t *testing.T) {
	t.Setenv("PVSCENARIO_STORAGE_DIR", "/tmp/pv-env")
	t.Setenv("PVSCENARIO_OUTPUT_FORMAT", "yaml")

	fs := afero.NewMemMapFs()
	writeConfig(t, fs, "config.yaml", exampleConfig)

	config, err := LoadConfigurationFs(fs, "config.yaml")
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	if config.Storage.Dir != "/tmp/pv-env" {
		t.Errorf("Storage.Dir = %q, expected environment override", config.Storage.Dir)
	}
	if config.Output.Format != "yaml" {
		t.Errorf("Output.Format = %q, expected environment override", config.Output.Format)
	}
}

func TestLoadConfigurationMalformed(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeConfig(t, fs, "config.yaml", "storage: [unterminated")

	if _, err := LoadConfigurationFs(fs, "config.yaml"); err == nil {
		t.Error("LoadConfiguration() expected error for malformed YAML but got none")
	}
}

func TestValidate(t *testing.T) {
	base := func() Configuration {
		return Configuration{
			Storage: StorageConfig{Dir: ".pv-scenario"},
			Output:  OutputConfig{Format: "pretty"},
		}
	}

	tests := []struct {
		name    string
		modify  func(*Configuration)
		wantErr string
	}{
		{
			name:   "Valid",
			modify: func(*Configuration) {},
		},
		{
			name:    "Empty storage dir",
			modify:  func(c *Configuration) { c.Storage.Dir = " " },
			wantErr: "storage.dir",
		},
		{
			name:    "Nested namespace",
			modify:  func(c *Configuration) { c.Storage.Namespace = "a/b" },
			wantErr: "storage.namespace",
		},
		{
			name:    "Unknown output format",
			modify:  func(c *Configuration) { c.Output.Format = "xml" },
			wantErr: "output format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.modify(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, expected it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateConfiguration(t *testing.T) {
	c := Configuration{Defaults: map[string]float64{rules.ParamSystemLifetime: 0}}

	warnings := c.ValidateConfiguration()
	if len(warnings) != 1 || !strings.Contains(warnings[0], "lifetime") {
		t.Errorf("ValidateConfiguration() = %v, expected one lifetime warning", warnings)
	}

	if warnings := (&Configuration{}).ValidateConfiguration(); len(warnings) != 0 {
		t.Errorf("ValidateConfiguration() with built-in defaults = %v, expected none", warnings)
	}
}
