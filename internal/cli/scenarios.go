package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/iwvelando/pv-scenario/internal/scenario"
	"github.com/iwvelando/pv-scenario/pkg/constants"
	"github.com/iwvelando/pv-scenario/pkg/output"
	"github.com/iwvelando/pv-scenario/pkg/validation"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (a *app) newCreateCmd() *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "create [name]",
		Short: "Create a scenario with the default parameters and print its ID",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			sc, err := a.store.CreateScenario(name)
			if err != nil {
				return err
			}
			if description != "" {
				if sc, err = a.store.UpdateDetails(sc.ID, "", description); err != nil {
					return err
				}
			}
			cmd.PrintErrf("Created scenario %q\n", sc.Name)
			_, err = fmt.Fprintln(cmd.OutOrStdout(), sc.ID)
			return err
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "free-text description")
	return cmd
}

func (a *app) newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all scenarios",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			scenarios := a.store.Scenarios()
			if len(scenarios) == 0 {
				_, err := fmt.Fprintln(w, "No scenarios.")
				return err
			}
			for _, sc := range scenarios {
				status := "not calculated"
				if sc.Calculated() {
					status = "calculated " + sc.LastCalculated.Format("2006-01-02 15:04")
				}
				enabled := "enabled"
				if !sc.Enabled {
					enabled = "disabled"
				}
				if _, err := fmt.Fprintf(w, "%s | %s | %s | %s\n", sc.ID, sc.Name, enabled, status); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func (a *app) newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [id...]",
		Short: "Show scenarios with their parameters and results",
		Long:  "Show the given scenarios, or all scenarios when no ID is given. The csv format needs exactly one scenario.",
		RunE: func(cmd *cobra.Command, args []string) error {
			scenarios, err := a.selectScenarios(args)
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), scenarios)
		},
	}
}

func (a *app) newSetCmd() *cobra.Command {
	var (
		name        string
		description string
		enabled     bool
	)

	cmd := &cobra.Command{
		Use:   "set <id> [key=value...]",
		Short: "Change parameters or details of a scenario",
		Long: `Change parameters of a scenario. Results are not recalculated until the
next run. Any parameter key may be set; unknown keys are available to custom
rules only.`,
		Example: `  pv-scenario set <id> pv_power_kWp=12.5 electricity_price_per_kwh=0.32
  pv-scenario set <id> --name "East/West" --enabled=false`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			assignments, err := parseAssignments(args[1:])
			if err != nil {
				return err
			}

			var sc scenario.Scenario
			if cmd.Flags().Changed("name") || cmd.Flags().Changed("description") {
				current, err := a.store.Scenario(id)
				if err != nil {
					return err
				}
				if !cmd.Flags().Changed("description") {
					description = current.Description
				}
				if sc, err = a.store.UpdateDetails(id, name, description); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("enabled") {
				if sc, err = a.store.SetEnabled(id, enabled); err != nil {
					return err
				}
			}
			for _, as := range assignments {
				if sc, err = a.store.UpdateParameter(id, as.key, as.value); err != nil {
					return err
				}
			}
			if sc.ID == "" {
				if sc, err = a.store.Scenario(id); err != nil {
					return err
				}
			}

			for _, warning := range validation.ValidateParameters(sc.Parameters) {
				a.logger.Warn("Parameter warning: "+warning,
					zap.String("op", "cli.set"),
					zap.String("scenario", id),
				)
				cmd.PrintErrf("warning: %s\n", warning)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "new scenario name")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	cmd.Flags().BoolVar(&enabled, "enabled", true, "include the scenario in run --all")
	return cmd
}

func (a *app) newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a scenario",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.store.DeleteScenario(args[0]); err != nil {
				return err
			}
			cmd.PrintErrf("Deleted scenario %s\n", args[0])
			return nil
		},
	}
}

func (a *app) newDuplicateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "duplicate <id>",
		Short: "Copy a scenario's parameters into a new scenario and print its ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := a.store.DuplicateScenario(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), sc.ID)
			return err
		},
	}
}

type assignment struct {
	key   string
	value float64
}

func parseAssignments(args []string) ([]assignment, error) {
	out := make([]assignment, 0, len(args))
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: %w", key, err)
		}
		out = append(out, assignment{key: key, value: value})
	}
	return out, nil
}

// selectScenarios returns the scenarios with the given IDs, or all of them.
func (a *app) selectScenarios(ids []string) ([]scenario.Scenario, error) {
	if len(ids) == 0 {
		return a.store.Scenarios(), nil
	}
	out := make([]scenario.Scenario, 0, len(ids))
	for _, id := range ids {
		sc, err := a.store.Scenario(id)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, nil
}

func (a *app) render(w io.Writer, scenarios []scenario.Scenario) error {
	switch a.conf.Output.Format {
	case constants.OutputFormatCSV:
		if len(scenarios) != 1 {
			return fmt.Errorf("csv output needs exactly one scenario, got %d", len(scenarios))
		}
		return output.CsvFormat(w, scenarios[0])
	case constants.OutputFormatYAML:
		return output.YAMLFormat(w, scenarios)
	default:
		return output.PrettyFormat(w, scenarios)
	}
}
