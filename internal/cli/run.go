package cli

import (
	"fmt"
	"io"

	"github.com/iwvelando/pv-scenario/internal/scenario"
	"github.com/iwvelando/pv-scenario/pkg/constants"
	"github.com/iwvelando/pv-scenario/pkg/rules"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

func (a *app) newRunCmd() *cobra.Command {
	var (
		all   bool
		stats bool
	)

	cmd := &cobra.Command{
		Use:   "run [id...]",
		Short: "Calculate scenarios and print their results",
		Long: `Calculate the given scenarios, or every enabled scenario with --all.
A failed or interrupted calculation keeps the previous results.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) > 0) {
				return fmt.Errorf("give scenario IDs or --all")
			}

			var targets []scenario.Scenario
			if all {
				for _, sc := range a.store.Scenarios() {
					if sc.Enabled {
						targets = append(targets, sc)
					}
				}
			} else {
				var err error
				if targets, err = a.selectScenarios(args); err != nil {
					return err
				}
			}

			calculated := make([]scenario.Scenario, 0, len(targets))
			for _, target := range targets {
				sc, err := a.runOne(cmd, target)
				if err != nil {
					return err
				}
				calculated = append(calculated, sc)
			}

			if err := a.render(cmd.OutOrStdout(), calculated); err != nil {
				return err
			}
			if stats {
				return a.printStats(cmd.OutOrStdout())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "calculate every enabled scenario")
	cmd.Flags().BoolVar(&stats, "stats", false, "print the size of the computed values by category")
	return cmd
}

func (a *app) runOne(cmd *cobra.Command, target scenario.Scenario) (scenario.Scenario, error) {
	var progress scenario.ProgressFunc
	var bar *progressbar.ProgressBar
	if a.conf.Progress.Enabled {
		bar = progressbar.NewOptions(100,
			progressbar.OptionSetWriter(cmd.ErrOrStderr()),
			progressbar.OptionSetDescription(target.Name),
			progressbar.OptionClearOnFinish(),
		)
		progress = func(p float64) {
			_ = bar.Set(int(p * 100))
		}
	}

	sc, err := a.store.RunCalculation(cmd.Context(), target.ID, progress)
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		return scenario.Scenario{}, fmt.Errorf("calculation of %q failed: %w", target.Name, err)
	}

	a.logger.Debug("scenario run finished",
		zap.String("op", "cli.run"),
		zap.String("scenario", sc.ID),
		zap.Int("registered", len(a.registry.Entries())),
	)
	return sc, nil
}

func (a *app) printStats(w io.Writer) error {
	stats := a.registry.Stats()
	categories := []string{string(rules.CategoryEnergy), string(rules.CategoryFinancial), string(rules.CategoryEnvironmental)}

	if _, err := fmt.Fprintf(w, "\nCategory      | Values | Bytes | In PDF\n"); err != nil {
		return err
	}
	for _, category := range categories {
		s := stats[category]
		if _, err := fmt.Fprintf(w, "%-13s | %6d | %5d | %6d\n", category, s.Count, s.SizeBytes, s.InPDF); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "Total %d bytes, %d bytes in PDF\n", a.registry.TotalSize(), a.registry.PDFSize())
	return err
}

func (a *app) newRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "Print the calculation rules in evaluation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ordered, err := rules.Sort(a.store.Rules())
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if a.conf.Output.Format == constants.OutputFormatYAML {
				enc := yaml.NewEncoder(w)
				enc.SetIndent(2)
				if err := enc.Encode(ordered); err != nil {
					return err
				}
				return enc.Close()
			}

			for i, rule := range ordered {
				if _, err := fmt.Fprintf(w, "%d. %s (%s, %s)\n   %s = %s\n", i+1, rule.Label, rule.Category, rule.Priority, rule.Key, rule.Formula); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
