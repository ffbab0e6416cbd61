package cmd

import (
	"github.com/spf13/cobra"

	"github.com/step6836/marketing-attribution/core"
	"github.com/step6836/marketing-attribution/internal/contract"
)

// scenarioCmd projects budget splits.
var scenarioCmd = &cobra.Command{
	Use:   "scenario [input]",
	Short: "Project revenue, ROAS and risk for a view/cart budget split.",
	Long: `Project how a split of the total budget between the view (awareness) and
cart (conversion) stages would perform.

Without flags the three presets are listed. current is the baseline cart
share. recommended is the mean cart share of the Shapley and Markov results of
the event log, never below the baseline, or 0.45 without a log. aggressive adds
the calibrated aggressive step to recommended, capped at a full cart budget.

Calibration (total budget, baseline revenue and ROAS, slope, lift cap, risk
thresholds, aggressive step) comes from the calibration block of the config file.

Examples:
  # List the presets with fallback shares
  attribution scenario

  # Calibrate the presets from an event log
  attribution scenario events.csv

  # Project a custom split of 2,000,000 for awareness
  attribution scenario --awareness-budget 2000000

  # A single preset as JSON
  attribution scenario events.csv --preset recommended --output json`,
	Args:    cobra.MaximumNArgs(1),
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteScenario(rootCtx, cfg, cacheManager); err != nil {
			contract.LogFatal("Cannot project scenarios", err)
		}
	},
}
