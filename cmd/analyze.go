package cmd

import (
	"github.com/spf13/cobra"

	"github.com/step6836/marketing-attribution/core"
	"github.com/step6836/marketing-attribution/internal/contract"
)

// analyzeCmd runs the full attribution pipeline.
var analyzeCmd = &cobra.Command{
	Use:   "analyze [input]",
	Short: "Build journeys from an event log and attribute conversions under every model.",
	Long: `Load an event log, filter bots, assemble customer journeys and credit the
view and cart stages under the first-touch, last-touch, linear, Shapley and
Markov models.

The result is one artifact with:
- Ingestion counts (events, users, sessions, bots, dropped records)
- Per-model view/cart percentages and diagnostics
- A comparison of the models (accuracy, fairness, business value)
- Journey statistics (touchpoints, duration, conversion and abandonment rates)
- The three budget presets calibrated from the attribution results

A model that fails is reported as degraded and the rest of the run continues.

Examples:
  # Analyze a CSV export and print tables
  attribution analyze events.csv

  # Write the artifact as JSON
  attribution analyze events.csv --output json --output-file artifact.json

  # Only the heuristic models, with lenient ingestion
  attribution analyze events.jsonl --models first_touch,last_touch,linear --strict no

  # Sample 5000 converting users and score models against Markov
  attribution analyze events.parquet --sample 5000 --scoring derived`,
	Args:    cobra.MaximumNArgs(1),
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteAnalyze(rootCtx, cfg, cacheManager); err != nil {
			contract.LogFatal("Cannot run attribution analysis", err)
		}
	},
}
