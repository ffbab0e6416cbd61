package cmd

import (
	"github.com/spf13/cobra"

	"github.com/step6836/marketing-attribution/core"
	"github.com/step6836/marketing-attribution/internal/contract"
)

// modelsCmd displays the attribution methodologies.
var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Describe the attribution models and their comparison profile",
	Long: `Show how each attribution model assigns credit to the view and cart
stages, together with the accuracy, fairness and business value profile used
when comparing them.

No event log is read - this is purely informational.

Examples:
  # Describe the models
  attribution models

  # As JSON for documentation tooling
  attribution models --output json`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteModels(rootCtx, cfg, cacheManager); err != nil {
			contract.LogFatal("Cannot display models", err)
		}
	},
}
