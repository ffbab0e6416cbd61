package cmd

import (
	"github.com/spf13/cobra"

	"github.com/step6836/marketing-attribution/internal/mcp"
)

// mcpCmd represents the mcp command.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the attribution MCP server",
	Long: `Launch an MCP server over stdio so AI agents can run attributions and project scenarios.

Tools:
  get_attribution   - Full artifact for an event log
  project_scenario  - Projection for one awareness budget
  list_scenarios    - The three presets, calibrated when an event log is given
  get_journey_stats - Ingestion counts and journey statistics

Logs go to stderr, stdout carries the protocol.`,
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		return mcp.StartMCPServer(rootCtx, cfg, cacheManager)
	},
}
