package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/step6836/marketing-attribution/internal/contract"
	"github.com/step6836/marketing-attribution/internal/iocache"
	"github.com/step6836/marketing-attribution/schema"
)

// analysisBackend reads and validates the analysis backend settings. An empty
// backend means tracking is disabled.
func analysisBackend() (schema.DatabaseBackend, string, error) {
	if err := loadConfigFile(); err != nil {
		return "", "", err
	}

	backend := schema.NoneBackend
	if s := viper.GetString("analysis-backend"); s != "" {
		backend = schema.DatabaseBackend(s)
	}
	if _, ok := schema.ValidAnalysisBackends[backend]; !ok {
		return "", "", fmt.Errorf("invalid analysis backend '%s'. must be sqlite, mysql, postgresql, none", backend)
	}
	connStr := viper.GetString("analysis-db-connect")
	if err := contract.ValidateDatabaseConnectionString(backend, connStr); err != nil {
		return "", "", err
	}
	return backend, connStr, nil
}

// analysisSetup loads minimal configuration needed for analysis operations.
// This is used by commands that need analysis access without full shared setup.
func analysisSetup() error {
	backend, connStr, err := analysisBackend()
	if err != nil {
		return err
	}

	// No journey cache for analysis commands
	if err := iocache.InitStores("", "", backend, connStr); err != nil {
		return fmt.Errorf("failed to initialize analysis: %w", err)
	}

	cfg.AnalysisBackend = backend
	cfg.AnalysisDBConnect = connStr
	cfg.OutputFile = viper.GetString("output-file")
	return nil
}

// analysisSetupWrapper wraps analysisSetup to provide PreRunE for analysis commands.
func analysisSetupWrapper(_ *cobra.Command, _ []string) error {
	return analysisSetup()
}

// analysisMigrateSetup does NOT initialize stores or create tables, allowing
// migrations to run on a fresh database.
func analysisMigrateSetup(_ *cobra.Command, _ []string) error {
	backend, connStr, err := analysisBackend()
	if err != nil {
		return err
	}
	if backend == schema.SQLiteBackend && connStr == "" {
		connStr = contract.GetAnalysisDBFilePath()
	}
	cfg.AnalysisBackend = backend
	cfg.AnalysisDBConnect = connStr
	return nil
}

// analysisStore returns the initialized analysis store or exits.
func analysisStore() contract.AnalysisStore {
	store := iocache.Manager.GetAnalysisStore()
	if store == nil {
		contract.LogFatal("Analysis tracking is unavailable", errors.New("analysis store is not initialized"))
	}
	return store
}

// analysisCmd focused on analysis data management.
//
// Analysis subcommands skip sharedSetup, so no event log is resolved or validated.
var analysisCmd = &cobra.Command{
	Use:   "analysis",
	Short: "Manage historical analysis tracking and exports",
	Long: `Manage the history of attribution runs.

When enabled, every analyze or scenario run stores:
- Run metadata (timestamp, parameters, duration, event and journey counts)
- Per-model view/cart credits and percentages
- Model comparison scores and degraded flags
- Projected scenarios

This enables tracking attribution drift across data refreshes and exporting to BI tools.

Supported backends: SQLite (default), MySQL, PostgreSQL, or None (disabled)

Subcommands:
  status  - Show analysis tracking statistics
  export  - Export data to Parquet for analytics
  clear   - Remove all tracking data
  migrate - Run database schema migrations

Examples:
  # Check tracking status
  attribution analysis status --analysis-backend sqlite

  # Export for analysis in pandas/DuckDB
  attribution analysis export --analysis-backend sqlite --output-file history.parquet`,
}

// analysisClearCmd clears the analysis data.
var analysisClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all historical analysis tracking data",
	Long: `Delete all stored analysis runs, credits, scores and scenarios.

WARNING: This action cannot be undone. Consider exporting data first.

Examples:
  # Export before clearing
  attribution analysis export --output-file backup.parquet
  attribution analysis clear`,
	PreRunE: analysisMigrateSetup,
	Run: func(_ *cobra.Command, _ []string) {
		if err := iocache.ClearAnalysis(cfg.AnalysisBackend, contract.GetAnalysisDBFilePath(), cfg.AnalysisDBConnect); err != nil {
			contract.LogFatal("Failed to clear analysis data", err)
		}
		fmt.Println("Analysis data cleared successfully.")
	},
}

// analysisStatusCmd shows analysis status.
var analysisStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display analysis tracking statistics and connection details",
	Long: `Show detailed information about historical analysis tracking.

Displays:
- Backend type and connection status
- Total number of analysis runs stored
- Last and oldest analysis run timestamps
- Row counts of the history tables

Examples:
  # Check analysis tracking status
  attribution analysis status`,
	PreRunE: analysisSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		status, err := analysisStore().GetStatus()
		if err != nil {
			contract.LogFatal("Failed to get analysis status", err)
		}
		iocache.PrintAnalysisStatus(os.Stdout, status)
	},
}

// analysisExportCmd exports analysis data to Parquet files.
var analysisExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export historical data to Parquet for BI tools and analytics",
	Long: `Export all stored analysis data to Parquet format for use with analytics tools.

Exports four datasets next to --output-file:
- Analysis runs
- Model credits
- Model scores
- Scenarios

Requires: --output-file parameter

Examples:
  # Export all data
  attribution analysis export --output-file history.parquet

  # Use with DuckDB for analysis
  duckdb -c "SELECT model, avg(view_pct) FROM read_parquet('history.model_credits.parquet') GROUP BY model"`,
	PreRunE: analysisSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := iocache.ExecuteAnalysisExport(analysisStore(), cfg.OutputFile, os.Stdout); err != nil {
			contract.LogFatal("Failed to export analysis data", err)
		}
	},
}

// analysisMigrateCmd runs database migrations for the analysis store.
var analysisMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database schema migrations (upgrades/downgrades)",
	Long: `Manage database schema versions for the analysis tracking store.

By default, migrates to the latest version. Use --target-version for specific versions.

Examples:
  # Migrate to latest version (default)
  attribution analysis migrate --analysis-backend sqlite

  # Rollback to initial state
  attribution analysis migrate --target-version 0`,
	PreRunE: analysisMigrateSetup,
	Run: func(_ *cobra.Command, _ []string) {
		targetVersion := viper.GetInt("target-version")
		if err := iocache.MigrateAnalysis(cfg.AnalysisBackend, cfg.AnalysisDBConnect, targetVersion, os.Stdout); err != nil {
			contract.LogFatal("Failed to run migrations", err)
		}
	},
}
