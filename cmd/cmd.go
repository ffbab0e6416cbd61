// Package cmd defines the command-line interface for attribution.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/step6836/marketing-attribution/internal/contract"
	"github.com/step6836/marketing-attribution/schema"
)

func init() {
	// Call initConfig on Cobra's initialization
	cobra.OnInitialize(initConfig)

	// Add primary subcommands to the root command
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(scenarioCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(analysisCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(mcpCmd)

	// Add the cache subcommands to the parent cache command
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheStatusCmd)

	// Add the analysis subcommands to the parent analysis command
	analysisCmd.AddCommand(analysisClearCmd)
	analysisCmd.AddCommand(analysisStatusCmd)
	analysisCmd.AddCommand(analysisExportCmd)
	analysisCmd.AddCommand(analysisMigrateCmd)

	configCmd.AddCommand(configInitCmd)

	// Bind all persistent flags of rootCmd to Viper
	pf := rootCmd.PersistentFlags()
	pf.StringP("input", "i", "", "Path to the event log (positional argument takes precedence)")
	pf.String("format", string(schema.AutoFormat), "Input format: auto or csv or jsonl or parquet")
	pf.String("session-gap", contract.DefaultSessionGap, "Inactivity gap that closes a session")
	pf.String("conversion-window", contract.DefaultConversionWindow, "Maximum journey span before a purchase, or none")
	pf.String("strict", "yes", "Fail on malformed records instead of dropping them (yes/no)")
	pf.Int("bot-session-threshold", contract.DefaultSessionThreshold, "Distinct sessions above which a user is a bot (0 = off)")
	pf.Int("bot-rate-per-minute", contract.DefaultRatePerMinute, "Events per minute above which a user is a bot (0 = off)")
	pf.String("ignore-stages", contract.DefaultIgnoreStages, "Comma-separated event types to drop before sessionizing")
	pf.Int("sample", 0, "Number of converting users to analyze (0 = all)")
	pf.String("models", "all", "Comma-separated models: first_touch, last_touch, linear, shapley, markov")
	pf.String("shapley-value", string(schema.DiminishingCoalition), "Shapley coalition value: diminishing or coverage")
	pf.Int("shapley-max-players", 0, "Largest player set solved exactly (0 = default)")
	pf.Int("shapley-samples", 0, "Permutation samples above the exact limit (0 = default)")
	pf.Float64("markov-tolerance", 0, "Convergence tolerance of the fixed-point fallback (0 = default)")
	pf.Int("markov-max-iterations", 0, "Iteration cap of the fixed-point fallback (0 = default)")
	pf.String("scoring", string(schema.ProfileScoring), "Model comparison: profile or derived")
	pf.String("reference-model", string(schema.MarkovModel), "Reference model for derived scoring")
	pf.Int("workers", contract.DefaultWorkers, "Number of models computed concurrently")
	pf.String("output", string(schema.TextOut), "Output format: text or csv or json or parquet")
	pf.String("output-file", "", "Optional path to write output to")
	pf.Int("precision", contract.DefaultPrecision, "Decimal precision for numeric columns")
	pf.Int("width", 0, "Terminal width override (0 = auto-detect)")
	pf.String("color", "yes", "Enable colored labels in output (yes/no/true/false/1/0)")
	pf.String("cache-backend", string(schema.SQLiteBackend), "Journey cache backend: sqlite or mysql or postgresql or redis or none")
	pf.String("cache-db-connect", "", "Connection string for mysql/postgresql/redis (e.g., redis://localhost:6379/0)")
	pf.String("analysis-backend", "", "Analysis tracking backend: sqlite or mysql or postgresql or none")
	pf.String("analysis-db-connect", "", "Connection string for analysis tracking (must differ from cache-db-connect)")
	pf.String("log-level", contract.DefaultLogLevel, "Log level: debug or info or warn or error")
	pf.String("log-format", contract.DefaultLogFormat, "Log format: console or json")
	pf.Bool("trace", false, "Write pipeline spans to stderr")
	pf.String("profile", "", "Enable profiling and write profiles to files with this prefix")
	pf.String("config", "", "Path to config file")
	if err := viper.BindPFlags(pf); err != nil {
		contract.LogFatal("Error binding root flags", err)
	}

	// Bind all flags of scenarioCmd to Viper
	scenarioCmd.Flags().Float64("awareness-budget", 0, "Budget for the view stage; the rest of the total goes to cart")
	scenarioCmd.Flags().String("preset", "", "Named preset: current or recommended or aggressive")
	if err := viper.BindPFlags(scenarioCmd.Flags()); err != nil {
		contract.LogFatal("Error binding scenario flags", err)
	}

	// Bind all flags of analysisMigrateCmd to Viper
	analysisMigrateCmd.Flags().Int("target-version", -1, "Target migration version (-1 means latest, 0 means rollback to initial state)")
	if err := viper.BindPFlags(analysisMigrateCmd.Flags()); err != nil {
		contract.LogFatal("Error binding analysis migrate flags", err)
	}

	configInitCmd.Flags().Bool("force", false, "Overwrite an existing config file")
}
