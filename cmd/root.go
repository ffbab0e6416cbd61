package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/pprof"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/step6836/marketing-attribution/core"
	"github.com/step6836/marketing-attribution/internal/contract"
	"github.com/step6836/marketing-attribution/internal/iocache"
	"github.com/step6836/marketing-attribution/internal/logger"
	"github.com/step6836/marketing-attribution/internal/telemetry"
	"github.com/step6836/marketing-attribution/schema"
)

// All linker flags will be set by goreleaser infra at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// configName is the config file looked up in the working and home directories.
const configName = ".attribution"

// rootCtx is the root context for all operations. sharedSetup attaches the logger.
var rootCtx = context.Background()

// cfg will hold the validated, final configuration.
var cfg = &contract.Config{}

// input holds the raw, unvalidated configuration from all sources (file, env, flags).
// Viper will unmarshal into this struct.
var input = &contract.ConfigRawInput{}

// profile holds profiling configuration.
var profile = &contract.ProfileConfig{}

// cacheManager is the global persistence manager instance.
var cacheManager contract.CacheManager

// log is the logger built from --log-level and --log-format.
var log = logger.Nop()

// stopTracing flushes spans when --trace is on.
var stopTracing telemetry.ShutdownFunc = func(context.Context) error { return nil }

// startProfiling starts CPU and memory profiling if enabled.
func startProfiling() error {
	if !profile.Enabled {
		return nil
	}

	cpuFile, err := os.Create(profile.Prefix + ".cpu.prof")
	if err != nil {
		return fmt.Errorf("could not create CPU profile: %w", err)
	}
	if err := pprof.StartCPUProfile(cpuFile); err != nil {
		return fmt.Errorf("could not start CPU profiling: %w", err)
	}

	// Memory profiling will be captured at the end
	_, err = fmt.Fprintf(os.Stderr, "Profiling enabled. CPU profile: %s.cpu.prof, Memory profile: %s.mem.prof\n", profile.Prefix, profile.Prefix)
	return err
}

// stopProfiling stops profiling and writes memory profile.
func stopProfiling() error {
	if !profile.Enabled {
		return nil
	}

	pprof.StopCPUProfile()

	memFile, err := os.Create(profile.Prefix + ".mem.prof")
	if err != nil {
		return fmt.Errorf("could not create memory profile: %w", err)
	}
	defer func() { _ = memFile.Close() }()

	if err := pprof.WriteHeapProfile(memFile); err != nil {
		return fmt.Errorf("could not write memory profile: %w", err)
	}

	_, err = fmt.Fprintf(os.Stderr, "Profiling complete. Use 'go tool pprof %s.cpu.prof' to analyze.\n", profile.Prefix)
	return err
}

// rootCmd is the command-line entrypoint for all other commands.
var rootCmd = &cobra.Command{
	Use:                "attribution",
	Short:              "Attribute conversions to funnel touchpoints and project budget scenarios.",
	Long:               `Attribution turns raw ecommerce event logs into customer journeys, credits the view and cart stages under five models, and projects how a budget split would perform.`,
	Version:            version,
	SilenceErrors:      true,
	SilenceUsage:       true,
	DisableSuggestions: true,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	setConfigPaths()

	viper.SetEnvPrefix("ATTRIBUTION")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("format", string(schema.AutoFormat))
	viper.SetDefault("session-gap", contract.DefaultSessionGap)
	viper.SetDefault("conversion-window", contract.DefaultConversionWindow)
	viper.SetDefault("strict", "yes")
	viper.SetDefault("bot-session-threshold", contract.DefaultSessionThreshold)
	viper.SetDefault("bot-rate-per-minute", contract.DefaultRatePerMinute)
	viper.SetDefault("ignore-stages", contract.DefaultIgnoreStages)
	viper.SetDefault("models", "all")
	viper.SetDefault("shapley-value", string(schema.DiminishingCoalition))
	viper.SetDefault("scoring", string(schema.ProfileScoring))
	viper.SetDefault("reference-model", string(schema.MarkovModel))
	viper.SetDefault("workers", contract.DefaultWorkers)
	viper.SetDefault("precision", contract.DefaultPrecision)
	viper.SetDefault("output", string(schema.TextOut))
	viper.SetDefault("cache-backend", string(schema.SQLiteBackend))
	viper.SetDefault("cache-db-connect", "")
	viper.SetDefault("analysis-backend", "")
	viper.SetDefault("analysis-db-connect", "")
	viper.SetDefault("color", "yes")
	viper.SetDefault("log-level", contract.DefaultLogLevel)
	viper.SetDefault("log-format", contract.DefaultLogFormat)
}

// setConfigPaths points viper at --config or the default lookup locations.
func setConfigPaths() {
	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
		return
	}
	viper.SetConfigName(configName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME")
}

// loadConfigFile reads the config file if present. A missing file is not an error.
func loadConfigFile() error {
	setConfigPaths()
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

// sharedSetup unmarshals config, runs validation and prepares logging, tracing and stores.
func sharedSetup(ctx context.Context, cmd *cobra.Command, args []string) error {
	if err := contract.ProcessProfilingConfig(profile, viper.GetString("profile")); err != nil {
		return fmt.Errorf("failed to process profiling config: %w", err)
	}
	if profile.Enabled {
		if err := startProfiling(); err != nil {
			return fmt.Errorf("failed to start profiling: %w", err)
		}
	}

	// 1. Read config file. This merges defaults, file, env, and flags.
	if err := loadConfigFile(); err != nil {
		return err
	}

	// 2. Unmarshal all resolved values from Viper into our raw input struct.
	if err := viper.Unmarshal(input); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}

	// 3. Handle what Viper doesn't: positional input and the optional budget.
	if len(args) == 1 {
		input.InputPathStr = args[0]
	}
	if f := cmd.Flags().Lookup("awareness-budget"); f != nil && f.Changed {
		v := viper.GetFloat64("awareness-budget")
		input.AwarenessBudget = &v
	}

	// 4. Run all validation and complex parsing into the global 'cfg'.
	if err := contract.ProcessAndValidate(ctx, cfg, input); err != nil {
		return err
	}

	l, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	log = l
	rootCtx = core.WithLogger(ctx, log)

	shutdown, err := telemetry.Setup(cfg.Trace, os.Stderr, version)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	stopTracing = shutdown

	// 5. Initialize persistence layer with validated config
	if err := iocache.InitStores(cfg.CacheBackend, cfg.CacheDBConnect, cfg.AnalysisBackend, cfg.AnalysisDBConnect); err != nil {
		return fmt.Errorf("failed to initialize persistence: %w", err)
	}
	log.Debug("configuration loaded",
		zap.String("input", cfg.InputPath),
		zap.String("format", string(cfg.InputFormat)),
		zap.String("cache_backend", string(cfg.CacheBackend)),
		zap.String("analysis_backend", string(cfg.AnalysisBackend)),
		zap.Int("workers", cfg.Workers))
	return nil
}

// sharedSetupWrapper wraps sharedSetup to provide context for Cobra's PreRunE.
func sharedSetupWrapper(cmd *cobra.Command, args []string) error {
	return sharedSetup(rootCtx, cmd, args)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetCacheManager sets the global cache manager.
func SetCacheManager(mgr contract.CacheManager) {
	cacheManager = mgr
}

// Shutdown flushes spans and logs and stops profiling if enabled.
func Shutdown() error {
	err := stopTracing(context.Background())
	_ = log.Sync()
	return errors.Join(err, stopProfiling())
}
