package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/step6836/marketing-attribution/core/scenario"
	"github.com/step6836/marketing-attribution/internal/contract"
	"github.com/step6836/marketing-attribution/schema"
)

// configFile mirrors the keys read by viper, in the order they are written.
type configFile struct {
	Format              string            `yaml:"format"`
	SessionGap          string            `yaml:"session-gap"`
	ConversionWindow    string            `yaml:"conversion-window"`
	Strict              string            `yaml:"strict"`
	BotSessionThreshold int               `yaml:"bot-session-threshold"`
	BotRatePerMinute    int               `yaml:"bot-rate-per-minute"`
	IgnoreStages        string            `yaml:"ignore-stages"`
	Models              string            `yaml:"models"`
	ShapleyValue        string            `yaml:"shapley-value"`
	Scoring             string            `yaml:"scoring"`
	ReferenceModel      string            `yaml:"reference-model"`
	Workers             int               `yaml:"workers"`
	Output              string            `yaml:"output"`
	Precision           int               `yaml:"precision"`
	Color               string            `yaml:"color"`
	CacheBackend        string            `yaml:"cache-backend"`
	LogLevel            string            `yaml:"log-level"`
	LogFormat           string            `yaml:"log-format"`
	Calibration         calibrationConfig `yaml:"calibration"`
}

type calibrationConfig struct {
	TotalBudget       float64 `yaml:"total_budget"`
	BaselineRevenue   float64 `yaml:"baseline_revenue"`
	BaselineROAS      float64 `yaml:"baseline_roas"`
	BaselineCartShare float64 `yaml:"baseline_cart_share"`
	Slope             float64 `yaml:"slope"`
	MaxLift           float64 `yaml:"max_lift"`
	ROASSensitivity   float64 `yaml:"roas_sensitivity"`
	RiskLow           float64 `yaml:"risk_low"`
	RiskMedium        float64 `yaml:"risk_medium"`
	AggressiveStep    float64 `yaml:"aggressive_step"`
}

// defaultConfig returns the file written by config init.
func defaultConfig() configFile {
	cal := scenario.DefaultCalibration()
	return configFile{
		Format:              string(schema.AutoFormat),
		SessionGap:          contract.DefaultSessionGap,
		ConversionWindow:    contract.DefaultConversionWindow,
		Strict:              "yes",
		BotSessionThreshold: contract.DefaultSessionThreshold,
		BotRatePerMinute:    contract.DefaultRatePerMinute,
		IgnoreStages:        contract.DefaultIgnoreStages,
		Models:              "all",
		ShapleyValue:        string(schema.DiminishingCoalition),
		Scoring:             string(schema.ProfileScoring),
		ReferenceModel:      string(schema.MarkovModel),
		Workers:             contract.DefaultWorkers,
		Output:              string(schema.TextOut),
		Precision:           contract.DefaultPrecision,
		Color:               "yes",
		CacheBackend:        string(schema.SQLiteBackend),
		LogLevel:            contract.DefaultLogLevel,
		LogFormat:           contract.DefaultLogFormat,
		Calibration: calibrationConfig{
			TotalBudget:       cal.TotalBudget,
			BaselineRevenue:   cal.BaselineRevenue,
			BaselineROAS:      cal.BaselineROAS,
			BaselineCartShare: cal.BaselineCartShare,
			Slope:             cal.Slope,
			MaxLift:           cal.MaxLift,
			ROASSensitivity:   cal.ROASSensitivity,
			RiskLow:           cal.RiskThresholds.Low,
			RiskMedium:        cal.RiskThresholds.Medium,
			AggressiveStep:    cal.AggressiveStep,
		},
	}
}

// writeDefaultConfig writes the default config to path. An existing file is kept
// unless force is set.
func writeDefaultConfig(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	data, err := yaml.Marshal(defaultConfig())
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// configCmd groups config file helpers.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the attribution config file",
}

// configInitCmd writes a config file with every default spelled out.
var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a config file with the default settings",
	Long: `Write a YAML config file containing every default setting, including the
scenario calibration block, so it can be edited in place.

The file is written to .attribution.yaml in the current directory unless a
path is given. Connection strings are left out; pass them through
ATTRIBUTION_CACHE_DB_CONNECT and ATTRIBUTION_ANALYSIS_DB_CONNECT.

Examples:
  # Create .attribution.yaml here
  attribution config init

  # Replace the config in the home directory
  attribution config init ~/.attribution.yaml --force`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := configName + ".yaml"
		if len(args) == 1 {
			path = args[0]
		}
		force, _ := cmd.Flags().GetBool("force")
		if err := writeDefaultConfig(path, force); err != nil {
			contract.LogFatal("Cannot write config file", err)
		}
		fmt.Fprintf(os.Stderr, "💾 Wrote config to %s\n", path)
	},
}
