package contract

import (
	"context"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/step6836/marketing-attribution/core/ingest"
	"github.com/step6836/marketing-attribution/core/scenario"
	"github.com/step6836/marketing-attribution/schema"
)

// Default values for configuration.
const (
	DefaultSessionGap       = "30m"
	DefaultConversionWindow = "30 days"
	DefaultPrecision        = 1
	DefaultSessionThreshold = 62
	DefaultRatePerMinute    = 120
	DefaultIgnoreStages     = "remove_from_cart"
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "console"
)

// CacheVersion is bumped whenever the cached journey encoding changes.
const CacheVersion = 1

// DefaultWorkers is the default number of concurrent workers to use.
var DefaultWorkers = runtime.GOMAXPROCS(0)

// DateTimeFormat is the default date time representation.
var DateTimeFormat = time.RFC3339

// ProfileConfig holds profiling settings.
type ProfileConfig struct {
	Enabled bool
	Prefix  string
}

// CalibrationRawInput holds scenario calibration overrides from the YAML config file.
// Use float64 pointers for optional fields.
type CalibrationRawInput struct {
	TotalBudget       *float64 `mapstructure:"total_budget"`
	BaselineRevenue   *float64 `mapstructure:"baseline_revenue"`
	BaselineROAS      *float64 `mapstructure:"baseline_roas"`
	BaselineCartShare *float64 `mapstructure:"baseline_cart_share"`
	Slope             *float64 `mapstructure:"slope"`
	MaxLift           *float64 `mapstructure:"max_lift"`
	ROASSensitivity   *float64 `mapstructure:"roas_sensitivity"`
	RiskLow           *float64 `mapstructure:"risk_low"`
	RiskMedium        *float64 `mapstructure:"risk_medium"`
	AggressiveStep    *float64 `mapstructure:"aggressive_step"`
}

// Config holds the runtime configuration for the analysis.
// This struct remains the "final, validated" config.
type Config struct {
	InputPath   string
	InputFormat schema.InputFormat

	SessionGap       time.Duration
	ConversionWindow time.Duration
	Strict           bool
	SessionThreshold int // distinct sessions above which an identity is a bot (0 = off)
	RatePerMinute    int // events per minute above which an identity is a bot (0 = off)
	IgnoreStages     map[schema.Stage]bool
	Sample           int // converting users analyzed (0 = all)

	Models            []schema.ModelKind
	Coalition         schema.CoalitionMethod
	ShapleyMaxPlayers int
	ShapleySamples    int
	MarkovTolerance   float64
	MarkovMaxIter     int
	Scoring           schema.ScoringMethod
	ReferenceModel    schema.ModelKind
	Workers           int

	Calibration     scenario.Calibration
	AwarenessBudget *float64 // set by the scenario command
	Preset          string   // set by the scenario command

	Precision  int
	Output     schema.OutputMode
	OutputFile string
	Width      int // Terminal width override (0 = auto-detect)
	UseColors  bool

	CacheBackend   schema.DatabaseBackend
	CacheDBConnect string // Please use env var as this is plaintext

	AnalysisBackend   schema.DatabaseBackend
	AnalysisDBConnect string // Please use env var as this is plaintext

	LogLevel  string
	LogFormat string
	Trace     bool
}

// ConfigRawInput holds the raw inputs from all sources (flags, env, config file).
// Viper unmarshals into this struct.
type ConfigRawInput struct {
	// This is set manually from positional args, so no tag
	InputPathStr string

	// --- Fields from rootCmd.PersistentFlags() ---
	Input             string  `mapstructure:"input"`
	Format            string  `mapstructure:"format"`
	SessionGap        string  `mapstructure:"session-gap"`
	ConversionWindow  string  `mapstructure:"conversion-window"`
	Strict            string  `mapstructure:"strict"`
	BotSessions       int     `mapstructure:"bot-session-threshold"`
	BotRate           int     `mapstructure:"bot-rate-per-minute"`
	IgnoreStages      string  `mapstructure:"ignore-stages"`
	Sample            int     `mapstructure:"sample"`
	Models            string  `mapstructure:"models"`
	ShapleyValue      string  `mapstructure:"shapley-value"`
	ShapleyMaxPlayers int     `mapstructure:"shapley-max-players"`
	ShapleySamples    int     `mapstructure:"shapley-samples"`
	MarkovTolerance   float64 `mapstructure:"markov-tolerance"`
	MarkovMaxIter     int     `mapstructure:"markov-max-iterations"`
	Scoring           string  `mapstructure:"scoring"`
	ReferenceModel    string  `mapstructure:"reference-model"`
	Workers           int     `mapstructure:"workers"`
	Precision         int     `mapstructure:"precision"`
	Output            string  `mapstructure:"output"`
	OutputFile        string  `mapstructure:"output-file"`
	Width             int     `mapstructure:"width"`
	Color             string  `mapstructure:"color"`
	CacheBackend      string  `mapstructure:"cache-backend"`
	CacheDBConnect    string  `mapstructure:"cache-db-connect"`
	AnalysisBackend   string  `mapstructure:"analysis-backend"`
	AnalysisDBConnect string  `mapstructure:"analysis-db-connect"`
	LogLevel          string  `mapstructure:"log-level"`
	LogFormat         string  `mapstructure:"log-format"`
	Trace             bool    `mapstructure:"trace"`

	// --- Fields from scenarioCmd.Flags() ---
	// AwarenessBudget is set manually when the flag is given, so zero stays distinguishable
	AwarenessBudget *float64 `mapstructure:"-"`
	Preset          string   `mapstructure:"preset"`

	// --- Scenario calibration from config file ---
	Calibration CalibrationRawInput `mapstructure:"calibration"`
}

// Clone returns a deep copy of the Config struct.
func (c *Config) Clone() *Config {
	clone := *c
	if c.IgnoreStages != nil {
		clone.IgnoreStages = make(map[schema.Stage]bool, len(c.IgnoreStages))
		maps.Copy(clone.IgnoreStages, c.IgnoreStages)
	}
	if c.Models != nil {
		clone.Models = slices.Clone(c.Models)
	}
	if c.AwarenessBudget != nil {
		v := *c.AwarenessBudget
		clone.AwarenessBudget = &v
	}
	return &clone
}

// ProcessAndValidate performs all complex parsing and validation on the raw inputs
// and updates the final Config struct.
func ProcessAndValidate(_ context.Context, cfg *Config, input *ConfigRawInput) error {
	if err := validateSimpleInputs(cfg, input); err != nil {
		return err
	}
	if err := processWindows(cfg, input); err != nil {
		return err
	}
	if err := processModels(cfg, input); err != nil {
		return err
	}
	if err := processCalibration(cfg, input); err != nil {
		return err
	}
	if err := resolveInputPath(cfg, input); err != nil {
		return err
	}
	return nil
}

// ValidateDatabaseConnectionString validates the format of database connection strings
// for MySQL, PostgreSQL and Redis backends.
func ValidateDatabaseConnectionString(backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.SQLiteBackend, schema.NoneBackend:
		return nil
	case schema.MySQLBackend:
		if connStr == "" {
			return fmt.Errorf("db-connect is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "@tcp(") {
			return fmt.Errorf("MySQL connection string must contain '@tcp(' for host:port specification")
		}
		if !strings.Contains(connStr, "/") {
			return fmt.Errorf("MySQL connection string must contain '/' followed by database name")
		}
	case schema.PostgreSQLBackend:
		if connStr == "" {
			return fmt.Errorf("db-connect is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "host=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'host=' parameter")
		}
		if !strings.Contains(connStr, "dbname=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'dbname=' parameter")
		}
	case schema.RedisBackend:
		if connStr == "" {
			return fmt.Errorf("db-connect is required when using %s backend", backend)
		}
		if !strings.HasPrefix(connStr, "redis://") && !strings.HasPrefix(connStr, "rediss://") {
			return fmt.Errorf("Redis connection string must be a redis:// or rediss:// URL")
		}
	}
	return nil
}

// validateBackendConfigs validates cache and analysis backend configurations.
func validateBackendConfigs(cfg *Config, input *ConfigRawInput) error {
	// --- Cache Backend Validation ---
	cfg.CacheBackend = schema.DatabaseBackend(strings.ToLower(input.CacheBackend))
	if _, ok := schema.ValidCacheBackends[cfg.CacheBackend]; !ok {
		return fmt.Errorf("invalid cache backend '%s'. must be sqlite, mysql, postgresql, redis, none", input.CacheBackend)
	}
	cfg.CacheDBConnect = input.CacheDBConnect
	if err := ValidateDatabaseConnectionString(cfg.CacheBackend, cfg.CacheDBConnect); err != nil {
		return err
	}

	// --- Analysis Backend Validation ---
	cfg.AnalysisBackend = schema.DatabaseBackend(strings.ToLower(input.AnalysisBackend))
	if cfg.AnalysisBackend == "" {
		return nil
	}
	if _, ok := schema.ValidAnalysisBackends[cfg.AnalysisBackend]; !ok {
		return fmt.Errorf("invalid analysis backend '%s'. must be sqlite, mysql, postgresql, none", input.AnalysisBackend)
	}
	cfg.AnalysisDBConnect = input.AnalysisDBConnect
	if err := ValidateDatabaseConnectionString(cfg.AnalysisBackend, cfg.AnalysisDBConnect); err != nil {
		return err
	}

	// For SQLite, resolve to actual file paths to catch default path conflicts
	if cfg.CacheBackend == schema.SQLiteBackend && cfg.AnalysisBackend == schema.SQLiteBackend {
		cacheDBPath := cfg.CacheDBConnect
		if cacheDBPath == "" {
			cacheDBPath = GetCacheDBFilePath()
		}
		analysisDBPath := cfg.AnalysisDBConnect
		if analysisDBPath == "" {
			analysisDBPath = GetAnalysisDBFilePath()
		}
		if cacheDBPath == analysisDBPath {
			return fmt.Errorf("cache and analysis storage must use different SQLite database files. Both resolve to %q", cacheDBPath)
		}
	}
	return nil
}

// validateSimpleInputs processes and validates all non-path related fields.
func validateSimpleInputs(cfg *Config, input *ConfigRawInput) error {
	// --- 0. Transfer simple non-validated fields from input -> cfg ---
	cfg.OutputFile = input.OutputFile
	cfg.Width = input.Width
	cfg.Trace = input.Trace
	cfg.Sample = input.Sample
	cfg.IgnoreStages = ingest.ParseIgnoreStages(input.IgnoreStages)

	strict, err := ParseBoolString(defaultString(input.Strict, "yes"))
	if err != nil {
		return fmt.Errorf("invalid --strict value: %w", err)
	}
	cfg.Strict = strict

	colors, err := ParseBoolString(defaultString(input.Color, "yes"))
	if err != nil {
		return fmt.Errorf("invalid --color value: %w", err)
	}
	cfg.UseColors = colors

	// --- 1. Format Validation ---
	cfg.InputFormat = schema.InputFormat(strings.ToLower(defaultString(input.Format, string(schema.AutoFormat))))
	if _, ok := schema.ValidInputFormats[cfg.InputFormat]; !ok {
		return fmt.Errorf("invalid input format '%s'. must be auto, csv, jsonl, parquet", input.Format)
	}

	// --- 2. Workers and bot thresholds ---
	if input.Workers <= 0 {
		return fmt.Errorf("workers must be greater than 0 (received %d)", input.Workers)
	}
	cfg.Workers = input.Workers
	if input.BotSessions < 0 || input.BotRate < 0 {
		return fmt.Errorf("bot thresholds cannot be negative (received %d sessions, %d per minute)", input.BotSessions, input.BotRate)
	}
	cfg.SessionThreshold = input.BotSessions
	cfg.RatePerMinute = input.BotRate
	if input.Sample < 0 {
		return fmt.Errorf("sample cannot be negative (received %d)", input.Sample)
	}

	// --- 3. Precision and Output Validation ---
	if input.Precision < 1 || input.Precision > 2 {
		return fmt.Errorf("precision must be 1 or 2 (received %d)", input.Precision)
	}
	cfg.Precision = input.Precision

	cfg.Output = schema.OutputMode(strings.ToLower(input.Output))
	if _, ok := schema.ValidOutputModes[cfg.Output]; !ok {
		return fmt.Errorf("invalid output format '%s'. must be text, csv, json, parquet", cfg.Output)
	}
	if cfg.Output == schema.ParquetOut && cfg.OutputFile == "" {
		return fmt.Errorf("parquet output requires --output-file")
	}

	// --- 4. Logging ---
	cfg.LogLevel = strings.ToLower(defaultString(input.LogLevel, DefaultLogLevel))
	cfg.LogFormat = strings.ToLower(defaultString(input.LogFormat, DefaultLogFormat))
	if cfg.LogFormat != "console" && cfg.LogFormat != "json" {
		return fmt.Errorf("invalid log format '%s'. must be console, json", input.LogFormat)
	}

	// --- 5. Backend Validation ---
	return validateBackendConfigs(cfg, input)
}

// processWindows parses the session gap and conversion window.
func processWindows(cfg *Config, input *ConfigRawInput) error {
	gap, err := ParseDuration(defaultString(input.SessionGap, DefaultSessionGap))
	if err != nil {
		return fmt.Errorf("invalid session gap: %w", err)
	}
	cfg.SessionGap = gap

	window := defaultString(input.ConversionWindow, DefaultConversionWindow)
	if strings.EqualFold(window, "none") {
		cfg.ConversionWindow = 0
		return nil
	}
	cw, err := ParseDuration(window)
	if err != nil {
		return fmt.Errorf("invalid conversion window: %w", err)
	}
	if cw < gap {
		return fmt.Errorf("conversion window (%s) cannot be shorter than the session gap (%s)", cw, gap)
	}
	cfg.ConversionWindow = cw
	return nil
}

// processModels handles model selection and the Shapley, Markov and scoring options.
func processModels(cfg *Config, input *ConfigRawInput) error {
	cfg.Models = nil
	if strings.TrimSpace(input.Models) == "" || strings.EqualFold(strings.TrimSpace(input.Models), "all") {
		cfg.Models = slices.Clone(schema.AllModels)
	} else {
		for part := range strings.SplitSeq(input.Models, ",") {
			m := schema.ModelKind(strings.ToLower(strings.TrimSpace(part)))
			if m == "" {
				continue
			}
			if !schema.ValidModels[m] {
				return fmt.Errorf("invalid model '%s'. must be first_touch, last_touch, linear, shapley, markov", part)
			}
			if !slices.Contains(cfg.Models, m) {
				cfg.Models = append(cfg.Models, m)
			}
		}
	}

	cfg.Coalition = schema.CoalitionMethod(strings.ToLower(defaultString(input.ShapleyValue, string(schema.DiminishingCoalition))))
	if !schema.ValidCoalitionMethods[cfg.Coalition] {
		return fmt.Errorf("invalid shapley value function '%s'. must be diminishing, coverage", input.ShapleyValue)
	}
	if input.ShapleyMaxPlayers < 0 || input.ShapleyMaxPlayers > 20 {
		return fmt.Errorf("shapley-max-players must be between 0 and 20 (received %d)", input.ShapleyMaxPlayers)
	}
	cfg.ShapleyMaxPlayers = input.ShapleyMaxPlayers
	if input.ShapleySamples < 0 {
		return fmt.Errorf("shapley-samples cannot be negative (received %d)", input.ShapleySamples)
	}
	cfg.ShapleySamples = input.ShapleySamples
	if input.MarkovTolerance < 0 || input.MarkovMaxIter < 0 {
		return fmt.Errorf("markov tolerance and iterations cannot be negative")
	}
	cfg.MarkovTolerance = input.MarkovTolerance
	cfg.MarkovMaxIter = input.MarkovMaxIter

	cfg.Scoring = schema.ScoringMethod(strings.ToLower(defaultString(input.Scoring, string(schema.ProfileScoring))))
	if !schema.ValidScoringMethods[cfg.Scoring] {
		return fmt.Errorf("invalid scoring method '%s'. must be profile, derived", input.Scoring)
	}
	cfg.ReferenceModel = schema.ModelKind(strings.ToLower(defaultString(input.ReferenceModel, string(schema.MarkovModel))))
	if !schema.ValidModels[cfg.ReferenceModel] {
		return fmt.Errorf("invalid reference model '%s'", input.ReferenceModel)
	}
	return nil
}

// processCalibration merges calibration overrides onto the defaults and validates them.
func processCalibration(cfg *Config, input *ConfigRawInput) error {
	cal := scenario.DefaultCalibration()
	raw := input.Calibration
	for _, o := range []struct {
		src *float64
		dst *float64
	}{
		{raw.TotalBudget, &cal.TotalBudget},
		{raw.BaselineRevenue, &cal.BaselineRevenue},
		{raw.BaselineROAS, &cal.BaselineROAS},
		{raw.BaselineCartShare, &cal.BaselineCartShare},
		{raw.Slope, &cal.Slope},
		{raw.MaxLift, &cal.MaxLift},
		{raw.ROASSensitivity, &cal.ROASSensitivity},
		{raw.RiskLow, &cal.RiskThresholds.Low},
		{raw.RiskMedium, &cal.RiskThresholds.Medium},
		{raw.AggressiveStep, &cal.AggressiveStep},
	} {
		if o.src != nil {
			*o.dst = *o.src
		}
	}
	if err := cal.Validate(); err != nil {
		return err
	}
	cfg.Calibration = cal

	cfg.Preset = strings.ToLower(strings.TrimSpace(input.Preset))
	if cfg.Preset != "" && !slices.Contains(schema.PresetNames, cfg.Preset) {
		return fmt.Errorf("%w: %q (must be current, recommended, aggressive)", schema.ErrUnknownPreset, input.Preset)
	}
	if input.AwarenessBudget != nil {
		v := *input.AwarenessBudget
		if v < 0 || v > cal.TotalBudget {
			return fmt.Errorf("%w: awareness budget %v not in [0, %v]", schema.ErrBudgetOutOfRange, v, cal.TotalBudget)
		}
		cfg.AwarenessBudget = &v
	}
	if cfg.Preset != "" && cfg.AwarenessBudget != nil {
		return fmt.Errorf("--preset and --awareness-budget are mutually exclusive")
	}
	return nil
}

// resolveInputPath resolves the event log path. Positional args win over --input.
func resolveInputPath(cfg *Config, input *ConfigRawInput) error {
	p := strings.TrimSpace(input.InputPathStr)
	if p == "" {
		p = strings.TrimSpace(input.Input)
	}
	if p == "" {
		cfg.InputPath = ""
		return nil
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("%w: %v", schema.ErrSourceUnavailable, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", schema.ErrSourceUnavailable, abs)
	}
	cfg.InputPath = abs
	if cfg.InputFormat == schema.AutoFormat {
		cfg.InputFormat = DetectFormat(abs)
	}
	return nil
}

// RevalidateInput points cfg at another event log, as the MCP tools do per request.
// An empty format is detected from the file extension.
func RevalidateInput(cfg *Config, path, format string) error {
	cfg.InputFormat = schema.InputFormat(strings.ToLower(defaultString(format, string(schema.AutoFormat))))
	if _, ok := schema.ValidInputFormats[cfg.InputFormat]; !ok {
		return fmt.Errorf("invalid input format '%s'. must be auto, csv, jsonl, parquet", format)
	}
	return resolveInputPath(cfg, &ConfigRawInput{InputPathStr: path})
}

// DetectFormat infers the input format from a file extension, defaulting to CSV.
func DetectFormat(path string) schema.InputFormat {
	switch strings.ToLower(filepath.Ext(strings.TrimSuffix(path, ".gz"))) {
	case ".jsonl", ".ndjson", ".json":
		return schema.JSONLFormat
	case ".parquet":
		return schema.ParquetFormat
	default:
		return schema.CSVFormat
	}
}

// ProcessProfilingConfig handles the profiling flag and sets up profiling configuration.
func ProcessProfilingConfig(profile *ProfileConfig, profilePrefix string) error {
	if profilePrefix != "" {
		profile.Enabled = true
		profile.Prefix = profilePrefix
	}
	return nil
}

func defaultString(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return strings.TrimSpace(s)
}
