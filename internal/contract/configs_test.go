package contract

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/step6836/marketing-attribution/schema"
)

// validInput returns the raw input produced by the CLI defaults.
func validInput() *ConfigRawInput {
	return &ConfigRawInput{
		Format:           "auto",
		SessionGap:       DefaultSessionGap,
		ConversionWindow: DefaultConversionWindow,
		Strict:           "yes",
		BotSessions:      DefaultSessionThreshold,
		BotRate:          DefaultRatePerMinute,
		IgnoreStages:     DefaultIgnoreStages,
		Models:           "all",
		Workers:          4,
		Precision:        1,
		Output:           "text",
		Color:            "yes",
		CacheBackend:     "none",
		AnalysisBackend:  "none",
	}
}

func TestProcessAndValidate(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "events.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("event_time\n"), 0o644))

	tests := []struct {
		name        string
		mutate      func(*ConfigRawInput)
		expectError bool
		check       func(*testing.T, *Config)
	}{
		{
			name: "valid minimal config",
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 30*time.Minute, cfg.SessionGap)
				assert.Equal(t, 30*24*time.Hour, cfg.ConversionWindow)
				assert.True(t, cfg.Strict)
				assert.Equal(t, schema.AllModels, cfg.Models)
				assert.True(t, cfg.IgnoreStages["remove_from_cart"])
				assert.Equal(t, schema.ProfileScoring, cfg.Scoring)
				assert.Equal(t, schema.MarkovModel, cfg.ReferenceModel)
				assert.Equal(t, 5_000_000.0, cfg.Calibration.TotalBudget)
				assert.Empty(t, cfg.InputPath)
			},
		},
		{
			name:   "positional input detects format",
			mutate: func(in *ConfigRawInput) { in.InputPathStr = csvPath },
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, csvPath, cfg.InputPath)
				assert.Equal(t, schema.CSVFormat, cfg.InputFormat)
			},
		},
		{
			name:        "missing input file",
			mutate:      func(in *ConfigRawInput) { in.Input = filepath.Join(dir, "nope.csv") },
			expectError: true,
		},
		{
			name:   "model subset deduped",
			mutate: func(in *ConfigRawInput) { in.Models = "Shapley, markov,shapley" },
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, []schema.ModelKind{schema.ShapleyModel, schema.MarkovModel}, cfg.Models)
			},
		},
		{name: "invalid model", mutate: func(in *ConfigRawInput) { in.Models = "time_decay" }, expectError: true},
		{name: "invalid format", mutate: func(in *ConfigRawInput) { in.Format = "xml" }, expectError: true},
		{name: "zero workers", mutate: func(in *ConfigRawInput) { in.Workers = 0 }, expectError: true},
		{name: "invalid precision", mutate: func(in *ConfigRawInput) { in.Precision = 3 }, expectError: true},
		{name: "invalid output", mutate: func(in *ConfigRawInput) { in.Output = "yaml" }, expectError: true},
		{name: "parquet needs file", mutate: func(in *ConfigRawInput) { in.Output = "parquet" }, expectError: true},
		{name: "invalid strict", mutate: func(in *ConfigRawInput) { in.Strict = "maybe" }, expectError: true},
		{name: "invalid session gap", mutate: func(in *ConfigRawInput) { in.SessionGap = "soon" }, expectError: true},
		{name: "window shorter than gap", mutate: func(in *ConfigRawInput) { in.ConversionWindow = "1m" }, expectError: true},
		{name: "invalid scoring", mutate: func(in *ConfigRawInput) { in.Scoring = "vibes" }, expectError: true},
		{name: "invalid coalition", mutate: func(in *ConfigRawInput) { in.ShapleyValue = "banzhaf" }, expectError: true},
		{name: "too many exact players", mutate: func(in *ConfigRawInput) { in.ShapleyMaxPlayers = 30 }, expectError: true},
		{name: "invalid log format", mutate: func(in *ConfigRawInput) { in.LogFormat = "xml" }, expectError: true},
		{
			name:   "unbounded window",
			mutate: func(in *ConfigRawInput) { in.ConversionWindow = "none" },
			check: func(t *testing.T, cfg *Config) {
				assert.Zero(t, cfg.ConversionWindow)
			},
		},
		{
			name: "calibration override",
			mutate: func(in *ConfigRawInput) {
				total, slope := 1_000_000.0, 50.0
				in.Calibration = CalibrationRawInput{TotalBudget: &total, Slope: &slope}
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 1_000_000.0, cfg.Calibration.TotalBudget)
				assert.Equal(t, 50.0, cfg.Calibration.Slope)
				assert.Equal(t, 0.40, cfg.Calibration.BaselineCartShare)
			},
		},
		{
			name: "invalid calibration",
			mutate: func(in *ConfigRawInput) {
				share := 2.0
				in.Calibration = CalibrationRawInput{BaselineCartShare: &share}
			},
			expectError: true,
		},
		{
			name: "awareness budget out of range",
			mutate: func(in *ConfigRawInput) {
				v := 6_000_000.0
				in.AwarenessBudget = &v
			},
			expectError: true,
		},
		{
			name: "awareness budget and preset",
			mutate: func(in *ConfigRawInput) {
				v := 1.0
				in.AwarenessBudget = &v
				in.Preset = "current"
			},
			expectError: true,
		},
		{name: "unknown preset", mutate: func(in *ConfigRawInput) { in.Preset = "moonshot" }, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validInput()
			if tt.mutate != nil {
				tt.mutate(input)
			}
			cfg := &Config{}
			err := ProcessAndValidate(context.Background(), cfg, input)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestValidateBackendConfigs(t *testing.T) {
	tests := []struct {
		name        string
		cache       string
		cacheConn   string
		analysis    string
		analysisCon string
		expectError bool
	}{
		{"sqlite defaults differ", "sqlite", "", "sqlite", "", false},
		{"same sqlite file", "sqlite", "/tmp/x.db", "sqlite", "/tmp/x.db", true},
		{"mysql valid", "mysql", "user:pass@tcp(localhost:3306)/db", "none", "", false},
		{"mysql missing tcp", "mysql", "user:pass@localhost/db", "none", "", true},
		{"postgres valid", "postgresql", "host=localhost dbname=x", "none", "", false},
		{"postgres missing dbname", "postgresql", "host=localhost", "none", "", true},
		{"redis valid", "redis", "redis://localhost:6379/0", "none", "", false},
		{"redis bad url", "redis", "localhost:6379", "none", "", true},
		{"redis cannot track analysis", "none", "", "redis", "redis://localhost:6379/0", true},
		{"unknown backend", "mongo", "", "none", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validInput()
			input.CacheBackend = tt.cache
			input.CacheDBConnect = tt.cacheConn
			input.AnalysisBackend = tt.analysis
			input.AnalysisDBConnect = tt.analysisCon
			err := validateBackendConfigs(&Config{}, input)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigClone(t *testing.T) {
	v := 10.0
	cfg := &Config{
		Models:          []schema.ModelKind{schema.LinearModel},
		IgnoreStages:    map[schema.Stage]bool{"remove_from_cart": true},
		AwarenessBudget: &v,
	}
	clone := cfg.Clone()
	clone.Models[0] = schema.MarkovModel
	clone.IgnoreStages["x"] = true
	*clone.AwarenessBudget = 20

	assert.Equal(t, schema.LinearModel, cfg.Models[0])
	assert.NotContains(t, cfg.IgnoreStages, schema.Stage("x"))
	assert.Equal(t, 10.0, *cfg.AwarenessBudget)
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, schema.CSVFormat, DetectFormat("events.csv"))
	assert.Equal(t, schema.CSVFormat, DetectFormat("events.csv.gz"))
	assert.Equal(t, schema.JSONLFormat, DetectFormat("events.jsonl"))
	assert.Equal(t, schema.JSONLFormat, DetectFormat("events.ndjson"))
	assert.Equal(t, schema.ParquetFormat, DetectFormat("EVENTS.PARQUET"))
	assert.Equal(t, schema.CSVFormat, DetectFormat("events"))
}

func TestRevalidateInput(t *testing.T) {
	dir := t.TempDir()
	jsonlPath := filepath.Join(dir, "events.jsonl")
	require.NoError(t, os.WriteFile(jsonlPath, []byte("{}\n"), 0o644))

	cfg := &Config{InputFormat: schema.CSVFormat}
	require.NoError(t, RevalidateInput(cfg, jsonlPath, ""))
	assert.Equal(t, jsonlPath, cfg.InputPath)
	assert.Equal(t, schema.JSONLFormat, cfg.InputFormat)

	require.NoError(t, RevalidateInput(cfg, jsonlPath, "csv"))
	assert.Equal(t, schema.CSVFormat, cfg.InputFormat)

	assert.Error(t, RevalidateInput(cfg, jsonlPath, "xml"))
	err := RevalidateInput(cfg, filepath.Join(dir, "missing.csv"), "")
	assert.ErrorIs(t, err, schema.ErrSourceUnavailable)
}
