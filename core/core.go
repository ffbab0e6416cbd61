// Package core runs the attribution pipeline: ingestion, journey building, the
// attribution models, comparison scoring and scenario projection.
package core

import (
	"context"
	"errors"
	"time"

	"github.com/step6836/marketing-attribution/core/scenario"
	"github.com/step6836/marketing-attribution/internal/contract"
	"github.com/step6836/marketing-attribution/internal/eventsrc"
	"github.com/step6836/marketing-attribution/internal/outwriter"
	"github.com/step6836/marketing-attribution/schema"
)

// ExecutorFunc defines the function signature for executing the CLI commands.
type ExecutorFunc func(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error

// errNoInput is returned when a command needs an event log and none was given.
var errNoInput = errors.New("an event log is required (pass a path or --input)")

// openSource returns the event source named by the configuration.
func openSource(cfg *contract.Config) (contract.EventSource, error) {
	if cfg.InputPath == "" {
		return nil, errNoInput
	}
	return eventsrc.New(cfg.InputPath, cfg.InputFormat)
}

// ExecuteAnalyze runs the full analysis and writes the result artifact.
// It serves as the main entry point for the 'analyze' command.
func ExecuteAnalyze(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error {
	start := time.Now()
	src, err := openSource(cfg)
	if err != nil {
		return err
	}
	out, err := Run(ctx, cfg, src, mgr)
	if err != nil {
		return err
	}
	return outwriter.NewOutWriter().WriteAnalysis(*out, cfg, time.Since(start))
}

// ExecuteScenario projects budget scenarios. Without an event log the presets fall
// back to their fixed cart shares.
func ExecuteScenario(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error {
	start := time.Now()
	var results map[schema.ModelKind]schema.AttributionResult
	if cfg.InputPath != "" && cfg.AwarenessBudget == nil {
		src, err := openSource(cfg)
		if err != nil {
			return err
		}
		out, err := Run(ctx, cfg, src, mgr)
		if err != nil {
			return err
		}
		results = out.Results
	}
	scenarios, err := ProjectScenarios(cfg, results)
	if err != nil {
		return err
	}
	return outwriter.NewOutWriter().WriteScenarios(scenarios, cfg, time.Since(start))
}

// ProjectScenarios resolves the scenario request of cfg: an explicit awareness
// budget, a single preset, or every preset. results may be nil.
func ProjectScenarios(cfg *contract.Config, results map[schema.ModelKind]schema.AttributionResult) ([]schema.Scenario, error) {
	cal := calibration(cfg)
	switch {
	case cfg.AwarenessBudget != nil:
		sc, err := scenario.Project(cal, *cfg.AwarenessBudget)
		if err != nil {
			return nil, err
		}
		return []schema.Scenario{sc}, nil
	case cfg.Preset != "":
		sc, err := scenario.Preset(cal, cfg.Preset, results)
		if err != nil {
			return nil, err
		}
		return []schema.Scenario{sc}, nil
	default:
		return scenario.Presets(cal, results)
	}
}

// ExecuteModels describes the available attribution models.
func ExecuteModels(_ context.Context, cfg *contract.Config, _ contract.CacheManager) error {
	return outwriter.NewOutWriter().WriteModels(DescribeModels(), cfg)
}
