package core

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/step6836/marketing-attribution/core/assemble"
	"github.com/step6836/marketing-attribution/core/compare"
	"github.com/step6836/marketing-attribution/core/journey"
	"github.com/step6836/marketing-attribution/core/scenario"
	"github.com/step6836/marketing-attribution/internal/contract"
	"github.com/step6836/marketing-attribution/internal/logger"
	"github.com/step6836/marketing-attribution/internal/telemetry"
	"github.com/step6836/marketing-attribution/schema"
)

// Run executes one full analysis: load and filter events, build journeys, compute
// every model, score them, project the preset scenarios and assemble the artifact.
// mgr may be nil, in which case nothing is cached or tracked.
func Run(ctx context.Context, cfg *contract.Config, src contract.EventSource, mgr contract.CacheManager) (out *schema.RunOutput, err error) {
	ctx, span := telemetry.Start(ctx, "analyze", attribute.String("source", src.Name()))
	defer func() { telemetry.End(span, err) }()

	log := logger.FromContext(ctx)
	start := time.Now()

	var journeyStore contract.CacheStore
	var analysisStore contract.AnalysisStore
	if mgr != nil {
		journeyStore = mgr.GetJourneyStore()
		analysisStore = mgr.GetAnalysisStore()
	}

	// --- 0. Begin Analysis Tracking (if configured) ---
	ctx = beginTracking(ctx, cfg, src, analysisStore, start)

	// --- 1. Journeys (with caching) ---
	entry, err := cachedJourneys(ctx, cfg, src, journeyStore)
	if err != nil {
		return nil, err
	}
	journeys := journey.Sample(entry.Journeys, cfg.Sample)

	// --- 2. Models ---
	results, err := runModels(ctx, cfg, journeys)
	if err != nil {
		return nil, err
	}

	// --- 3. Comparison and scenarios ---
	scores := compare.Score(results, journeys, compare.Options{Method: cfg.Scoring, Reference: cfg.ReferenceModel})
	scenarios, err := scenario.Presets(calibration(cfg), results)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// --- 4. Assembly ---
	artifact := assemble.Assemble(assemble.Input{
		Ingest:    entry.Ingest,
		Journeys:  journeys,
		Results:   results,
		Scores:    scores,
		Scenarios: scenarios,
	})
	out = &schema.RunOutput{
		Artifact: artifact,
		Results:  results,
		Journeys: journeys,
		RunID:    analysisIDFrom(ctx),
	}

	// --- 5. End Analysis Tracking ---
	finishTracking(ctx, analysisStore, out, entry.Ingest.Total)

	log.Info("analysis complete",
		zap.String("source", src.Name()),
		zap.Int("events", entry.Ingest.Total),
		zap.Int("journeys", len(journeys)),
		zap.Int("converted", artifact.JourneyStats.TotalJourneysAnalyzed),
		zap.Duration("elapsed", time.Since(start)))
	return out, nil
}

// calibration returns the configured calibration, or the defaults when unset.
func calibration(cfg *contract.Config) scenario.Calibration {
	if cfg.Calibration == (scenario.Calibration{}) {
		return scenario.DefaultCalibration()
	}
	return cfg.Calibration
}

// beginTracking opens a run in the analysis store and carries its id in the context.
// Tracking failures never fail the analysis.
func beginTracking(ctx context.Context, cfg *contract.Config, src contract.EventSource, store contract.AnalysisStore, start time.Time) context.Context {
	if store == nil {
		return ctx
	}
	models := make([]string, 0, len(cfg.Models))
	for _, m := range cfg.Models {
		models = append(models, string(m))
	}
	params := map[string]any{
		"source":            src.Name(),
		"session_gap":       cfg.SessionGap.String(),
		"conversion_window": cfg.ConversionWindow.String(),
		"strict":            cfg.Strict,
		"sample":            cfg.Sample,
		"models":            models,
		"scoring":           string(cfg.Scoring),
		"workers":           cfg.Workers,
	}
	id, err := store.BeginAnalysis(start, params)
	if err != nil {
		contract.LogWarn("Analysis tracking initialization failed", err)
		return ctx
	}
	if id <= 0 {
		return ctx
	}
	return withAnalysisID(ctx, id)
}

// finishTracking records the results of a tracked run and closes it.
func finishTracking(ctx context.Context, store contract.AnalysisStore, out *schema.RunOutput, totalEvents int) {
	id := analysisIDFrom(ctx)
	if store == nil || id <= 0 {
		return
	}
	for _, kind := range schema.AllModels {
		res, ok := out.Results[kind]
		if !ok {
			continue
		}
		if err := store.RecordModelCredits(id, res); err != nil {
			contract.LogWarn(fmt.Sprintf("Failed to record %s credits", kind), err)
		}
		metric := out.Artifact.ModelComparison[kind]
		if err := store.RecordModelScores(id, kind, metric, res.Diagnostic.Degraded); err != nil {
			contract.LogWarn(fmt.Sprintf("Failed to record %s scores", kind), err)
		}
	}
	for _, sc := range out.Artifact.Scenarios {
		if err := store.RecordScenario(id, sc); err != nil {
			contract.LogWarn("Failed to record scenario "+sc.Name, err)
		}
	}
	if err := store.EndAnalysis(id, time.Now(), totalEvents, len(out.Journeys), convertedValue(out.Journeys)); err != nil {
		contract.LogWarn("Failed to finalize analysis tracking", err)
	}
}

// convertedValue sums the purchase value of converted journeys.
func convertedValue(journeys []schema.Journey) float64 {
	total := 0.0
	for _, j := range journey.Converted(journeys) {
		total += j.Value
	}
	return total
}
