package core

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/step6836/marketing-attribution/core/attribution"
	"github.com/step6836/marketing-attribution/core/compare"
	"github.com/step6836/marketing-attribution/internal/contract"
	"github.com/step6836/marketing-attribution/internal/logger"
	"github.com/step6836/marketing-attribution/internal/telemetry"
	"github.com/step6836/marketing-attribution/schema"
)

// Diagnostic methods of models that did not run to completion.
const (
	methodFailed  = "failed"
	methodSkipped = "skipped"
)

// modelRules is the one-line credit rule of each model.
var modelRules = map[schema.ModelKind]string{
	schema.FirstTouchModel: "All conversion value goes to the first touchpoint of the journey.",
	schema.LastTouchModel:  "All conversion value goes to the last touchpoint before the purchase.",
	schema.LinearModel:     "Conversion value is split equally across every touchpoint before the purchase.",
	schema.ShapleyModel:    "Each stage earns its average marginal contribution over all orderings of the journey's stages.",
	schema.MarkovModel:     "Each stage earns its removal effect: the drop in conversion probability when the stage is removed from the journey graph.",
}

// DescribeModels returns the description of every model in report order.
func DescribeModels() []schema.ModelDescription {
	out := make([]schema.ModelDescription, 0, len(schema.AllModels))
	for _, kind := range schema.AllModels {
		out = append(out, schema.ModelDescription{
			Model:   kind,
			Name:    schema.ModelDisplayName(kind),
			Rule:    modelRules[kind],
			Profile: compare.Profile(kind),
		})
	}
	return out
}

// attributionParams maps the configuration onto model parameters. Zero values keep
// the defaults.
func attributionParams(cfg *contract.Config) attribution.Params {
	p := attribution.DefaultParams()
	if cfg.Coalition != "" {
		p.Coalition = cfg.Coalition
	}
	if cfg.ShapleyMaxPlayers > 0 {
		p.MaxExactPlayers = cfg.ShapleyMaxPlayers
	}
	if cfg.ShapleySamples > 0 {
		p.Samples = cfg.ShapleySamples
	}
	if cfg.MarkovTolerance > 0 {
		p.Tolerance = cfg.MarkovTolerance
	}
	if cfg.MarkovMaxIter > 0 {
		p.MaxIterations = cfg.MarkovMaxIter
	}
	return p
}

// runModels computes every selected model concurrently over the same journey set.
// A model that fails or panics is replaced by a zeroed, degraded result without
// cancelling its siblings. Only cancellation of ctx fails the whole fan-out.
func runModels(ctx context.Context, cfg *contract.Config, journeys []schema.Journey) (map[schema.ModelKind]schema.AttributionResult, error) {
	log := logger.FromContext(ctx)
	params := attributionParams(cfg)

	selected := make(map[schema.ModelKind]bool, len(cfg.Models))
	for _, m := range cfg.Models {
		selected[m] = true
	}

	// Each worker writes only its own slot
	slots := make([]schema.AttributionResult, len(schema.AllModels))
	g, gctx := errgroup.WithContext(ctx)
	if cfg.Workers > 0 {
		g.SetLimit(cfg.Workers)
	}
	for i, kind := range schema.AllModels {
		if !selected[kind] {
			slots[i] = placeholderResult(kind, methodSkipped, "model not selected")
			continue
		}
		g.Go(func() error {
			mctx, span := telemetry.Start(gctx, "model", attribute.String("model", string(kind)))
			res, err := computeModel(mctx, kind, journeys, params)
			telemetry.End(span, err)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				log.Warn("model degraded", zap.String("model", string(kind)), zap.Error(err))
				res = placeholderResult(kind, methodFailed, err.Error())
			}
			slots[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := make(map[schema.ModelKind]schema.AttributionResult, len(slots))
	for _, res := range slots {
		results[res.Model] = res
	}
	return results, nil
}

// computeFn computes one model. Tests replace it to exercise degradation.
var computeFn = attribution.Compute

// computeModel runs one model and turns a panic into an error.
func computeModel(ctx context.Context, kind schema.ModelKind, journeys []schema.Journey, p attribution.Params) (res schema.AttributionResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s model panicked: %v", kind, r)
		}
	}()
	return computeFn(ctx, kind, journeys, p)
}

// placeholderResult is a zero-credit result flagged as degraded.
func placeholderResult(kind schema.ModelKind, method, note string) schema.AttributionResult {
	credits := attribution.Zeroed()
	return schema.AttributionResult{
		Model:       kind,
		Credits:     credits,
		Percentages: schema.ToPercentages(credits),
		Diagnostic:  schema.Diagnostic{Method: method, Notes: []string{note}, Degraded: true},
	}
}
