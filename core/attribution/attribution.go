// Package attribution implements the five credit-assignment models.
//
// Every model is a plain function over the same journey set; Compute dispatches on
// schema.ModelKind. Only converted journeys receive credit, and the credit of each
// journey sums to its conversion value.
package attribution

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/step6836/marketing-attribution/core/algo"
	"github.com/step6836/marketing-attribution/internal/logger"
	"github.com/step6836/marketing-attribution/schema"
)

// Defaults for Params.
const (
	DefaultMaxExactPlayers = 12
	DefaultShapleySamples  = 2000
	DefaultShapleySeed     = 42
	DefaultTolerance       = 1e-12
	DefaultMaxIterations   = 10_000
)

// Params tunes the Shapley and Markov models. The other models ignore it.
type Params struct {
	Coalition       schema.CoalitionMethod
	MaxExactPlayers int
	Samples         int
	Seed            uint64
	Tolerance       float64
	MaxIterations   int
	PivotTolerance  float64
}

// DefaultParams returns the parameters used when nothing is configured.
func DefaultParams() Params {
	return Params{
		Coalition:       schema.DiminishingCoalition,
		MaxExactPlayers: DefaultMaxExactPlayers,
		Samples:         DefaultShapleySamples,
		Seed:            DefaultShapleySeed,
		Tolerance:       DefaultTolerance,
		MaxIterations:   DefaultMaxIterations,
		PivotTolerance:  algo.DefaultPivotTolerance,
	}
}

// creditFunc computes per-journey credit for the converted journeys of a set.
type creditFunc func(ctx context.Context, journeys []schema.Journey, p Params) ([]schema.JourneyCredit, schema.Diagnostic, error)

// Compute runs one model over journeys.
func Compute(ctx context.Context, kind schema.ModelKind, journeys []schema.Journey, p Params) (schema.AttributionResult, error) {
	var fn creditFunc
	switch kind {
	case schema.FirstTouchModel:
		fn = firstTouch
	case schema.LastTouchModel:
		fn = lastTouch
	case schema.LinearModel:
		fn = linear
	case schema.ShapleyModel:
		fn = shapley
	case schema.MarkovModel:
		fn = markov
	default:
		return schema.AttributionResult{}, fmt.Errorf("%w: %q", schema.ErrUnknownModel, kind)
	}
	if err := ctx.Err(); err != nil {
		return schema.AttributionResult{}, err
	}

	perJourney, diag, err := fn(ctx, journeys, p)
	if err != nil {
		return schema.AttributionResult{}, fmt.Errorf("%s model: %w", kind, err)
	}

	res := Aggregate(kind, perJourney)
	res.Diagnostic = diag

	log := logger.FromContext(ctx)
	for _, note := range diag.Notes {
		log.Warn(note, zap.String("model", string(kind)))
	}
	log.Debug("model computed",
		zap.String("model", string(kind)),
		zap.String("method", diag.Method),
		zap.Int("journeys", res.JourneysCredited),
		zap.Float64("total_value", res.TotalValue))
	return res, nil
}

// Aggregate sums per-journey credit into a model result. Every report stage is present.
func Aggregate(kind schema.ModelKind, perJourney []schema.JourneyCredit) schema.AttributionResult {
	credits := Zeroed()
	total := 0.0
	for _, jc := range perJourney {
		for s, v := range jc.Credits {
			credits[s] += v
		}
		total += jc.Value
	}
	return schema.AttributionResult{
		Model:            kind,
		Credits:          credits,
		Percentages:      schema.ToPercentages(credits),
		TotalValue:       total,
		JourneysCredited: len(perJourney),
		PerJourney:       perJourney,
	}
}

// Zeroed returns a credit map holding every report stage at zero.
func Zeroed() schema.StageCredit {
	out := make(schema.StageCredit, len(schema.ReportStages))
	for _, s := range schema.ReportStages {
		out[s] = 0
	}
	return out
}

// eachConverted calls fn for every converted journey with at least one credited touchpoint.
// It stops early when ctx is done.
func eachConverted(ctx context.Context, journeys []schema.Journey, fn func(j schema.Journey) schema.StageCredit) ([]schema.JourneyCredit, error) {
	out := make([]schema.JourneyCredit, 0, len(journeys))
	for i, j := range journeys {
		if !j.Converted || len(j.Credited()) == 0 {
			continue
		}
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		out = append(out, schema.JourneyCredit{JourneyID: j.ID, Value: j.Value, Credits: fn(j)})
	}
	return out, nil
}
