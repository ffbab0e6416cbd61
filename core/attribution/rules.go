package attribution

import (
	"context"

	"github.com/step6836/marketing-attribution/schema"
)

// firstTouch gives the whole value to the first credited touchpoint.
func firstTouch(ctx context.Context, journeys []schema.Journey, _ Params) ([]schema.JourneyCredit, schema.Diagnostic, error) {
	out, err := eachConverted(ctx, journeys, func(j schema.Journey) schema.StageCredit {
		return schema.StageCredit{j.Credited()[0].Stage: j.Value}
	})
	return out, schema.Diagnostic{Method: "rule"}, err
}

// lastTouch gives the whole value to the touchpoint right before the purchase.
func lastTouch(ctx context.Context, journeys []schema.Journey, _ Params) ([]schema.JourneyCredit, schema.Diagnostic, error) {
	out, err := eachConverted(ctx, journeys, func(j schema.Journey) schema.StageCredit {
		tps := j.Credited()
		return schema.StageCredit{tps[len(tps)-1].Stage: j.Value}
	})
	return out, schema.Diagnostic{Method: "rule"}, err
}

// linear splits the value equally over the credited touchpoints.
func linear(ctx context.Context, journeys []schema.Journey, _ Params) ([]schema.JourneyCredit, schema.Diagnostic, error) {
	out, err := eachConverted(ctx, journeys, func(j schema.Journey) schema.StageCredit {
		tps := j.Credited()
		share := j.Value / float64(len(tps))
		credits := make(schema.StageCredit)
		for _, tp := range tps {
			credits[tp.Stage] += share
		}
		return credits
	})
	return out, schema.Diagnostic{Method: "rule"}, err
}

// splitEqually divides value over stages, used when a weighting collapses to zero.
func splitEqually(stages []schema.Stage, value float64) schema.StageCredit {
	credits := make(schema.StageCredit, len(stages))
	for _, s := range stages {
		credits[s] += value / float64(len(stages))
	}
	return credits
}

// splitByWeight divides value proportionally to weights over stages. It reports false
// when the weights sum to zero.
func splitByWeight(stages []schema.Stage, weights map[schema.Stage]float64, value float64) (schema.StageCredit, bool) {
	sum := 0.0
	for _, s := range stages {
		sum += max(weights[s], 0)
	}
	if sum <= 0 {
		return nil, false
	}
	credits := make(schema.StageCredit, len(stages))
	for _, s := range stages {
		credits[s] = value * max(weights[s], 0) / sum
	}
	return credits, true
}
