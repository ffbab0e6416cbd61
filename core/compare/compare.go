// Package compare scores attribution models against each other.
package compare

import (
	"github.com/step6836/marketing-attribution/core/algo"
	"github.com/step6836/marketing-attribution/schema"
)

// Options selects the scoring method.
type Options struct {
	Method    schema.ScoringMethod
	Reference schema.ModelKind // derived accuracy is measured against this model
}

// DefaultOptions returns the profile method with markov as reference.
func DefaultOptions() Options {
	return Options{Method: schema.ProfileScoring, Reference: schema.MarkovModel}
}

// profiles are the published model characteristics.
var profiles = map[schema.ModelKind]schema.ComparisonMetric{
	schema.FirstTouchModel: {Accuracy: 3, Fairness: 2, BusinessValue: 4},
	schema.LastTouchModel:  {Accuracy: 3, Fairness: 2, BusinessValue: 4},
	schema.LinearModel:     {Accuracy: 5, Fairness: 6, BusinessValue: 6},
	schema.ShapleyModel:    {Accuracy: 8, Fairness: 9, BusinessValue: 8},
	schema.MarkovModel:     {Accuracy: 9, Fairness: 8, BusinessValue: 9},
}

// Profile returns the fixed characteristic scores of a model.
func Profile(kind schema.ModelKind) schema.ComparisonMetric {
	return profiles[kind]
}

// Score returns a metric for every model in schema.AllModels. With the derived method,
// a model missing from results, or degraded, scores zero.
func Score(results map[schema.ModelKind]schema.AttributionResult, journeys []schema.Journey, opts Options) map[schema.ModelKind]schema.ComparisonMetric {
	out := make(map[schema.ModelKind]schema.ComparisonMetric, len(schema.AllModels))
	if opts.Method != schema.DerivedScoring {
		for _, kind := range schema.AllModels {
			out[kind] = Profile(kind)
		}
		return out
	}

	reference := opts.Reference
	if reference == "" {
		reference = schema.MarkovModel
	}
	refShares := shares(results[reference])
	stages := stagesByJourney(journeys)

	for _, kind := range schema.AllModels {
		res, ok := results[kind]
		if !ok || res.Diagnostic.Degraded {
			out[kind] = schema.ComparisonMetric{}
			continue
		}
		accuracy := 10 * (1 - algo.TotalVariation(shares(res), refShares))
		fairness := 10 * (1 - meanGini(res.PerJourney, stages))
		out[kind] = schema.ComparisonMetric{
			Accuracy:      schema.Round(schema.Clamp(accuracy, 0, 10), 1),
			Fairness:      schema.Round(schema.Clamp(fairness, 0, 10), 1),
			BusinessValue: schema.Round(schema.Clamp((accuracy+fairness)/2, 0, 10), 1),
		}
	}
	return out
}

// shares converts a result to stage fractions summing to one, or all zero.
func shares(res schema.AttributionResult) schema.StageCredit {
	out := make(schema.StageCredit, len(res.Percentages))
	for s, pct := range res.Percentages {
		out[s] = pct / 100
	}
	return out
}

func stagesByJourney(journeys []schema.Journey) map[string][]schema.Stage {
	out := make(map[string][]schema.Stage, len(journeys))
	for _, j := range journeys {
		out[j.ID] = j.CreditedStages()
	}
	return out
}

// meanGini averages the normalized Gini coefficient of each journey's credit over its
// credited stages. Journeys with a single stage carry no inequality and are skipped.
func meanGini(perJourney []schema.JourneyCredit, stages map[string][]schema.Stage) float64 {
	sum, n := 0.0, 0
	for _, jc := range perJourney {
		ss, ok := stages[jc.JourneyID]
		if !ok {
			for s := range jc.Credits {
				ss = append(ss, s)
			}
		}
		if len(ss) < 2 || jc.Value == 0 {
			continue
		}
		values := make([]float64, len(ss))
		for i, s := range ss {
			values[i] = jc.Credits[s]
		}
		k := float64(len(values))
		sum += algo.Gini(values) * k / (k - 1)
		n++
	}
	return schema.SafeDiv(sum, float64(n))
}
