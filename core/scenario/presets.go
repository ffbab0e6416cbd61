package scenario

import (
	"fmt"

	"github.com/step6836/marketing-attribution/schema"
)

// fallbackRecommendedShare is used when neither Shapley nor Markov produced a cart share.
const fallbackRecommendedShare = 0.45

// preferredModels are the models whose cart share the recommended preset follows.
var preferredModels = []schema.ModelKind{schema.ShapleyModel, schema.MarkovModel}

// recommendedShare is the mean cart share of the usable preferred models, never below
// the baseline share.
func recommendedShare(cal Calibration, results map[schema.ModelKind]schema.AttributionResult) float64 {
	var sum float64
	var n int
	for _, kind := range preferredModels {
		res, ok := results[kind]
		if !ok || res.Diagnostic.Degraded {
			continue
		}
		if share := schema.ShareOf(res.Credits, schema.CartStage); share > 0 {
			sum += share
			n++
		}
	}
	share := fallbackRecommendedShare
	if n > 0 {
		share = sum / float64(n)
	}
	return schema.Clamp(max(share, cal.BaselineCartShare), 0, 1)
}

// PresetShare returns the cart share of a named preset given the model results.
// results may be nil. Shares satisfy current <= recommended <= aggressive.
func PresetShare(cal Calibration, name string, results map[schema.ModelKind]schema.AttributionResult) (float64, error) {
	switch name {
	case schema.CurrentScenario:
		return cal.BaselineCartShare, nil
	case schema.RecommendedScenario:
		return recommendedShare(cal, results), nil
	case schema.AggressiveScenario:
		rec := recommendedShare(cal, results)
		return schema.Clamp(rec+cal.AggressiveStep, rec, 1), nil
	default:
		return 0, fmt.Errorf("%w: %q", schema.ErrUnknownPreset, name)
	}
}

// Preset projects one named preset.
func Preset(cal Calibration, name string, results map[schema.ModelKind]schema.AttributionResult) (schema.Scenario, error) {
	if err := cal.Validate(); err != nil {
		return schema.Scenario{}, err
	}
	share, err := PresetShare(cal, name, results)
	if err != nil {
		return schema.Scenario{}, err
	}
	sc, err := ProjectShare(cal, share)
	if err != nil {
		return schema.Scenario{}, err
	}
	sc.Name = name
	return sc, nil
}

// Presets projects every named preset in display order.
func Presets(cal Calibration, results map[schema.ModelKind]schema.AttributionResult) ([]schema.Scenario, error) {
	out := make([]schema.Scenario, 0, len(schema.PresetNames))
	for _, name := range schema.PresetNames {
		sc, err := Preset(cal, name, results)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, nil
}
