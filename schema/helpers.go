package schema

import "math"

// SafeDiv returns a/b, or zero when b is zero or the result is not finite.
func SafeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	v := a / b
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Round rounds v to the given number of decimals.
func Round(v float64, decimals int) float64 {
	p := math.Pow10(decimals)
	return math.Round(v*p) / p
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// ToPercentages converts currency credits to percentages of their total.
// All report stages are present in the result, zero when uncredited.
func ToPercentages(credits StageCredit) StageCredit {
	total := credits.Total()
	out := make(StageCredit, len(ReportStages))
	for _, s := range ReportStages {
		out[s] = 0
	}
	for s, v := range credits {
		out[s] = SafeDiv(v, total) * 100
	}
	return out
}

// ShareOf returns the fraction of credit on stage among view and cart only.
func ShareOf(credits StageCredit, stage Stage) float64 {
	return SafeDiv(credits[stage], credits[ViewStage]+credits[CartStage])
}

// ModelDisplayName returns the human-readable name of a model.
func ModelDisplayName(m ModelKind) string {
	switch m {
	case FirstTouchModel:
		return "First-Touch"
	case LastTouchModel:
		return "Last-Touch"
	case LinearModel:
		return "Linear"
	case ShapleyModel:
		return "Shapley Value"
	case MarkovModel:
		return "Markov Chain"
	default:
		return string(m)
	}
}
