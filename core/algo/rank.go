// Package algo has numeric helpers shared by the attribution models and the scorer.
package algo

import (
	"math"
	"sort"

	"github.com/step6836/marketing-attribution/schema"
)

// RankStages returns the stages of credits sorted by credit in descending order.
// Ties fall back to report order so the output is deterministic.
func RankStages(credits schema.StageCredit) []schema.Stage {
	order := make(map[schema.Stage]int, len(schema.ReportStages))
	for i, s := range schema.ReportStages {
		order[s] = i
	}
	stages := make([]schema.Stage, 0, len(credits))
	for s := range credits {
		stages = append(stages, s)
	}
	sort.Slice(stages, func(i, j int) bool {
		if credits[stages[i]] != credits[stages[j]] {
			return credits[stages[i]] > credits[stages[j]]
		}
		return rankKey(order, stages[i]) < rankKey(order, stages[j])
	})
	return stages
}

func rankKey(order map[schema.Stage]int, s schema.Stage) int {
	if i, ok := order[s]; ok {
		return i
	}
	return len(order)
}

// Gini calculates the Gini coefficient for a set of values.
// The Gini coefficient measures inequality in a distribution, ranging from 0 (perfect equality)
// to 1 (perfect inequality). It's used here to measure how unevenly a journey's value is
// spread over its stages.
func Gini(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(n)
	if mean == 0 {
		return 0
	}

	var diffSum float64
	for i := range n {
		for j := range n {
			diffSum += math.Abs(values[i] - values[j])
		}
	}

	g := diffSum / (2 * float64(n*n) * mean)
	return math.Min(math.Max(g, 0), 1) // clamp to [0,1]
}

// TotalVariation returns half the L1 distance between two share distributions
// expressed as fractions. Missing stages count as zero.
func TotalVariation(a, b schema.StageCredit) float64 {
	keys := make(map[schema.Stage]bool)
	for s := range a {
		keys[s] = true
	}
	for s := range b {
		keys[s] = true
	}
	d := 0.0
	for s := range keys {
		d += math.Abs(a[s] - b[s])
	}
	return d / 2
}
