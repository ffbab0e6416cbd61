package attribution

import (
	"context"
	"fmt"
	"math"
	"math/bits"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/step6836/marketing-attribution/schema"
)

// Diminishing-returns coalition parameters.
var stageWeights = map[schema.Stage]float64{
	schema.ViewStage:     0.3,
	schema.CartStage:     0.6,
	schema.PurchaseStage: 1.0,
}

const (
	otherStageWeight = 0.1
	coalitionCap     = 0.95
)

// CoalitionValue scores a set of stages. It must return zero for the empty set and
// never decrease when a stage is added.
type CoalitionValue interface {
	Value(coalition []schema.Stage) float64
}

// DiminishingReturns is v(S) = min(cap, 1 - exp(-sum(w)/2)) with fixed stage weights.
type DiminishingReturns struct{}

// Value implements CoalitionValue.
func (DiminishingReturns) Value(coalition []schema.Stage) float64 {
	if len(coalition) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range coalition {
		w, ok := stageWeights[s]
		if !ok {
			w = otherStageWeight
		}
		sum += w
	}
	return math.Min(coalitionCap, 1-math.Exp(-sum/2))
}

// Coverage values a coalition by the share of converted journeys whose credited stages
// it fully contains.
type Coverage struct {
	sets  []map[schema.Stage]bool
	total int
}

// NewCoverage builds a Coverage over the converted journeys of the set.
func NewCoverage(journeys []schema.Journey) *Coverage {
	c := &Coverage{}
	for _, j := range journeys {
		if !j.Converted {
			continue
		}
		set := make(map[schema.Stage]bool)
		for _, s := range j.CreditedStages() {
			set[s] = true
		}
		c.sets = append(c.sets, set)
	}
	c.total = len(c.sets)
	return c
}

// Value implements CoalitionValue.
func (c *Coverage) Value(coalition []schema.Stage) float64 {
	if len(coalition) == 0 || c.total == 0 {
		return 0
	}
	in := make(map[schema.Stage]bool, len(coalition))
	for _, s := range coalition {
		in[s] = true
	}
	covered := 0
	for _, set := range c.sets {
		ok := true
		for s := range set {
			if !in[s] {
				ok = false
				break
			}
		}
		if ok {
			covered++
		}
	}
	return float64(covered) / float64(c.total)
}

// memoValue caches coalition values by their sorted stage list.
type memoValue struct {
	inner CoalitionValue
	cache map[string]float64
}

func (m *memoValue) Value(coalition []schema.Stage) float64 {
	key := make([]string, len(coalition))
	for i, s := range coalition {
		key[i] = string(s)
	}
	slices.Sort(key)
	k := strings.Join(key, ",")
	if v, ok := m.cache[k]; ok {
		return v
	}
	v := m.inner.Value(coalition)
	m.cache[k] = v
	return v
}

func coalitionFor(p Params, journeys []schema.Journey) CoalitionValue {
	var inner CoalitionValue = DiminishingReturns{}
	if p.Coalition == schema.CoverageCoalition {
		inner = NewCoverage(journeys)
	}
	return &memoValue{inner: inner, cache: make(map[string]float64)}
}

// shapley credits each journey's distinct stages by their Shapley value under the
// configured coalition function, scaled so the journey's credit equals its value.
func shapley(ctx context.Context, journeys []schema.Journey, p Params) ([]schema.JourneyCredit, schema.Diagnostic, error) {
	v := coalitionFor(p, journeys)
	maxExact := p.MaxExactPlayers
	if maxExact <= 0 {
		maxExact = DefaultMaxExactPlayers
	}
	rng := rand.New(rand.NewPCG(p.Seed, p.Seed^0x9e3779b97f4a7c15))

	diag := schema.Diagnostic{Method: "exact"}
	sampled, fallback := 0, 0
	out, err := eachConverted(ctx, journeys, func(j schema.Journey) schema.StageCredit {
		players := j.CreditedStages()
		if len(players) == 1 {
			return schema.StageCredit{players[0]: j.Value}
		}

		var phi map[schema.Stage]float64
		if len(players) <= maxExact {
			phi = ExactShapley(players, v)
		} else {
			sampled++
			phi = SampledShapley(players, v, p.Samples, rng)
		}
		credits, ok := splitByWeight(players, phi, j.Value)
		if !ok {
			fallback++
			return splitEqually(players, j.Value)
		}
		return credits
	})
	if err != nil {
		return nil, diag, err
	}

	if sampled > 0 {
		diag.Method = "sampled"
		diag.Notes = append(diag.Notes, fmt.Sprintf(
			"%d journeys exceeded %d players; used %d sampled permutations per journey (approximate)",
			sampled, maxExact, max(p.Samples, 1)))
	}
	if fallback > 0 {
		diag.Notes = append(diag.Notes, fmt.Sprintf("%d journeys had zero coalition value; split equally", fallback))
	}
	return out, diag, nil
}

// ExactShapley enumerates every coalition of players. The returned values sum to
// v(players) - v(empty).
func ExactShapley(players []schema.Stage, v CoalitionValue) map[schema.Stage]float64 {
	n := len(players)
	fact := make([]float64, n+1)
	fact[0] = 1
	for i := 1; i <= n; i++ {
		fact[i] = fact[i-1] * float64(i)
	}

	values := make([]float64, 1<<n)
	for mask := range values {
		values[mask] = v.Value(subset(players, mask))
	}

	phi := make(map[schema.Stage]float64, n)
	for i, player := range players {
		bit := 1 << i
		total := 0.0
		for mask := range values {
			if mask&bit != 0 {
				continue
			}
			size := bits.OnesCount(uint(mask))
			weight := fact[size] * fact[n-size-1] / fact[n]
			total += weight * (values[mask|bit] - values[mask])
		}
		phi[player] = total
	}
	return phi
}

// SampledShapley estimates Shapley values from random permutations drawn from rng.
func SampledShapley(players []schema.Stage, v CoalitionValue, samples int, rng *rand.Rand) map[schema.Stage]float64 {
	samples = max(samples, 1)
	phi := make(map[schema.Stage]float64, len(players))
	perm := slices.Clone(players)
	for range samples {
		rng.Shuffle(len(perm), func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })
		prev := 0.0
		for k := range perm {
			cur := v.Value(perm[:k+1])
			phi[perm[k]] += cur - prev
			prev = cur
		}
	}
	for s := range phi {
		phi[s] /= float64(samples)
	}
	return phi
}

func subset(players []schema.Stage, mask int) []schema.Stage {
	out := make([]schema.Stage, 0, len(players))
	for i, p := range players {
		if mask&(1<<i) != 0 {
			out = append(out, p)
		}
	}
	return out
}
