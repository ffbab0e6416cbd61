package algo

import (
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/step6836/marketing-attribution/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestGini tests the Gini coefficient calculation.
func TestGini(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		expected float64
		delta    float64
	}{
		{name: "empty slice", values: []float64{}, expected: 0.0, delta: 0.001},
		{name: "perfect equality", values: []float64{1, 1, 1, 1}, expected: 0.0, delta: 0.001},
		{name: "perfect inequality", values: []float64{0, 0, 0, 10}, expected: 0.75, delta: 0.001},
		{name: "moderate inequality", values: []float64{1, 2, 3, 4}, expected: 0.25, delta: 0.001},
		{name: "single value", values: []float64{5}, expected: 0.0, delta: 0.001},
		{name: "all zeros", values: []float64{0, 0, 0}, expected: 0.0, delta: 0.001},
		{name: "two stages all on one", values: []float64{200, 0}, expected: 0.5, delta: 0.001},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Gini(tt.values)
			assert.LessOrEqual(t, math.Abs(result-tt.expected), tt.delta)
		})
	}
}

func TestSolve(t *testing.T) {
	t.Run("identity", func(t *testing.T) {
		x, err := Solve([][]float64{{1, 0}, {0, 1}}, []float64{3, 4}, DefaultPivotTolerance)
		require.NoError(t, err)
		assert.InDeltaSlice(t, []float64{3, 4}, x, 1e-12)
	})

	t.Run("needs pivoting", func(t *testing.T) {
		// 0x + 2y = 4, 3x + y = 5 -> x = 1, y = 2
		x, err := Solve([][]float64{{0, 2}, {3, 1}}, []float64{4, 5}, DefaultPivotTolerance)
		require.NoError(t, err)
		assert.InDeltaSlice(t, []float64{1, 2}, x, 1e-12)
	})

	t.Run("inputs untouched", func(t *testing.T) {
		a := [][]float64{{2, 1}, {1, 3}}
		b := []float64{3, 5}
		_, err := Solve(a, b, DefaultPivotTolerance)
		require.NoError(t, err)
		assert.Equal(t, [][]float64{{2, 1}, {1, 3}}, a)
		assert.Equal(t, []float64{3, 5}, b)
	})

	t.Run("singular", func(t *testing.T) {
		_, err := Solve([][]float64{{1, 2}, {2, 4}}, []float64{1, 2}, DefaultPivotTolerance)
		assert.ErrorIs(t, err, ErrSingular)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		_, err := Solve([][]float64{{1, 2}, {2, 4}}, []float64{1}, DefaultPivotTolerance)
		assert.Error(t, err)
	})

	t.Run("empty system", func(t *testing.T) {
		x, err := Solve(nil, nil, DefaultPivotTolerance)
		require.NoError(t, err)
		assert.Empty(t, x)
	})
}

func TestSolveFixedPoint(t *testing.T) {
	// Absorbing chain: state 0 -> 1 with 0.5, -> absorb 0.5; state 1 -> absorb 0.8, -> 0 with 0.2
	q := [][]float64{{0, 0.5}, {0.2, 0}}
	r := []float64{0.5, 0.8}

	x, iters, err := SolveFixedPoint(q, r, 1e-12, 10_000)
	require.NoError(t, err)
	assert.Greater(t, iters, 1)

	direct, err := Solve([][]float64{{1, -0.5}, {-0.2, 1}}, r, DefaultPivotTolerance)
	require.NoError(t, err)
	assert.InDeltaSlice(t, direct, x, 1e-9)

	_, _, err = SolveFixedPoint(q, r, 1e-12, 2)
	assert.ErrorIs(t, err, ErrNotConverged)
}

func TestRankStages(t *testing.T) {
	ranked := RankStages(schema.StageCredit{schema.ViewStage: 10, schema.CartStage: 30, schema.PurchaseStage: 10})
	assert.Equal(t, []schema.Stage{schema.CartStage, schema.ViewStage, schema.PurchaseStage}, ranked)
}

func TestTotalVariation(t *testing.T) {
	a := schema.StageCredit{schema.ViewStage: 0.6, schema.CartStage: 0.4}
	b := schema.StageCredit{schema.ViewStage: 0.2, schema.CartStage: 0.8}
	assert.InDelta(t, 0.4, TotalVariation(a, b), 1e-12)
	assert.Equal(t, 0.0, TotalVariation(a, a))
}

// BenchmarkGini benchmarks the Gini coefficient calculation.
func BenchmarkGini(b *testing.B) {
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	for b.Loop() {
		_ = Gini(values)
	}
}

// FuzzGini fuzzes the Gini function with random value arrays.
func FuzzGini(f *testing.F) {
	seeds := []string{
		"[1,2,3]",
		"[0,0,0]",
		"[100]",
		"[]",
		"[1,1,1,1]",
	}
	for _, seed := range seeds {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, valuesJSON string) {
		var values []float64
		if valuesJSON != "" && valuesJSON[0] == '[' && valuesJSON[len(valuesJSON)-1] == ']' {
			inner := valuesJSON[1 : len(valuesJSON)-1]
			if inner != "" {
				for p := range strings.SplitSeq(inner, ",") {
					if v, err := strconv.ParseFloat(strings.TrimSpace(p), 64); err == nil && v >= 0 && !math.IsInf(v, 0) {
						values = append(values, v)
					}
				}
			}
		}
		g := Gini(values)
		if math.IsNaN(g) {
			return // overflowing inputs are not meaningful credit values
		}
		if g < 0 || g > 1 {
			t.Fatalf("gini out of range: %v", g)
		}
	})
}
