package scenario

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/step6836/marketing-attribution/core/attribution"
	"github.com/step6836/marketing-attribution/schema"
)

func TestProjectDefaults(t *testing.T) {
	cal := DefaultCalibration()

	tests := []struct {
		name      string
		awareness float64
		lift      float64
		revenue   float64
		roas      float64
		risk      schema.RiskLevel
	}{
		{"baseline", 3_000_000, 0, 50_000_000, 10, schema.LowRisk},
		{"more cart", 2_750_000, 3.75, 51_875_000, 10.5625, schema.LowRisk},
		{"recommended", 2_250_000, 11.25, 55_625_000, 11.6875, schema.MediumRisk},
		{"capped lift", 0, 15, 57_500_000, 12.25, schema.HighRisk},
		{"less cart clamps to zero", 5_000_000, 0, 50_000_000, 10, schema.HighRisk},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc, err := Project(cal, tt.awareness)
			require.NoError(t, err)
			assert.Equal(t, schema.CustomScenario, sc.Name)
			assert.InDelta(t, tt.lift, sc.ProjectedLift, 1e-9)
			assert.InDelta(t, tt.revenue, sc.ProjectedRevenue, 1e-3)
			assert.InDelta(t, tt.roas, sc.ProjectedROAS, 1e-9)
			assert.Equal(t, tt.risk, sc.RiskLevel)
		})
	}
}

func TestProjectBudgetInvariant(t *testing.T) {
	cal := DefaultCalibration()
	for a := 0.0; a <= cal.TotalBudget; a += 123_457 {
		sc, err := Project(cal, a)
		require.NoError(t, err)
		assert.InDelta(t, cal.TotalBudget, sc.AwarenessBudget+sc.CartBudget, 1e-6)
		assert.Equal(t, cal.TotalBudget, sc.TotalBudget)
	}
}

func TestProjectMonotonic(t *testing.T) {
	cal := DefaultCalibration()
	prev := math.Inf(-1)
	// decreasing awareness means increasing cart budget
	for a := cal.TotalBudget; a >= 0; a -= 50_000 {
		sc, err := Project(cal, a)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, sc.ProjectedRevenue, prev, "awareness %v", a)
		prev = sc.ProjectedRevenue
	}
}

func TestProjectOutOfRange(t *testing.T) {
	cal := DefaultCalibration()
	for _, a := range []float64{-1, cal.TotalBudget + 1, math.NaN(), math.Inf(1)} {
		_, err := Project(cal, a)
		assert.ErrorIs(t, err, schema.ErrBudgetOutOfRange, "awareness %v", a)
	}
	_, err := ProjectShare(cal, 1.5)
	assert.ErrorIs(t, err, schema.ErrBudgetOutOfRange)
}

func TestCalibrationValidate(t *testing.T) {
	require.NoError(t, DefaultCalibration().Validate())

	tests := []struct {
		name   string
		mutate func(*Calibration)
	}{
		{"zero total", func(c *Calibration) { c.TotalBudget = 0 }},
		{"negative slope", func(c *Calibration) { c.Slope = -1 }},
		{"share above one", func(c *Calibration) { c.BaselineCartShare = 1.2 }},
		{"nan revenue", func(c *Calibration) { c.BaselineRevenue = math.NaN() }},
		{"inverted thresholds", func(c *Calibration) { c.RiskThresholds.Medium = 0.01 }},
		{"aggressive step above one", func(c *Calibration) { c.AggressiveStep = 1.5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cal := DefaultCalibration()
			tt.mutate(&cal)
			assert.ErrorIs(t, cal.Validate(), schema.ErrInvalidCalibration)
			_, err := Project(cal, 1)
			assert.ErrorIs(t, err, schema.ErrInvalidCalibration)
		})
	}
}

func TestCustomCalibration(t *testing.T) {
	cal := DefaultCalibration()
	cal.TotalBudget = 100
	cal.BaselineRevenue = 1000
	cal.Slope = 10
	cal.MaxLift = 100

	sc, err := Project(cal, 0)
	require.NoError(t, err)
	assert.InDelta(t, 6, sc.ProjectedLift, 1e-9)
	assert.InDelta(t, 1060, sc.ProjectedRevenue, 1e-9)
}

func TestPresets(t *testing.T) {
	cal := DefaultCalibration()

	t.Run("fallback shares", func(t *testing.T) {
		scs, err := Presets(cal, nil)
		require.NoError(t, err)
		require.Len(t, scs, 3)
		assert.Equal(t, schema.CurrentScenario, scs[0].Name)
		assert.InDelta(t, 2_000_000, scs[0].CartBudget, 1e-6)
		assert.InDelta(t, 2_250_000, scs[1].CartBudget, 1e-6)
		assert.InDelta(t, 2_750_000, scs[2].CartBudget, 1e-6)
		assert.Equal(t, schema.LowRisk, scs[0].RiskLevel)
		assert.Equal(t, schema.MediumRisk, scs[2].RiskLevel)
	})

	tests := []struct {
		name        string
		results     map[schema.ModelKind]schema.AttributionResult
		recommended float64
		aggressive  float64
	}{
		{
			name: "mean of shapley and markov",
			results: map[schema.ModelKind]schema.AttributionResult{
				schema.FirstTouchModel: {Credits: schema.StageCredit{schema.ViewStage: 300, schema.CartStage: 50}},
				schema.ShapleyModel:    {Credits: schema.StageCredit{schema.ViewStage: 50, schema.CartStage: 50}},
				schema.MarkovModel:     {Credits: schema.StageCredit{schema.ViewStage: 30, schema.CartStage: 70}},
			},
			recommended: 0.60,
			aggressive:  0.70,
		},
		{
			name: "degraded markov ignored",
			results: map[schema.ModelKind]schema.AttributionResult{
				schema.ShapleyModel: {Credits: schema.StageCredit{schema.ViewStage: 150, schema.CartStage: 200}},
				schema.MarkovModel:  {Credits: schema.StageCredit{schema.ViewStage: 350}, Diagnostic: schema.Diagnostic{Degraded: true}},
			},
			recommended: 200.0 / 350,
			aggressive:  200.0/350 + 0.10,
		},
		{
			name: "below baseline lifts to baseline",
			results: map[schema.ModelKind]schema.AttributionResult{
				schema.ShapleyModel: {Credits: schema.StageCredit{schema.ViewStage: 90, schema.CartStage: 10}},
				schema.MarkovModel:  {Credits: schema.StageCredit{schema.ViewStage: 80, schema.CartStage: 20}},
			},
			recommended: 0.40,
			aggressive:  0.50,
		},
		{
			name: "aggressive capped at one",
			results: map[schema.ModelKind]schema.AttributionResult{
				schema.ShapleyModel: {Credits: schema.StageCredit{schema.CartStage: 10, schema.ViewStage: 0.1}},
			},
			recommended: 10 / 10.1,
			aggressive:  1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			share, err := PresetShare(cal, schema.CurrentScenario, tt.results)
			require.NoError(t, err)
			assert.Equal(t, cal.BaselineCartShare, share)

			share, err = PresetShare(cal, schema.RecommendedScenario, tt.results)
			require.NoError(t, err)
			assert.InDelta(t, tt.recommended, share, 1e-12)

			share, err = PresetShare(cal, schema.AggressiveScenario, tt.results)
			require.NoError(t, err)
			assert.InDelta(t, tt.aggressive, share, 1e-12)
		})
	}

	t.Run("custom aggressive step", func(t *testing.T) {
		c := DefaultCalibration()
		c.AggressiveStep = 0.25
		share, err := PresetShare(c, schema.AggressiveScenario, nil)
		require.NoError(t, err)
		assert.InDelta(t, 0.70, share, 1e-12)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := Preset(cal, "yolo", nil)
		assert.ErrorIs(t, err, schema.ErrUnknownPreset)
	})
}

func TestPresetsOrderedOnModelOutput(t *testing.T) {
	mk := func(id string, value float64, stages ...schema.Stage) schema.Journey {
		j := schema.Journey{ID: id, UserID: id, Converted: true, Value: value}
		for i, s := range stages {
			j.Touchpoints = append(j.Touchpoints, schema.Touchpoint{Stage: s, Timestamp: time.Unix(int64(i*60), 0)})
		}
		return j
	}
	v, c, p := schema.ViewStage, schema.CartStage, schema.PurchaseStage
	journeys := []schema.Journey{
		mk("j1", 100, v, p),
		mk("j2", 200, v, c, p),
		mk("j3", 50, c, p),
		mk("j4", 80, v, c, v, p),
	}

	results := make(map[schema.ModelKind]schema.AttributionResult, len(schema.AllModels))
	for _, kind := range schema.AllModels {
		res, err := attribution.Compute(context.Background(), kind, journeys, attribution.DefaultParams())
		require.NoError(t, err, kind)
		results[kind] = res
	}

	cal := DefaultCalibration()
	scs, err := Presets(cal, results)
	require.NoError(t, err)
	require.Len(t, scs, 3)
	current, recommended, aggressive := scs[0], scs[1], scs[2]

	assert.Equal(t, schema.LowRisk, current.RiskLevel)
	assert.InDelta(t, 0, current.ProjectedLift, 1e-9)
	assert.InDelta(t, cal.BaselineRevenue, current.ProjectedRevenue, 1e-6)

	assert.LessOrEqual(t, current.CartShare(), recommended.CartShare())
	assert.LessOrEqual(t, recommended.CartShare(), aggressive.CartShare())
	assert.LessOrEqual(t, current.ProjectedRevenue, recommended.ProjectedRevenue)
	assert.LessOrEqual(t, recommended.ProjectedRevenue, aggressive.ProjectedRevenue)
}

func TestProjectConcurrent(t *testing.T) {
	cal := DefaultCalibration()
	want, err := Project(cal, 1_000_000)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 16 {
		wg.Go(func() {
			got, err := Project(cal, 1_000_000)
			assert.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
	wg.Wait()
}
