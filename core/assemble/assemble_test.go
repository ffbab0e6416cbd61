package assemble

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/step6836/marketing-attribution/core/ingest"
	"github.com/step6836/marketing-attribution/schema"
)

var t0 = time.Date(2019, 10, 1, 8, 0, 0, 0, time.UTC)

func journeys() []schema.Journey {
	return []schema.Journey{
		{
			ID: "a", UserID: "u1", Converted: true, Value: 90, DurationDays: 1.5, Sessions: 2,
			Touchpoints: []schema.Touchpoint{
				{Stage: schema.ViewStage, Timestamp: t0},
				{Stage: schema.CartStage, Timestamp: t0.Add(time.Hour)},
				{Stage: schema.PurchaseStage, Timestamp: t0.Add(36 * time.Hour)},
			},
		},
		{
			ID: "b", UserID: "u2", Sessions: 1,
			Touchpoints: []schema.Touchpoint{
				{Stage: schema.ViewStage, Timestamp: t0},
				{Stage: schema.CartStage, Timestamp: t0.Add(time.Minute)},
			},
		},
		{
			ID: "c", UserID: "u3", Sessions: 1,
			Touchpoints: []schema.Touchpoint{{Stage: schema.ViewStage, Timestamp: t0}},
		},
	}
}

func TestAssemble(t *testing.T) {
	results := map[schema.ModelKind]schema.AttributionResult{
		schema.LinearModel: {
			Model:       schema.LinearModel,
			Credits:     schema.StageCredit{schema.ViewStage: 60, schema.CartStage: 30, schema.PurchaseStage: 0},
			Percentages: schema.StageCredit{schema.ViewStage: 66.66666, schema.CartStage: 33.33333, schema.PurchaseStage: 0},
			Diagnostic:  schema.Diagnostic{Method: "rule"},
		},
	}
	scores := map[schema.ModelKind]schema.ComparisonMetric{schema.LinearModel: {Accuracy: 5, Fairness: 6, BusinessValue: 6}}
	in := Input{
		Ingest:         ingest.Result{Total: 12, Users: 3, Sessions: 4, BotEvents: 2, BotUsers: 1, Duplicates: 1, Malformed: 1, Ignored: 3},
		Journeys:       journeys(),
		Results:        results,
		Scores:         scores,
		IncludeCredits: true,
	}

	art := Assemble(in)

	assert.Equal(t, schema.Meta{
		TotalEvents: 12, TotalUsers: 3, TotalSessions: 4, AnalysisSample: 1,
		BotFiltered: 2, BotUsers: 1, DuplicatesRemoved: 1, MalformedDropped: 1, IgnoredEvents: 3,
	}, art.Meta)

	require.Len(t, art.AttributionModels, len(schema.AllModels))
	assert.Equal(t, schema.StageShare{View: 66.7, Cart: 33.3}, art.AttributionModels[schema.LinearModel])
	assert.Equal(t, schema.StageShare{}, art.AttributionModels[schema.MarkovModel])
	assert.True(t, art.Diagnostics[schema.MarkovModel].Degraded)
	assert.Equal(t, "rule", art.Diagnostics[schema.LinearModel].Method)
	assert.Equal(t, scores[schema.LinearModel], art.ModelComparison[schema.LinearModel])
	assert.InDelta(t, 60.0, art.Credits[schema.LinearModel][schema.ViewStage], 1e-9)
	assert.NotNil(t, art.Scenarios)
}

func TestAssembleJSONShape(t *testing.T) {
	art := Assemble(Input{})
	raw, err := json.Marshal(art)
	require.NoError(t, err)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &doc))
	for _, key := range []string{"meta", "attribution_models", "model_comparison", "journey_stats", "scenarios", "diagnostics"} {
		assert.Contains(t, doc, key)
	}
	assert.NotContains(t, doc, "credits")
	assert.JSONEq(t, `[]`, string(doc["scenarios"]))
}

func TestStats(t *testing.T) {
	s := Stats(journeys())
	assert.Equal(t, 3, s.TotalJourneys)
	assert.Equal(t, 1, s.TotalJourneysAnalyzed)
	assert.InDelta(t, 2.0, s.AvgTouchpoints, 1e-9)
	assert.InDelta(t, 1.5, s.AvgDays, 1e-9)
	assert.InDelta(t, 33.3, s.ConversionRate, 1e-9)
	assert.InDelta(t, 50.0, s.CartAbandonmentRate, 1e-9)
}
