package parquet

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/step6836/marketing-attribution/schema"
)

func TestStructTags(t *testing.T) {
	tests := []struct {
		name    string
		model   any
		columns []string
	}{
		{"AnalysisRun", new(AnalysisRun), []string{"analysis_id", "run_uuid", "start_time", "end_time", "run_duration_ms", "total_events", "total_journeys", "converted_value", "config_params"}},
		{"ModelCredit", new(ModelCredit), []string{"analysis_id", "model", "stage", "credit_value", "credit_pct", "method"}},
		{"ModelScore", new(ModelScore), []string{"analysis_id", "model", "accuracy", "fairness", "business_value", "degraded"}},
		{"Scenario", new(Scenario), []string{"analysis_id", "name", "awareness_budget", "cart_budget", "projected_revenue", "projected_roas", "projected_lift", "risk_level"}},
		{"JourneyRow", new(JourneyRow), []string{"journey_id", "user_id", "start_time", "touchpoints", "path", "converted", "value", "duration_days", "sessions"}},
		{"EventRow", new(EventRow), []string{"event_time", "event_type", "product_id", "price", "user_id", "user_session", "channel", "is_bot"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := parquet.SchemaOf(tt.model)
			require.NotNil(t, s)
			assert.Len(t, s.Fields(), len(tt.columns))
			for _, col := range tt.columns {
				_, ok := s.Lookup(col)
				assert.True(t, ok, "column %s should exist", col)
			}
		})
	}
}

func TestWriteAnalysisRunsParquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.parquet")
	runs := MockFetchAnalysisRuns()
	require.NoError(t, WriteAnalysisRunsParquet(runs, path))

	got, err := parquet.ReadFile[AnalysisRun](path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, runs[0].RunUUID, got[0].RunUUID)
	assert.Equal(t, runs[0].TotalJourneys, got[0].TotalJourneys)
	require.NotNil(t, got[0].ConfigParams)
	assert.Equal(t, *runs[0].ConfigParams, *got[0].ConfigParams)
	assert.Nil(t, got[1].EndTime)
	assert.Nil(t, got[1].RunDurationMs)
}

func TestWriteModelCreditsParquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credits.parquet")
	credits := MockFetchModelCredits()
	require.NoError(t, WriteModelCreditsParquet(credits, path))

	got, err := parquet.ReadFile[ModelCredit](path)
	require.NoError(t, err)
	assert.Equal(t, credits, got)
}

func TestWriteParquetBadPath(t *testing.T) {
	err := WriteScenariosParquet([]Scenario{{Name: "current"}}, filepath.Join(t.TempDir(), "missing", "out.parquet"))
	assert.ErrorContains(t, err, "failed to create output file")
}

func TestEventsRoundTrip(t *testing.T) {
	ts := time.Date(2019, 10, 1, 0, 0, 0, 0, time.UTC)
	events := []schema.Event{
		{UserID: "u1", SessionID: "s1", Timestamp: ts, Stage: schema.ViewStage, ProductID: "p1", Channel: "search"},
		{UserID: "u1", SessionID: "s1", Timestamp: ts.Add(time.Minute), Stage: schema.CartStage},
		{UserID: "u1", SessionID: "s1", Timestamp: ts.Add(2 * time.Minute), Stage: schema.PurchaseStage, Value: 129.99},
		{UserID: "bot", SessionID: "s9", Timestamp: ts, Stage: schema.ViewStage, IsBot: true},
	}

	path := filepath.Join(t.TempDir(), "events.parquet")
	require.NoError(t, WriteEventsParquet(ConvertEventRows(events), path))

	rows, err := ReadEventsParquet(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, events, ConvertEvents(rows))
}

func TestReadEventsParquetErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := ReadEventsParquet(context.Background(), filepath.Join(t.TempDir(), "nope.parquet"))
		assert.ErrorIs(t, err, schema.ErrSourceUnavailable)
	})

	t.Run("canceled", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "events.parquet")
		require.NoError(t, WriteEventsParquet([]EventRow{{EventType: "view", UserID: "u"}}, path))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := ReadEventsParquet(ctx, path)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestConvertEvents(t *testing.T) {
	price := 50.0
	channel := "email"
	rows := []EventRow{
		{EventType: " VIEW ", UserID: " u1 ", UserSession: "s1", Price: &price, Channel: &channel},
		{EventType: "purchase", UserID: "u1", UserSession: "s1", Price: &price},
	}

	events := ConvertEvents(rows)
	require.Len(t, events, 2)
	assert.Equal(t, schema.ViewStage, events[0].Stage)
	assert.Equal(t, "u1", events[0].UserID)
	assert.Equal(t, "email", events[0].Channel)
	assert.Zero(t, events[0].Value, "only purchases carry a value")
	assert.InDelta(t, 50.0, events[1].Value, 1e-9)
}

func TestConvertRecords(t *testing.T) {
	end := time.Date(2024, 1, 1, 0, 1, 0, 0, time.UTC)
	runs := ConvertAnalysisRunRecords([]schema.AnalysisRunRecord{{AnalysisID: 3, RunUUID: "x", EndTime: &end, TotalEvents: 7}})
	require.Len(t, runs, 1)
	assert.Equal(t, int64(3), runs[0].AnalysisID)
	assert.Equal(t, &end, runs[0].EndTime)
	assert.Equal(t, int32(7), runs[0].TotalEvents)

	scores := ConvertModelScoreRecords([]schema.ModelScoreRecord{{AnalysisID: 1, Model: "markov", Accuracy: 8.5, Degraded: true}})
	assert.Equal(t, []ModelScore{{AnalysisID: 1, Model: "markov", Accuracy: 8.5, Degraded: true}}, scores)

	scenarios := ConvertScenarioRecords([]schema.ScenarioRecord{{AnalysisID: 1, Name: "aggressive", RiskLevel: "High"}})
	assert.Equal(t, []Scenario{{AnalysisID: 1, Name: "aggressive", RiskLevel: "High"}}, scenarios)

	credits := ConvertModelCreditRecords([]schema.ModelCreditRecord{{AnalysisID: 2, Model: "linear", Stage: "cart", CreditPct: 40}})
	assert.Equal(t, []ModelCredit{{AnalysisID: 2, Model: "linear", Stage: "cart", CreditPct: 40}}, credits)
}

func TestConvertResults(t *testing.T) {
	results := map[schema.ModelKind]schema.AttributionResult{
		schema.MarkovModel: {
			Model:       schema.MarkovModel,
			Credits:     schema.StageCredit{schema.ViewStage: 60, schema.CartStage: 40},
			Percentages: schema.StageCredit{schema.ViewStage: 60, schema.CartStage: 40},
			Diagnostic:  schema.Diagnostic{Method: "direct"},
		},
		schema.FirstTouchModel: {
			Model:       schema.FirstTouchModel,
			Credits:     schema.StageCredit{schema.ViewStage: 100},
			Percentages: schema.StageCredit{schema.ViewStage: 100},
			Diagnostic:  schema.Diagnostic{Method: "rule"},
		},
	}

	rows := ConvertResults(9, results)
	require.Len(t, rows, 2*len(schema.ReportStages))
	assert.Equal(t, "first_touch", rows[0].Model)
	assert.Equal(t, "view", rows[0].Stage)
	assert.Equal(t, "markov", rows[3].Model)
	assert.Equal(t, "direct", rows[3].Method)
	assert.Equal(t, int64(9), rows[5].AnalysisID)
	assert.Zero(t, rows[5].CreditValue, "missing stages report zero credit")
}

func TestConvertJourneys(t *testing.T) {
	ts := time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)
	journeys := []schema.Journey{
		{
			ID:     "u1-0",
			UserID: "u1",
			Touchpoints: []schema.Touchpoint{
				{Stage: schema.ViewStage, Timestamp: ts},
				{Stage: schema.CartStage, Timestamp: ts.Add(time.Hour)},
				{Stage: schema.PurchaseStage, Timestamp: ts.Add(2 * time.Hour)},
			},
			Converted:    true,
			Value:        80,
			DurationDays: 2.0 / 24,
			Sessions:     1,
		},
		{ID: "u2-0", UserID: "u2"},
	}

	rows := ConvertJourneys(journeys)
	require.Len(t, rows, 2)
	assert.Equal(t, "view>cart>purchase", rows[0].Path)
	assert.Equal(t, int32(3), rows[0].Touchpoints)
	assert.Equal(t, ts, rows[0].StartTime)
	assert.True(t, rows[0].Converted)
	assert.Equal(t, "", rows[1].Path)
	assert.True(t, rows[1].StartTime.IsZero())

	path := filepath.Join(t.TempDir(), "journeys.parquet")
	require.NoError(t, WriteJourneysParquet(rows, path))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}
