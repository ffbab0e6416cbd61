// Package parquet provides data structures and functions for reading event logs from
// and exporting attribution data to Parquet files using github.com/parquet-go/parquet-go.
package parquet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/step6836/marketing-attribution/schema"
)

// EventRow is one raw interaction in the ecommerce event layout.
type EventRow struct {
	EventTime   time.Time `parquet:"event_time,snappy"`
	EventType   string    `parquet:"event_type,snappy,dict"`
	ProductID   *string   `parquet:"product_id,optional,snappy"`
	Price       *float64  `parquet:"price,optional,snappy"`
	UserID      string    `parquet:"user_id,snappy"`
	UserSession string    `parquet:"user_session,snappy"`
	Channel     *string   `parquet:"channel,optional,snappy,dict"`
	IsBot       *bool     `parquet:"is_bot,optional"`
}

// AnalysisRun represents a single attribution run with metadata.
// This struct maps to the attribution_runs database table.
type AnalysisRun struct {
	// AnalysisID is the unique identifier for this analysis run
	AnalysisID int64 `parquet:"analysis_id,snappy"`

	// RunUUID is the globally unique identifier of the run
	RunUUID string `parquet:"run_uuid,snappy"`

	// StartTime is when the analysis began (stored as TIMESTAMP with nanosecond precision)
	StartTime time.Time `parquet:"start_time,snappy"`

	// EndTime is when the analysis completed (nullable)
	EndTime *time.Time `parquet:"end_time,optional,snappy"`

	// RunDurationMs is the duration of the analysis run in milliseconds (nullable)
	RunDurationMs *int32 `parquet:"run_duration_ms,optional,snappy"`

	// TotalEvents is the number of raw events read in this run
	TotalEvents int32 `parquet:"total_events,snappy"`

	// TotalJourneys is the number of journeys analyzed in this run
	TotalJourneys int32 `parquet:"total_journeys,snappy"`

	// ConvertedValue is the purchase value distributed by every model
	ConvertedValue float64 `parquet:"converted_value,snappy"`

	// ConfigParams contains the JSON-encoded configuration parameters (nullable)
	ConfigParams *string `parquet:"config_params,optional,snappy"`
}

// ModelCredit is the credit one model gave one stage.
// This struct maps to the attribution_model_credits database table.
type ModelCredit struct {
	AnalysisID  int64   `parquet:"analysis_id,snappy"`
	Model       string  `parquet:"model,snappy,dict"`
	Stage       string  `parquet:"stage,snappy,dict"`
	CreditValue float64 `parquet:"credit_value,snappy"`
	CreditPct   float64 `parquet:"credit_pct,snappy"`
	Method      string  `parquet:"method,snappy,dict"`
}

// ModelScore is the comparison metric of one model.
// This struct maps to the attribution_model_scores database table.
type ModelScore struct {
	AnalysisID    int64   `parquet:"analysis_id,snappy"`
	Model         string  `parquet:"model,snappy,dict"`
	Accuracy      float64 `parquet:"accuracy,snappy"`
	Fairness      float64 `parquet:"fairness,snappy"`
	BusinessValue float64 `parquet:"business_value,snappy"`
	Degraded      bool    `parquet:"degraded"`
}

// Scenario is one projected budget split.
// This struct maps to the attribution_scenarios database table.
type Scenario struct {
	AnalysisID       int64   `parquet:"analysis_id,snappy"`
	Name             string  `parquet:"name,snappy,dict"`
	AwarenessBudget  float64 `parquet:"awareness_budget,snappy"`
	CartBudget       float64 `parquet:"cart_budget,snappy"`
	ProjectedRevenue float64 `parquet:"projected_revenue,snappy"`
	ProjectedROAS    float64 `parquet:"projected_roas,snappy"`
	ProjectedLift    float64 `parquet:"projected_lift,snappy"`
	RiskLevel        string  `parquet:"risk_level,snappy,dict"`
}

// JourneyRow is a flattened journey for offline analysis.
type JourneyRow struct {
	JourneyID    string    `parquet:"journey_id,snappy"`
	UserID       string    `parquet:"user_id,snappy"`
	StartTime    time.Time `parquet:"start_time,snappy"`
	Touchpoints  int32     `parquet:"touchpoints,snappy"`
	Path         string    `parquet:"path,snappy"`
	Converted    bool      `parquet:"converted"`
	Value        float64   `parquet:"value,snappy"`
	DurationDays float64   `parquet:"duration_days,snappy"`
	Sessions     int32     `parquet:"sessions,snappy"`
}

// write encodes data to a new file at outputPath using the schema inferred from T.
func write[T any](data []T, outputPath string) error {
	// Create the output file
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	// The schema is automatically derived from the struct tags
	writer := parquet.NewGenericWriter[T](file)
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}

// WriteAnalysisRunsParquet writes a slice of AnalysisRun structs to a Parquet file.
func WriteAnalysisRunsParquet(data []AnalysisRun, outputPath string) error {
	return write(data, outputPath)
}

// WriteModelCreditsParquet writes a slice of ModelCredit structs to a Parquet file.
func WriteModelCreditsParquet(data []ModelCredit, outputPath string) error {
	return write(data, outputPath)
}

// WriteModelScoresParquet writes a slice of ModelScore structs to a Parquet file.
func WriteModelScoresParquet(data []ModelScore, outputPath string) error {
	return write(data, outputPath)
}

// WriteScenariosParquet writes a slice of Scenario structs to a Parquet file.
func WriteScenariosParquet(data []Scenario, outputPath string) error {
	return write(data, outputPath)
}

// WriteJourneysParquet writes a slice of JourneyRow structs to a Parquet file.
func WriteJourneysParquet(data []JourneyRow, outputPath string) error {
	return write(data, outputPath)
}

// WriteEventsParquet writes a slice of EventRow structs to a Parquet file.
func WriteEventsParquet(data []EventRow, outputPath string) error {
	return write(data, outputPath)
}

// readBatch is how many rows are decoded per reader call.
const readBatch = 4096

// ReadEventsParquet reads every row of an event log. Columns missing from the file
// are left at their zero value.
func ReadEventsParquet(ctx context.Context, path string) ([]EventRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", schema.ErrSourceUnavailable, err)
	}
	defer func() { _ = file.Close() }()

	reader := parquet.NewGenericReader[EventRow](file)
	defer func() { _ = reader.Close() }()

	rows := make([]EventRow, 0, reader.NumRows())
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// Fresh buffer per batch, the reader may reuse pointer targets.
		buf := make([]EventRow, readBatch)
		n, err := reader.Read(buf)
		rows = append(rows, buf[:n]...)
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, &schema.DataIntegrityError{Record: len(rows), Field: "row", Reason: err.Error()}
		}
	}
}

// ConvertEvents converts parquet rows to events. Stage names are lower-cased and only
// purchases keep their price.
func ConvertEvents(rows []EventRow) []schema.Event {
	events := make([]schema.Event, len(rows))
	for i, r := range rows {
		stage := schema.Stage(strings.ToLower(strings.TrimSpace(r.EventType)))
		e := schema.Event{
			UserID:    strings.TrimSpace(r.UserID),
			SessionID: strings.TrimSpace(r.UserSession),
			Timestamp: r.EventTime.UTC(),
			Stage:     stage,
		}
		if r.ProductID != nil {
			e.ProductID = *r.ProductID
		}
		if r.Channel != nil {
			e.Channel = *r.Channel
		}
		if r.IsBot != nil {
			e.IsBot = *r.IsBot
		}
		if stage == schema.PurchaseStage && r.Price != nil {
			e.Value = *r.Price
		}
		events[i] = e
	}
	return events
}

// ConvertEventRows is the inverse of ConvertEvents.
func ConvertEventRows(events []schema.Event) []EventRow {
	rows := make([]EventRow, len(events))
	for i, e := range events {
		row := EventRow{
			EventTime:   e.Timestamp,
			EventType:   string(e.Stage),
			UserID:      e.UserID,
			UserSession: e.SessionID,
		}
		if e.ProductID != "" {
			row.ProductID = &e.ProductID
		}
		if e.Channel != "" {
			row.Channel = &e.Channel
		}
		if e.IsBot {
			row.IsBot = &e.IsBot
		}
		if e.Value != 0 {
			row.Price = &e.Value
		}
		rows[i] = row
	}
	return rows
}

// ConvertAnalysisRunRecords converts schema.AnalysisRunRecord to AnalysisRun for Parquet export.
func ConvertAnalysisRunRecords(records []schema.AnalysisRunRecord) []AnalysisRun {
	result := make([]AnalysisRun, len(records))
	for i, record := range records {
		result[i] = AnalysisRun{
			AnalysisID:     record.AnalysisID,
			RunUUID:        record.RunUUID,
			StartTime:      record.StartTime,
			EndTime:        record.EndTime,
			RunDurationMs:  record.RunDurationMs,
			TotalEvents:    record.TotalEvents,
			TotalJourneys:  record.TotalJourneys,
			ConvertedValue: record.ConvertedValue,
			ConfigParams:   record.ConfigParams,
		}
	}
	return result
}

// ConvertModelCreditRecords converts schema.ModelCreditRecord to ModelCredit for Parquet export.
func ConvertModelCreditRecords(records []schema.ModelCreditRecord) []ModelCredit {
	result := make([]ModelCredit, len(records))
	for i, record := range records {
		result[i] = ModelCredit(record)
	}
	return result
}

// ConvertModelScoreRecords converts schema.ModelScoreRecord to ModelScore for Parquet export.
func ConvertModelScoreRecords(records []schema.ModelScoreRecord) []ModelScore {
	result := make([]ModelScore, len(records))
	for i, record := range records {
		result[i] = ModelScore(record)
	}
	return result
}

// ConvertScenarioRecords converts schema.ScenarioRecord to Scenario for Parquet export.
func ConvertScenarioRecords(records []schema.ScenarioRecord) []Scenario {
	result := make([]Scenario, len(records))
	for i, record := range records {
		result[i] = Scenario(record)
	}
	return result
}

// ConvertResults flattens attribution results into credit rows, one per model and report stage.
func ConvertResults(analysisID int64, results map[schema.ModelKind]schema.AttributionResult) []ModelCredit {
	var rows []ModelCredit
	for _, model := range schema.AllModels {
		res, ok := results[model]
		if !ok {
			continue
		}
		for _, stage := range schema.ReportStages {
			rows = append(rows, ModelCredit{
				AnalysisID:  analysisID,
				Model:       string(model),
				Stage:       string(stage),
				CreditValue: res.Credits[stage],
				CreditPct:   res.Percentages[stage],
				Method:      res.Diagnostic.Method,
			})
		}
	}
	return rows
}

// ConvertJourneys flattens journeys for export. The path joins the touchpoint stages with ">".
func ConvertJourneys(journeys []schema.Journey) []JourneyRow {
	rows := make([]JourneyRow, len(journeys))
	for i, j := range journeys {
		stages := make([]string, len(j.Touchpoints))
		for k, tp := range j.Touchpoints {
			stages[k] = string(tp.Stage)
		}
		rows[i] = JourneyRow{
			JourneyID:    j.ID,
			UserID:       j.UserID,
			StartTime:    j.Start(),
			Touchpoints:  int32(len(j.Touchpoints)),
			Path:         strings.Join(stages, ">"),
			Converted:    j.Converted,
			Value:        j.Value,
			DurationDays: j.DurationDays,
			Sessions:     int32(j.Sessions),
		}
	}
	return rows
}

// MockFetchAnalysisRuns generates sample AnalysisRun data for demonstration.
func MockFetchAnalysisRuns() []AnalysisRun {
	now := time.Now()
	startTime1 := now.Add(-2 * time.Hour)
	endTime1 := now.Add(-1*time.Hour - 30*time.Minute)
	durationMs1 := int32(endTime1.Sub(startTime1).Milliseconds())
	configParams1 := `{"models":"first_touch,last_touch,linear,shapley,markov","session_gap":"30m"}`

	startTime2 := now.Add(-10 * time.Minute)
	// Note: the second run is still in progress so its nullable fields are nil

	return []AnalysisRun{
		{
			AnalysisID:     1,
			RunUUID:        "6f1c2a4e-9a57-4b59-8f44-0c0d5b3c1e11",
			StartTime:      startTime1,
			EndTime:        &endTime1,
			RunDurationMs:  &durationMs1,
			TotalEvents:    1200,
			TotalJourneys:  310,
			ConvertedValue: 48250.5,
			ConfigParams:   &configParams1,
		},
		{
			AnalysisID: 2,
			RunUUID:    "0b8e7d55-3a0f-4c2b-9d0e-7f5d6b1a2c33",
			StartTime:  startTime2,
		},
	}
}

// MockFetchModelCredits generates sample ModelCredit data for demonstration.
func MockFetchModelCredits() []ModelCredit {
	return []ModelCredit{
		{AnalysisID: 1, Model: "first_touch", Stage: "view", CreditValue: 300, CreditPct: 85.7, Method: "rule"},
		{AnalysisID: 1, Model: "first_touch", Stage: "cart", CreditValue: 50, CreditPct: 14.3, Method: "rule"},
		{AnalysisID: 1, Model: "markov", Stage: "view", CreditValue: 200, CreditPct: 57.1, Method: "direct"},
		{AnalysisID: 1, Model: "markov", Stage: "cart", CreditValue: 150, CreditPct: 42.9, Method: "direct"},
	}
}
