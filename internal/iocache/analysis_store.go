package iocache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/step6836/marketing-attribution/internal/contract"
	"github.com/step6836/marketing-attribution/schema"
)

// Table names for analysis tracking.
const (
	analysisRunsTable = "attribution_runs"
	modelCreditsTable = "attribution_model_credits"
	modelScoresTable  = "attribution_model_scores"
	scenariosTable    = "attribution_scenarios"
)

// analysisTables lists the analysis tables in drop order.
var analysisTables = []string{scenariosTable, modelScoresTable, modelCreditsTable, analysisRunsTable}

// AnalysisStoreImpl implements the AnalysisStore interface.
type AnalysisStoreImpl struct {
	db      *sql.DB
	backend schema.DatabaseBackend
}

var _ contract.AnalysisStore = &AnalysisStoreImpl{} // Compile-time check

// NewAnalysisStore creates a new AnalysisStore with the specified backend.
func NewAnalysisStore(backend schema.DatabaseBackend, connStr string) (contract.AnalysisStore, error) {
	switch backend {
	case schema.NoneBackend:
		// Return a no-op store for disabled tracking
		return &AnalysisStoreImpl{backend: backend}, nil
	case schema.SQLiteBackend, schema.MySQLBackend, schema.PostgreSQLBackend:
	default:
		return nil, fmt.Errorf("unsupported analysis backend: %s", backend)
	}

	db, err := openDB(backend, connStr, contract.GetAnalysisDBFilePath())
	if err != nil {
		return nil, err
	}

	// Create the table schemas
	if err := createAnalysisTables(db, backend); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create analysis tables: %w", err)
	}

	return &AnalysisStoreImpl{db: db, backend: backend}, nil
}

// createAnalysisTables creates the analysis tracking tables from the initial migration.
func createAnalysisTables(db *sql.DB, backend schema.DatabaseBackend) error {
	stmts, err := schemaStatements(backend)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (as *AnalysisStoreImpl) disabled() bool {
	return as.backend == schema.NoneBackend || as.db == nil
}

func (as *AnalysisStoreImpl) table(name string) string {
	return quoteTableName(name, as.backend)
}

func (as *AnalysisStoreImpl) exec(query string, args ...any) error {
	_, err := as.db.Exec(rebind(query, as.backend), args...)
	return err
}

// BeginAnalysis creates a new analysis run and returns its unique ID.
func (as *AnalysisStoreImpl) BeginAnalysis(startTime time.Time, configParams map[string]any) (int64, error) {
	// Skip for NoneBackend
	if as.disabled() {
		return 0, nil
	}

	// Serialize config params to JSON
	configJSON, err := json.Marshal(configParams)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal config params: %w", err)
	}

	runUUID := uuid.NewString()
	query := fmt.Sprintf(`INSERT INTO %s (run_uuid, start_time, config_params) VALUES (?, ?, ?)`, as.table(analysisRunsTable))
	args := []any{runUUID, formatTime(startTime, as.backend), string(configJSON)}

	var analysisID int64
	switch as.backend {
	case schema.PostgreSQLBackend:
		err = as.db.QueryRow(rebind(query, as.backend)+" RETURNING analysis_id", args...).Scan(&analysisID)
	default: // SQLite and MySQL
		var result sql.Result
		if result, err = as.db.Exec(query, args...); err == nil {
			analysisID, err = result.LastInsertId()
		}
	}
	if err != nil {
		return 0, fmt.Errorf("failed to insert analysis run: %w", err)
	}
	return analysisID, nil
}

// EndAnalysis updates the analysis run with completion data.
func (as *AnalysisStoreImpl) EndAnalysis(analysisID int64, endTime time.Time, totalEvents, totalJourneys int, convertedValue float64) error {
	// Skip for NoneBackend
	if as.disabled() {
		return nil
	}

	// First, get the start_time to calculate duration
	var raw any
	query := rebind(fmt.Sprintf(`SELECT start_time FROM %s WHERE analysis_id = ?`, as.table(analysisRunsTable)), as.backend)
	if err := as.db.QueryRow(query, analysisID).Scan(&raw); err != nil {
		return fmt.Errorf("failed to get start_time for analysis %d: %w", analysisID, err)
	}
	startTime, err := parseTime(raw)
	if err != nil {
		return fmt.Errorf("failed to parse start_time: %w", err)
	}

	durationMs := endTime.Sub(startTime).Milliseconds()
	update := fmt.Sprintf(`UPDATE %s SET end_time = ?, run_duration_ms = ?, total_events = ?, total_journeys = ?, converted_value = ? WHERE analysis_id = ?`,
		as.table(analysisRunsTable))
	if err := as.exec(update, formatTime(endTime, as.backend), durationMs, totalEvents, totalJourneys, convertedValue, analysisID); err != nil {
		return fmt.Errorf("failed to update analysis run: %w", err)
	}
	return nil
}

// RecordModelCredits stores one row per report stage of the result.
func (as *AnalysisStoreImpl) RecordModelCredits(analysisID int64, result schema.AttributionResult) error {
	if as.disabled() {
		return nil
	}
	query := fmt.Sprintf(`INSERT INTO %s (analysis_id, model, stage, credit_value, credit_pct, method) VALUES (?, ?, ?, ?, ?, ?)`,
		as.table(modelCreditsTable))
	for _, stage := range schema.ReportStages {
		if err := as.exec(query, analysisID, string(result.Model), string(stage),
			result.Credits[stage], result.Percentages[stage], result.Diagnostic.Method); err != nil {
			return fmt.Errorf("failed to insert %s credits for %s: %w", result.Model, stage, err)
		}
	}
	return nil
}

// RecordModelScores stores the comparison metric of one model.
func (as *AnalysisStoreImpl) RecordModelScores(analysisID int64, model schema.ModelKind, metric schema.ComparisonMetric, degraded bool) error {
	if as.disabled() {
		return nil
	}
	query := fmt.Sprintf(`INSERT INTO %s (analysis_id, model, accuracy, fairness, business_value, degraded) VALUES (?, ?, ?, ?, ?, ?)`,
		as.table(modelScoresTable))
	if err := as.exec(query, analysisID, string(model), metric.Accuracy, metric.Fairness, metric.BusinessValue, degraded); err != nil {
		return fmt.Errorf("failed to insert %s scores: %w", model, err)
	}
	return nil
}

// RecordScenario stores one projected scenario.
func (as *AnalysisStoreImpl) RecordScenario(analysisID int64, sc schema.Scenario) error {
	if as.disabled() {
		return nil
	}
	query := fmt.Sprintf(`INSERT INTO %s (analysis_id, name, awareness_budget, cart_budget, projected_revenue, projected_roas, projected_lift, risk_level)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, as.table(scenariosTable))
	if err := as.exec(query, analysisID, sc.Name, sc.AwarenessBudget, sc.CartBudget,
		sc.ProjectedRevenue, sc.ProjectedROAS, sc.ProjectedLift, string(sc.RiskLevel)); err != nil {
		return fmt.Errorf("failed to insert scenario %s: %w", sc.Name, err)
	}
	return nil
}

// Close closes the underlying connection.
func (as *AnalysisStoreImpl) Close() error {
	if as.db != nil {
		return as.db.Close()
	}
	return nil
}

// GetStatus returns status information about the analysis store.
func (as *AnalysisStoreImpl) GetStatus() (schema.AnalysisStatus, error) {
	status := schema.AnalysisStatus{
		Backend:    string(as.backend),
		Connected:  as.db != nil,
		TableSizes: make(map[string]int64),
	}
	if as.disabled() {
		return status, nil
	}

	runs := as.table(analysisRunsTable)
	if err := as.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", runs)).Scan(&status.TotalRuns); err != nil {
		return status, fmt.Errorf("failed to get total runs: %w", err)
	}

	if status.TotalRuns > 0 {
		var lastRaw, oldestRaw any
		lastQuery := fmt.Sprintf("SELECT analysis_id, start_time FROM %s ORDER BY analysis_id DESC LIMIT 1", runs)
		if err := as.db.QueryRow(lastQuery).Scan(&status.LastRunID, &lastRaw); err != nil {
			return status, fmt.Errorf("failed to get last run info: %w", err)
		}
		oldestQuery := fmt.Sprintf("SELECT start_time FROM %s ORDER BY analysis_id ASC LIMIT 1", runs)
		if err := as.db.QueryRow(oldestQuery).Scan(&oldestRaw); err != nil {
			return status, fmt.Errorf("failed to get oldest run time: %w", err)
		}
		var err error
		if status.LastRunTime, err = parseTime(lastRaw); err != nil {
			return status, fmt.Errorf("failed to parse last run time: %w", err)
		}
		if status.OldestRunTime, err = parseTime(oldestRaw); err != nil {
			return status, fmt.Errorf("failed to parse oldest run time: %w", err)
		}

		eventsQuery := fmt.Sprintf("SELECT COALESCE(SUM(total_events), 0) FROM %s", runs)
		if err := as.db.QueryRow(eventsQuery).Scan(&status.TotalEventsAnalyzed); err != nil {
			return status, fmt.Errorf("failed to get total events analyzed: %w", err)
		}
	}

	for _, table := range analysisTables {
		var count int64
		if err := as.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", as.table(table))).Scan(&count); err != nil {
			return status, fmt.Errorf("failed to get count for table %s: %w", table, err)
		}
		status.TableSizes[table] = count
	}
	return status, nil
}

// GetAllAnalysisRuns retrieves all analysis runs from the store.
func (as *AnalysisStoreImpl) GetAllAnalysisRuns() ([]schema.AnalysisRunRecord, error) {
	if as.disabled() {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT analysis_id, run_uuid, start_time, end_time, run_duration_ms, total_events, total_journeys, converted_value, config_params
		FROM %s ORDER BY analysis_id`, as.table(analysisRunsTable))
	rows, err := as.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query analysis runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.AnalysisRunRecord
	for rows.Next() {
		var record schema.AnalysisRunRecord
		var startRaw, endRaw any
		if err := rows.Scan(&record.AnalysisID, &record.RunUUID, &startRaw, &endRaw, &record.RunDurationMs,
			&record.TotalEvents, &record.TotalJourneys, &record.ConvertedValue, &record.ConfigParams); err != nil {
			return nil, fmt.Errorf("failed to scan analysis run: %w", err)
		}
		if record.StartTime, err = parseTime(startRaw); err != nil {
			return nil, fmt.Errorf("failed to parse start_time: %w", err)
		}
		if endRaw != nil {
			endTime, err := parseTime(endRaw)
			if err != nil {
				return nil, fmt.Errorf("failed to parse end_time: %w", err)
			}
			record.EndTime = &endTime
		}
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating analysis runs: %w", err)
	}
	return results, nil
}

// GetAllModelCredits retrieves every stored credit row in model report order.
func (as *AnalysisStoreImpl) GetAllModelCredits() ([]schema.ModelCreditRecord, error) {
	if as.disabled() {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT analysis_id, model, stage, credit_value, credit_pct, method FROM %s`, as.table(modelCreditsTable))
	rows, err := as.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query model credits: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.ModelCreditRecord
	for rows.Next() {
		var r schema.ModelCreditRecord
		if err := rows.Scan(&r.AnalysisID, &r.Model, &r.Stage, &r.CreditValue, &r.CreditPct, &r.Method); err != nil {
			return nil, fmt.Errorf("failed to scan model credits: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating model credits: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.AnalysisID != b.AnalysisID {
			return a.AnalysisID < b.AnalysisID
		}
		if a.Model != b.Model {
			return modelOrder(a.Model) < modelOrder(b.Model)
		}
		return stageOrder(a.Stage) < stageOrder(b.Stage)
	})
	return results, nil
}

// GetAllModelScores retrieves every stored score row in model report order.
func (as *AnalysisStoreImpl) GetAllModelScores() ([]schema.ModelScoreRecord, error) {
	if as.disabled() {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT analysis_id, model, accuracy, fairness, business_value, degraded FROM %s`, as.table(modelScoresTable))
	rows, err := as.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query model scores: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.ModelScoreRecord
	for rows.Next() {
		var r schema.ModelScoreRecord
		if err := rows.Scan(&r.AnalysisID, &r.Model, &r.Accuracy, &r.Fairness, &r.BusinessValue, &r.Degraded); err != nil {
			return nil, fmt.Errorf("failed to scan model scores: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating model scores: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].AnalysisID != results[j].AnalysisID {
			return results[i].AnalysisID < results[j].AnalysisID
		}
		return modelOrder(results[i].Model) < modelOrder(results[j].Model)
	})
	return results, nil
}

// GetAllScenarios retrieves every stored scenario row in preset order.
func (as *AnalysisStoreImpl) GetAllScenarios() ([]schema.ScenarioRecord, error) {
	if as.disabled() {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT analysis_id, name, awareness_budget, cart_budget, projected_revenue, projected_roas, projected_lift, risk_level FROM %s`,
		as.table(scenariosTable))
	rows, err := as.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query scenarios: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.ScenarioRecord
	for rows.Next() {
		var r schema.ScenarioRecord
		if err := rows.Scan(&r.AnalysisID, &r.Name, &r.AwarenessBudget, &r.CartBudget,
			&r.ProjectedRevenue, &r.ProjectedROAS, &r.ProjectedLift, &r.RiskLevel); err != nil {
			return nil, fmt.Errorf("failed to scan scenarios: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scenarios: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].AnalysisID != results[j].AnalysisID {
			return results[i].AnalysisID < results[j].AnalysisID
		}
		return scenarioOrder(results[i].Name) < scenarioOrder(results[j].Name)
	})
	return results, nil
}

func modelOrder(model string) int {
	for i, m := range schema.AllModels {
		if string(m) == model {
			return i
		}
	}
	return len(schema.AllModels)
}

func stageOrder(stage string) int {
	for i, s := range schema.ReportStages {
		if string(s) == stage {
			return i
		}
	}
	return len(schema.ReportStages)
}

func scenarioOrder(name string) int {
	for i, n := range schema.PresetNames {
		if n == name {
			return i
		}
	}
	return len(schema.PresetNames)
}
