package schema

import "time"

// AnalysisRunRecord represents a row from the attribution_runs table.
type AnalysisRunRecord struct {
	AnalysisID     int64
	RunUUID        string
	StartTime      time.Time
	EndTime        *time.Time
	RunDurationMs  *int32
	TotalEvents    int32
	TotalJourneys  int32
	ConvertedValue float64
	ConfigParams   *string
}

// ModelCreditRecord represents a row from the attribution_model_credits table.
type ModelCreditRecord struct {
	AnalysisID  int64
	Model       string
	Stage       string
	CreditValue float64
	CreditPct   float64
	Method      string
}

// ModelScoreRecord represents a row from the attribution_model_scores table.
type ModelScoreRecord struct {
	AnalysisID    int64
	Model         string
	Accuracy      float64
	Fairness      float64
	BusinessValue float64
	Degraded      bool
}

// ScenarioRecord represents a row from the attribution_scenarios table.
type ScenarioRecord struct {
	AnalysisID       int64
	Name             string
	AwarenessBudget  float64
	CartBudget       float64
	ProjectedRevenue float64
	ProjectedROAS    float64
	ProjectedLift    float64
	RiskLevel        string
}
