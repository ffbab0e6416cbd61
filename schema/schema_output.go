package schema

// Scenario is a named or ad-hoc point in budget-allocation space with its projected outcome.
type Scenario struct {
	Name             string    `json:"name"`
	AwarenessBudget  float64   `json:"awareness_budget"`
	CartBudget       float64   `json:"cart_budget"`
	TotalBudget      float64   `json:"total_budget"`
	ProjectedRevenue float64   `json:"projected_revenue"`
	ProjectedROAS    float64   `json:"projected_roas"`
	ProjectedLift    float64   `json:"projected_lift"` // percent
	RiskLevel        RiskLevel `json:"risk_level"`
}

// CartShare returns the cart budget as a fraction of the total budget.
func (s Scenario) CartShare() float64 {
	return SafeDiv(s.CartBudget, s.TotalBudget)
}

// JourneyStats holds aggregate descriptive statistics over the journey set.
type JourneyStats struct {
	AvgTouchpoints        float64 `json:"avg_touchpoints"`
	AvgDays               float64 `json:"avg_days"`
	TotalJourneysAnalyzed int     `json:"total_journeys_analyzed"`
	TotalJourneys         int     `json:"total_journeys"`
	ConversionRate        float64 `json:"conversion_rate"`
	CartAbandonmentRate   float64 `json:"cart_abandonment_rate"`
}

// Meta describes the input the artifact was computed from.
type Meta struct {
	TotalEvents       int `json:"total_events"`
	TotalUsers        int `json:"total_users"`
	TotalSessions     int `json:"total_sessions"`
	AnalysisSample    int `json:"analysis_sample"`
	BotFiltered       int `json:"bot_filtered"`
	BotUsers          int `json:"bot_users"`
	DuplicatesRemoved int `json:"duplicates_removed"`
	MalformedDropped  int `json:"malformed_dropped"`
	IgnoredEvents     int `json:"ignored_events"`
}

// StageShare is the per-model stage percentage published to the dashboard.
// Purchase is omitted because it is terminal.
type StageShare struct {
	View float64 `json:"view"`
	Cart float64 `json:"cart"`
}

// Artifact is the result document consumed by the dashboard.
type Artifact struct {
	Meta              Meta                           `json:"meta"`
	AttributionModels map[ModelKind]StageShare       `json:"attribution_models"`
	ModelComparison   map[ModelKind]ComparisonMetric `json:"model_comparison"`
	JourneyStats      JourneyStats                   `json:"journey_stats"`
	Scenarios         []Scenario                     `json:"scenarios"`
	Diagnostics       map[ModelKind]Diagnostic       `json:"diagnostics"`
	Credits           map[ModelKind]StageCredit      `json:"credits,omitempty"`
}

// RunOutput is everything a single analysis run produced.
// Results are keyed by model and always hold all five models.
type RunOutput struct {
	Artifact Artifact
	Results  map[ModelKind]AttributionResult
	Journeys []Journey
	RunID    int64
}
