package schema

// StageCredit maps a stage to credited value (currency) or share (percent).
type StageCredit map[Stage]float64

// Total returns the sum over all stages.
func (sc StageCredit) Total() float64 {
	total := 0.0
	for _, v := range sc {
		total += v
	}
	return total
}

// Diagnostic records how a model produced its result.
type Diagnostic struct {
	Method   string   `json:"method"`
	Notes    []string `json:"notes,omitempty"`
	Degraded bool     `json:"degraded"`
}

// JourneyCredit is the credit a single journey distributed across its stages.
type JourneyCredit struct {
	JourneyID string
	Value     float64
	Credits   StageCredit
}

// AttributionResult is the output of one attribution model over a journey set.
type AttributionResult struct {
	Model            ModelKind       `json:"model"`
	Credits          StageCredit     `json:"credits"`
	Percentages      StageCredit     `json:"percentages"`
	TotalValue       float64         `json:"total_value"`
	JourneysCredited int             `json:"journeys_credited"`
	PerJourney       []JourneyCredit `json:"-"`
	Diagnostic       Diagnostic      `json:"diagnostic"`
}

// ComparisonMetric holds the descriptive scores of one model, each on a 0-10 scale.
type ComparisonMetric struct {
	Accuracy      float64 `json:"accuracy"`
	Fairness      float64 `json:"fairness"`
	BusinessValue float64 `json:"business_value"`
}

// ModelDescription explains one attribution model for the models command.
type ModelDescription struct {
	Model   ModelKind        `json:"model"`
	Name    string           `json:"name"`
	Rule    string           `json:"rule"`
	Profile ComparisonMetric `json:"profile"`
}
