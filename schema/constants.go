// Package schema holds the data types, constants and errors shared across the attribution pipeline.
package schema

// Custom string types for type safety.
type (
	// Stage represents the funnel stage of an event or touchpoint.
	Stage string

	// ModelKind represents one of the attribution methodologies.
	ModelKind string

	// OutputMode represents the format of the output.
	OutputMode string

	// InputFormat represents the encoding of an event log.
	InputFormat string

	// DatabaseBackend represents the database backend for caching and run tracking.
	DatabaseBackend string

	// ScoringMethod represents how model comparison scores are produced.
	ScoringMethod string

	// CoalitionMethod represents the Shapley coalition value function.
	CoalitionMethod string

	// RiskLevel represents the risk label of a budget scenario.
	RiskLevel string
)

// All funnel stages supported.
const (
	ViewStage     Stage = "view"
	CartStage     Stage = "cart"
	PurchaseStage Stage = "purchase"
)

// All attribution models supported.
const (
	FirstTouchModel ModelKind = "first_touch"
	LastTouchModel  ModelKind = "last_touch"
	LinearModel     ModelKind = "linear"
	ShapleyModel    ModelKind = "shapley"
	MarkovModel     ModelKind = "markov"
)

// All output modes supported.
const (
	CSVOut     OutputMode = "csv"
	TextOut    OutputMode = "text" // default
	JSONOut    OutputMode = "json"
	ParquetOut OutputMode = "parquet"
)

// All input formats supported.
const (
	AutoFormat    InputFormat = "auto" // default
	CSVFormat     InputFormat = "csv"
	JSONLFormat   InputFormat = "jsonl"
	ParquetFormat InputFormat = "parquet"
)

// All database backends supported.
const (
	SQLiteBackend     DatabaseBackend = "sqlite"
	MySQLBackend      DatabaseBackend = "mysql"
	PostgreSQLBackend DatabaseBackend = "postgresql"
	RedisBackend      DatabaseBackend = "redis" // cache only
	NoneBackend       DatabaseBackend = "none"
)

// All scoring methods supported.
const (
	ProfileScoring ScoringMethod = "profile" // default
	DerivedScoring ScoringMethod = "derived"
)

// All coalition value functions supported.
const (
	DiminishingCoalition CoalitionMethod = "diminishing" // default
	CoverageCoalition    CoalitionMethod = "coverage"
)

// All risk levels supported.
const (
	LowRisk    RiskLevel = "Low"
	MediumRisk RiskLevel = "Medium"
	HighRisk   RiskLevel = "High"
)

// Scenario preset names.
const (
	CurrentScenario     = "current"
	RecommendedScenario = "recommended"
	AggressiveScenario  = "aggressive"
	CustomScenario      = "custom"
)

// ReportStages is the fixed order in which stages are reported.
var ReportStages = []Stage{ViewStage, CartStage, PurchaseStage}

// AllModels is the closed set of attribution models in reporting order.
var AllModels = []ModelKind{FirstTouchModel, LastTouchModel, LinearModel, ShapleyModel, MarkovModel}

// PresetNames lists the named scenarios in display order.
var PresetNames = []string{CurrentScenario, RecommendedScenario, AggressiveScenario}

// ValidStages contains all valid funnel stages.
var ValidStages = map[Stage]bool{
	ViewStage:     true,
	CartStage:     true,
	PurchaseStage: true,
}

// ValidModels contains all valid attribution models.
var ValidModels = map[ModelKind]bool{
	FirstTouchModel: true,
	LastTouchModel:  true,
	LinearModel:     true,
	ShapleyModel:    true,
	MarkovModel:     true,
}

// ValidOutputModes contains all valid output modes.
var ValidOutputModes = map[OutputMode]bool{
	CSVOut:     true,
	TextOut:    true,
	JSONOut:    true,
	ParquetOut: true,
}

// ValidInputFormats contains all valid input formats.
var ValidInputFormats = map[InputFormat]bool{
	AutoFormat:    true,
	CSVFormat:     true,
	JSONLFormat:   true,
	ParquetFormat: true,
}

// ValidCacheBackends contains all valid cache backends.
var ValidCacheBackends = map[DatabaseBackend]bool{
	SQLiteBackend:     true,
	MySQLBackend:      true,
	PostgreSQLBackend: true,
	RedisBackend:      true,
	NoneBackend:       true,
}

// ValidAnalysisBackends contains all valid analysis tracking backends.
var ValidAnalysisBackends = map[DatabaseBackend]bool{
	SQLiteBackend:     true,
	MySQLBackend:      true,
	PostgreSQLBackend: true,
	NoneBackend:       true,
}

// ValidScoringMethods contains all valid scoring methods.
var ValidScoringMethods = map[ScoringMethod]bool{
	ProfileScoring: true,
	DerivedScoring: true,
}

// ValidCoalitionMethods contains all valid coalition value functions.
var ValidCoalitionMethods = map[CoalitionMethod]bool{
	DiminishingCoalition: true,
	CoverageCoalition:    true,
}
