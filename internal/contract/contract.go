// Package contract provides interfaces and shared utilities for internal architecture.
package contract

import (
	"context"
	"time"

	"github.com/step6836/marketing-attribution/schema"
)

// EventSource loads raw events for one analysis run.
// This allows the pipeline to be tested without files on disk.
type EventSource interface {
	// Name identifies the source in logs and cache keys.
	Name() string

	// Fingerprint returns a digest that changes whenever the loaded events would change.
	Fingerprint(ctx context.Context) (string, error)

	// Load reads every record. Records that cannot be decoded are returned as
	// *schema.DataIntegrityError.
	Load(ctx context.Context) ([]schema.Event, error)
}

// CacheManager defines the interface for managing cache stores.
// This allows the cache layer to be mocked for testing.
type CacheManager interface {
	GetJourneyStore() CacheStore
	GetAnalysisStore() AnalysisStore
}

// CacheStore defines the interface for cache data storage.
// This allows mocking the store for testing.
type CacheStore interface {
	Get(key string) ([]byte, int, int64, error)
	Set(key string, value []byte, version int, timestamp int64) error
	GetStatus() (schema.CacheStatus, error)
	Close() error
}

// AnalysisStore defines the interface for tracking analysis runs and their results.
type AnalysisStore interface {
	// BeginAnalysis creates a new analysis run and returns its unique ID
	BeginAnalysis(startTime time.Time, configParams map[string]any) (int64, error)

	// EndAnalysis updates the analysis run with completion data
	EndAnalysis(analysisID int64, endTime time.Time, totalEvents, totalJourneys int, convertedValue float64) error

	// RecordModelCredits stores the per-stage credit of one model
	RecordModelCredits(analysisID int64, result schema.AttributionResult) error

	// RecordModelScores stores the comparison metric of one model
	RecordModelScores(analysisID int64, model schema.ModelKind, metric schema.ComparisonMetric, degraded bool) error

	// RecordScenario stores one projected scenario
	RecordScenario(analysisID int64, scenario schema.Scenario) error

	// GetStatus returns status information about the analysis store
	GetStatus() (schema.AnalysisStatus, error)

	// GetAllAnalysisRuns returns every run ordered by id
	GetAllAnalysisRuns() ([]schema.AnalysisRunRecord, error)

	// GetAllModelCredits returns every stored credit row
	GetAllModelCredits() ([]schema.ModelCreditRecord, error)

	// GetAllModelScores returns every stored score row
	GetAllModelScores() ([]schema.ModelScoreRecord, error)

	// GetAllScenarios returns every stored scenario row
	GetAllScenarios() ([]schema.ScenarioRecord, error)

	// Close closes the underlying connection
	Close() error
}
