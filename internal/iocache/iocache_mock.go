package iocache

import (
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/step6836/marketing-attribution/internal/contract"
	"github.com/step6836/marketing-attribution/schema"
)

// MockCacheManager is a mock implementation of CacheManager for testing.
type MockCacheManager struct {
	mock.Mock
}

var _ contract.CacheManager = &MockCacheManager{} // Compile-time check

// GetJourneyStore implements the CacheManager interface.
func (m *MockCacheManager) GetJourneyStore() contract.CacheStore {
	ret := m.Called()
	store, _ := ret.Get(0).(contract.CacheStore)
	return store
}

// GetAnalysisStore implements the CacheManager interface.
func (m *MockCacheManager) GetAnalysisStore() contract.AnalysisStore {
	ret := m.Called()
	store, _ := ret.Get(0).(contract.AnalysisStore)
	return store
}

// MockCacheStore is a mock implementation of CacheStore for testing.
type MockCacheStore struct {
	mock.Mock
}

var _ contract.CacheStore = &MockCacheStore{} // Compile-time check

// Get implements the CacheStore interface.
func (m *MockCacheStore) Get(key string) ([]byte, int, int64, error) {
	args := m.Called(key)
	data, _ := args.Get(0).([]byte)
	return data, args.Int(1), args.Get(2).(int64), args.Error(3)
}

// Set implements the CacheStore interface.
func (m *MockCacheStore) Set(key string, data []byte, version int, ts int64) error {
	args := m.Called(key, data, version, ts)
	return args.Error(0)
}

// Close implements the CacheStore interface.
func (m *MockCacheStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// GetStatus implements the CacheStore interface.
func (m *MockCacheStore) GetStatus() (schema.CacheStatus, error) {
	args := m.Called()
	return args.Get(0).(schema.CacheStatus), args.Error(1)
}

// MockAnalysisStore is a mock implementation of AnalysisStore for testing.
type MockAnalysisStore struct {
	mock.Mock
}

var _ contract.AnalysisStore = &MockAnalysisStore{} // Compile-time check

// BeginAnalysis implements the AnalysisStore interface.
func (m *MockAnalysisStore) BeginAnalysis(startTime time.Time, configParams map[string]any) (int64, error) {
	args := m.Called(startTime, configParams)
	return args.Get(0).(int64), args.Error(1)
}

// EndAnalysis implements the AnalysisStore interface.
func (m *MockAnalysisStore) EndAnalysis(analysisID int64, endTime time.Time, totalEvents, totalJourneys int, convertedValue float64) error {
	args := m.Called(analysisID, endTime, totalEvents, totalJourneys, convertedValue)
	return args.Error(0)
}

// RecordModelCredits implements the AnalysisStore interface.
func (m *MockAnalysisStore) RecordModelCredits(analysisID int64, result schema.AttributionResult) error {
	args := m.Called(analysisID, result)
	return args.Error(0)
}

// RecordModelScores implements the AnalysisStore interface.
func (m *MockAnalysisStore) RecordModelScores(analysisID int64, model schema.ModelKind, metric schema.ComparisonMetric, degraded bool) error {
	args := m.Called(analysisID, model, metric, degraded)
	return args.Error(0)
}

// RecordScenario implements the AnalysisStore interface.
func (m *MockAnalysisStore) RecordScenario(analysisID int64, scenario schema.Scenario) error {
	args := m.Called(analysisID, scenario)
	return args.Error(0)
}

// GetStatus implements the AnalysisStore interface.
func (m *MockAnalysisStore) GetStatus() (schema.AnalysisStatus, error) {
	args := m.Called()
	return args.Get(0).(schema.AnalysisStatus), args.Error(1)
}

// GetAllAnalysisRuns implements the AnalysisStore interface.
func (m *MockAnalysisStore) GetAllAnalysisRuns() ([]schema.AnalysisRunRecord, error) {
	args := m.Called()
	rows, _ := args.Get(0).([]schema.AnalysisRunRecord)
	return rows, args.Error(1)
}

// GetAllModelCredits implements the AnalysisStore interface.
func (m *MockAnalysisStore) GetAllModelCredits() ([]schema.ModelCreditRecord, error) {
	args := m.Called()
	rows, _ := args.Get(0).([]schema.ModelCreditRecord)
	return rows, args.Error(1)
}

// GetAllModelScores implements the AnalysisStore interface.
func (m *MockAnalysisStore) GetAllModelScores() ([]schema.ModelScoreRecord, error) {
	args := m.Called()
	rows, _ := args.Get(0).([]schema.ModelScoreRecord)
	return rows, args.Error(1)
}

// GetAllScenarios implements the AnalysisStore interface.
func (m *MockAnalysisStore) GetAllScenarios() ([]schema.ScenarioRecord, error) {
	args := m.Called()
	rows, _ := args.Get(0).([]schema.ScenarioRecord)
	return rows, args.Error(1)
}

// Close implements the AnalysisStore interface.
func (m *MockAnalysisStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
