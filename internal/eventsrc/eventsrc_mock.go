package eventsrc

import (
	"context"

	"github.com/step6836/marketing-attribution/internal/contract"
	"github.com/step6836/marketing-attribution/schema"
	"github.com/stretchr/testify/mock"
)

// MockEventSource is a mock implementation of EventSource for testing.
type MockEventSource struct {
	mock.Mock
}

var _ contract.EventSource = &MockEventSource{} // Compile-time check

// Name implements the EventSource interface.
func (m *MockEventSource) Name() string {
	args := m.Called()
	return args.String(0)
}

// Fingerprint implements the EventSource interface.
func (m *MockEventSource) Fingerprint(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

// Load implements the EventSource interface.
func (m *MockEventSource) Load(ctx context.Context) ([]schema.Event, error) {
	args := m.Called(ctx)
	events, _ := args.Get(0).([]schema.Event)
	return events, args.Error(1)
}
