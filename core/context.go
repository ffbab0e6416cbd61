package core

import (
	"context"

	"go.uber.org/zap"

	"github.com/step6836/marketing-attribution/internal/logger"
)

// Context keys for analysis options
type contextKey string

const analysisIDKey contextKey = "analysisID"

// WithLogger returns a copy of ctx carrying l for every pipeline stage.
func WithLogger(ctx context.Context, l *zap.Logger) context.Context {
	return logger.WithContext(ctx, l)
}

// withAnalysisID records the id of the tracked run in the context
func withAnalysisID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, analysisIDKey, id)
}

// analysisIDFrom returns the tracked run id, or zero when the run is not tracked
func analysisIDFrom(ctx context.Context) int64 {
	id, ok := ctx.Value(analysisIDKey).(int64)
	if !ok {
		return 0
	}
	return id
}
