package telemetry

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSetupDisabled(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Setup(false, &buf, "test")
	require.NoError(t, err)

	_, span := Start(context.Background(), "noop")
	End(span, nil)
	require.NoError(t, shutdown(context.Background()))
	assert.Empty(t, buf.String())
}

func TestSetupWritesSpans(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	var buf bytes.Buffer
	shutdown, err := Setup(true, &buf, "test")
	require.NoError(t, err)

	_, span := Start(context.Background(), "ingest", attribute.Int("events", 3))
	End(span, nil)
	require.NoError(t, shutdown(context.Background()))

	out := buf.String()
	assert.Contains(t, out, `"Name": "ingest"`)
	assert.Contains(t, out, "events")
	assert.Contains(t, out, "attribution")
}

func TestEndRecordsError(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	rec := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(NewProvider(sdktrace.WithSpanProcessor(rec)))

	ctx, parent := Start(context.Background(), "analyze")
	_, child := Start(ctx, "model", attribute.String("model", "markov"))
	End(child, errors.New("boom"))
	End(parent, nil)

	spans := rec.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "model", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "boom", spans[0].Status().Description)
	assert.Equal(t, spans[1].SpanContext().SpanID(), spans[0].Parent().SpanID())
	assert.Equal(t, codes.Unset, spans[1].Status().Code)
}
