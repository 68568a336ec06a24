package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStartSpan_NoTracer(t *testing.T) {
	SetTracer(nil)

	ctx, span := StartSpan(context.Background(), "noop")
	defer span.End()

	assert.Nil(t, GetActiveSpan(ctx))
	assert.Empty(t, GetTraceID(ctx))
	assert.Empty(t, GetSpanID(ctx))
}

func TestStartSpan_RecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	SetTracer(provider.Tracer("test"))
	t.Cleanup(func() { SetTracer(nil) })

	ctx, span := StartSpan(context.Background(), "merging.Coordinator.Merge")
	require.NotNil(t, GetActiveSpan(ctx))
	assert.Len(t, GetTraceID(ctx), 32)
	assert.Len(t, GetSpanID(ctx), 16)

	RecordError(span, errors.New("boom"))
	RecordError(span, nil)
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "merging.Coordinator.Merge", ended[0].Name())
	assert.Len(t, ended[0].Events(), 1)
}

func TestNewProvider_WithoutEndpoint(t *testing.T) {
	shutdown, err := NewProvider(context.Background(), ProviderConfig{ServiceName: "fern-test"})
	require.NoError(t, err)
	t.Cleanup(func() {
		SetTracer(nil)
		_ = shutdown(context.Background())
	})

	ctx, span := StartSpan(context.Background(), "probe")
	defer span.End()
	assert.NotEmpty(t, GetTraceID(ctx))
}
