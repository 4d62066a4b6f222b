package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestInitTracing_Disabled(t *testing.T) {
	tp, err := InitTracing(context.Background(), TracingConfig{Enabled: false}, "test")
	require.NoError(t, err)
	defer tp.Shutdown(context.Background())

	assert.NotNil(t, tp.Tracer())
}

func TestDefaultTracingConfig(t *testing.T) {
	cfg := DefaultTracingConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.Equal(t, "tripmux", cfg.ServiceName)
	assert.Equal(t, 1.0, cfg.SampleRate)
}

func TestSamplerFor(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), samplerFor(1).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), samplerFor(0).Description())
	assert.Contains(t, samplerFor(0.25).Description(), "TraceIDRatioBased")
}

func TestCompletionAndAttemptSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer provider.Shutdown(context.Background())
	tracer := provider.Tracer(TracerName)

	ctx, root := StartCompletionSpan(context.Background(), tracer, CompletionSpanAttributes{
		Operation: "itinerary",
		Provider:  "openai",
		Model:     "gpt-4o-mini",
		CacheKey:  "tripmux:abcdef0123456789",
	})
	_, attempt := StartAttemptSpan(ctx, tracer, "openai", 2)
	RecordError(attempt, errors.New("503 Service Unavailable"), "service_unavailable")
	attempt.End()
	root.End()

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	up := spans[0]
	assert.Equal(t, "ai.upstream", up.Name())
	assert.Equal(t, codes.Error, up.Status().Code)
	assert.Contains(t, up.Attributes(), attribute.Int("ai.attempt", 2))
	assert.Contains(t, up.Attributes(), attribute.String("ai.error.kind", "service_unavailable"))
	assert.Equal(t, root.SpanContext().SpanID(), up.Parent().SpanID())

	top := spans[1]
	assert.Equal(t, "ai.complete", top.Name())
	assert.Contains(t, top.Attributes(), attribute.String("ai.operation", "itinerary"))
	assert.Contains(t, top.Attributes(), attribute.String("ai.cache.key", "tripmux:..."))
}

func TestTracerProvider_ShutdownWithoutSDK(t *testing.T) {
	tp := &TracerProvider{tracer: noop.NewTracerProvider().Tracer("test")}
	assert.NoError(t, tp.Shutdown(context.Background()))
}
