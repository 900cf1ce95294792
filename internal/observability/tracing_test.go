package observability

import (
	"context"
	"errors"
	"testing"

	"socialhub/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInitTracingDisabledIsNoop(t *testing.T) {
	shutdown, err := InitTracing(TracingConfig{ServiceName: "socialhub-test"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
	assert.NotNil(t, otel.GetTextMapPropagator())
}

func TestStartSpanRecordsError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := Tracer
	Tracer = tp.Tracer("test")
	t.Cleanup(func() { Tracer = prev })

	_, span := StartSpan(context.Background(), "service", "CreatePost")
	EndSpan(span, errors.New("boom"))

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "service.CreatePost", ended[0].Name())
	assert.Equal(t, codes.Error, ended[0].Status().Code)
}

func TestNewTracingConfig(t *testing.T) {
	cfg := &config.Config{Env: "staging", TracingEnabled: true, TracingExporter: "otlp", TracingEndpoint: "collector:4318", TracingSampleRatio: 0.25}
	tc := NewTracingConfig(cfg, "2.1")
	assert.Equal(t, ServiceName, tc.ServiceName)
	assert.Equal(t, "2.1", tc.ServiceVersion)
	assert.Equal(t, "staging", tc.Environment)
	assert.True(t, tc.Enabled)
	assert.Equal(t, "collector:4318", tc.OTLPEndpoint)
	assert.InDelta(t, 0.25, tc.SamplerRatio, 1e-9)
}

func TestSamplerFor(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), samplerFor(1).Description())
	assert.Contains(t, samplerFor(0).Description(), "AlwaysOffSampler")
	assert.Contains(t, samplerFor(0.5).Description(), "TraceIDRatioBased{0.5}")
}

func TestPostAttr(t *testing.T) {
	kv := PostAttr(42)
	assert.Equal(t, "post.id", string(kv.Key))
	assert.Equal(t, int64(42), kv.Value.AsInt64())
}
