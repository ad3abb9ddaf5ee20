package telemetry

import (
	"context"
	"sync"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// TestTelemetry records spans and metrics in memory so tests can assert
// on what the webhook and search paths emit without an OTLP collector.
type TestTelemetry struct {
	*Telemetry

	SpanRecorder   *tracetest.SpanRecorder
	MetricReader   *testMetricReader
	tracerProvider *trace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
}

// NewTestTelemetry builds telemetry backed by in-memory recorders.
func NewTestTelemetry() *TestTelemetry {
	cfg := NewDefaultConfig()
	cfg.Enabled = true

	recorder := tracetest.NewSpanRecorder()
	tp := trace.NewTracerProvider(trace.WithSpanProcessor(recorder))

	reader := newTestMetricReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader.reader))

	return &TestTelemetry{
		Telemetry: &Telemetry{
			config:         cfg,
			tracerProvider: tp,
			meterProvider:  mp,
		},
		SpanRecorder:   recorder,
		MetricReader:   reader,
		tracerProvider: tp,
		meterProvider:  mp,
	}
}

// Spans returns every span ended so far.
func (t *TestTelemetry) Spans() []trace.ReadOnlySpan {
	return t.SpanRecorder.Ended()
}

// SpanByName returns the first ended span with the given name, or nil.
func (t *TestTelemetry) SpanByName(name string) trace.ReadOnlySpan {
	for _, span := range t.Spans() {
		if span.Name() == name {
			return span
		}
	}
	return nil
}

// AssertSpanExists fails the test when no span with the given name ended.
func (t *TestTelemetry) AssertSpanExists(tb testing.TB, name string) {
	tb.Helper()
	if t.SpanByName(name) == nil {
		tb.Errorf("expected span %q not found, got: %v", name, t.spanNames())
	}
}

// AssertSpanAttribute fails the test unless the named span carries the
// attribute with the expected value.
func (t *TestTelemetry) AssertSpanAttribute(tb testing.TB, spanName string, key string, expected interface{}) {
	tb.Helper()
	span := t.SpanByName(spanName)
	if span == nil {
		tb.Fatalf("span %q not found", spanName)
	}

	for _, attr := range span.Attributes() {
		if string(attr.Key) != key {
			continue
		}
		if got := attrValue(attr.Value); got != expected {
			tb.Errorf("span %q attribute %q: got %v, want %v", spanName, key, got, expected)
		}
		return
	}
	tb.Errorf("span %q missing attribute %q", spanName, key)
}

func (t *TestTelemetry) spanNames() []string {
	spans := t.Spans()
	names := make([]string, len(spans))
	for i, span := range spans {
		names[i] = span.Name()
	}
	return names
}

// attrValue unwraps an attribute value to a comparable Go value.
func attrValue(v attribute.Value) interface{} {
	switch v.Type() {
	case attribute.STRING:
		return v.AsString()
	case attribute.INT64:
		return v.AsInt64()
	case attribute.FLOAT64:
		return v.AsFloat64()
	case attribute.BOOL:
		return v.AsBool()
	default:
		return v.AsInterface()
	}
}

// Reset is a placeholder for symmetry with other test doubles. The SDK
// span recorder keeps ended spans until it is garbage collected, so
// tests needing isolation construct a fresh TestTelemetry instead.
func (t *TestTelemetry) Reset() {}

// testMetricReader wraps the SDK manual reader and keeps every
// collection it was asked to perform.
type testMetricReader struct {
	reader  *sdkmetric.ManualReader
	mu      sync.Mutex
	metrics []metricdata.ResourceMetrics
}

func newTestMetricReader() *testMetricReader {
	return &testMetricReader{
		reader: sdkmetric.NewManualReader(),
	}
}

// ForceFlush collects current instrument values and stores the snapshot.
func (r *testMetricReader) ForceFlush(ctx context.Context) error {
	var rm metricdata.ResourceMetrics
	if err := r.reader.Collect(ctx, &rm); err != nil {
		return err
	}

	r.mu.Lock()
	r.metrics = append(r.metrics, rm)
	r.mu.Unlock()
	return nil
}

// Shutdown shuts down the underlying reader.
func (r *testMetricReader) Shutdown(ctx context.Context) error {
	return r.reader.Shutdown(ctx)
}

// Metrics returns every snapshot collected so far.
func (r *testMetricReader) Metrics() []metricdata.ResourceMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.metrics
}
