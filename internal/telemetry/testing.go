package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// TestTelemetry records spans and metrics in memory. Install sets it as the
// global provider so package-level tracers pick it up.
type TestTelemetry struct {
	SpanRecorder *tracetest.SpanRecorder

	tracerProvider *trace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	reader         *sdkmetric.ManualReader
}

// NewTestTelemetry creates telemetry with in-memory exporters.
func NewTestTelemetry() *TestTelemetry {
	recorder := tracetest.NewSpanRecorder()
	reader := sdkmetric.NewManualReader()

	return &TestTelemetry{
		SpanRecorder:   recorder,
		tracerProvider: trace.NewTracerProvider(trace.WithSpanProcessor(recorder)),
		meterProvider:  sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
		reader:         reader,
	}
}

// Install makes tt the global tracer and meter provider until the test ends.
func (tt *TestTelemetry) Install(tb testing.TB) {
	tb.Helper()
	prevTP := otel.GetTracerProvider()
	prevMP := otel.GetMeterProvider()
	otel.SetTracerProvider(tt.tracerProvider)
	otel.SetMeterProvider(tt.meterProvider)
	tb.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetMeterProvider(prevMP)
	})
}

// Spans returns all ended spans.
func (tt *TestTelemetry) Spans() []trace.ReadOnlySpan {
	return tt.SpanRecorder.Ended()
}

// SpanByName finds a span by name, or nil if not found.
func (tt *TestTelemetry) SpanByName(name string) trace.ReadOnlySpan {
	for _, span := range tt.Spans() {
		if span.Name() == name {
			return span
		}
	}
	return nil
}

// AssertSpanExists verifies a span with the given name was recorded.
func (tt *TestTelemetry) AssertSpanExists(tb testing.TB, name string) {
	tb.Helper()
	if tt.SpanByName(name) != nil {
		return
	}
	names := make([]string, 0, len(tt.Spans()))
	for _, s := range tt.Spans() {
		names = append(names, s.Name())
	}
	tb.Errorf("expected span %q not found, got: %v", name, names)
}

// SpanAttribute returns the value of key on the named span.
func (tt *TestTelemetry) SpanAttribute(name, key string) (attribute.Value, bool) {
	span := tt.SpanByName(name)
	if span == nil {
		return attribute.Value{}, false
	}
	for _, attr := range span.Attributes() {
		if string(attr.Key) == key {
			return attr.Value, true
		}
	}
	return attribute.Value{}, false
}

// Collect gathers current metric data.
func (tt *TestTelemetry) Collect(ctx context.Context) (metricdata.ResourceMetrics, error) {
	var rm metricdata.ResourceMetrics
	err := tt.reader.Collect(ctx, &rm)
	return rm, err
}

// CounterValue sums an int64 counter across data points, or returns false.
func (tt *TestTelemetry) CounterValue(ctx context.Context, name string) (int64, bool) {
	rm, err := tt.Collect(ctx)
	if err != nil {
		return 0, false
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				return 0, false
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total, true
		}
	}
	return 0, false
}
