package importer

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/m5trevino/peacock-mem/internal/importer"

var tracer = otel.Tracer("peacock.importer")

type metrics struct {
	files     metric.Int64Counter
	documents metric.Int64Counter
	failures  metric.Int64Counter
	duration  metric.Float64Histogram
}

func newMetrics(logger *zap.Logger) *metrics {
	meter := otel.Meter(instrumentationName)
	m := &metrics{}
	var err error

	m.files, err = meter.Int64Counter(
		"peacock.import.files_total",
		metric.WithDescription("Files processed by format and outcome"),
		metric.WithUnit("{file}"),
	)
	if err != nil {
		logger.Warn("failed to create files counter", zap.Error(err))
	}

	m.documents, err = meter.Int64Counter(
		"peacock.import.documents_total",
		metric.WithDescription("Documents written by format"),
		metric.WithUnit("{document}"),
	)
	if err != nil {
		logger.Warn("failed to create documents counter", zap.Error(err))
	}

	m.failures, err = meter.Int64Counter(
		"peacock.import.item_failures_total",
		metric.WithDescription("Records that failed to import"),
		metric.WithUnit("{item}"),
	)
	if err != nil {
		logger.Warn("failed to create failures counter", zap.Error(err))
	}

	m.duration, err = meter.Float64Histogram(
		"peacock.import.duration_seconds",
		metric.WithDescription("Time to import one file"),
		metric.WithUnit("s"),
	)
	if err != nil {
		logger.Warn("failed to create duration histogram", zap.Error(err))
	}
	return m
}

func (m *metrics) record(ctx context.Context, r FileResult, took time.Duration) {
	outcome := "ok"
	if r.Err != nil {
		outcome = "failed"
	}
	attrs := metric.WithAttributes(
		attribute.String("format", r.Format.String()),
		attribute.String("outcome", outcome),
	)
	if m.files != nil {
		m.files.Add(ctx, 1, attrs)
	}
	if m.duration != nil {
		m.duration.Record(ctx, took.Seconds(), attrs)
	}
	formatOnly := metric.WithAttributes(attribute.String("format", r.Format.String()))
	if m.documents != nil && r.Written > 0 {
		m.documents.Add(ctx, int64(r.Written), formatOnly)
	}
	if m.failures != nil && len(r.Failures) > 0 {
		m.failures.Add(ctx, int64(len(r.Failures)), formatOnly)
	}
}
