package mcp

import (
	"context"
	"errors"
	"time"

	"github.com/m5trevino/peacock-mem/internal/files"
	"github.com/m5trevino/peacock-mem/internal/importer"
	"github.com/m5trevino/peacock-mem/internal/search"
	"github.com/m5trevino/peacock-mem/internal/store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/m5trevino/peacock-mem/internal/mcp"

// Metrics holds the tool invocation instruments.
type Metrics struct {
	meter          metric.Meter
	logger         *zap.Logger
	invocations    metric.Int64Counter
	duration       metric.Float64Histogram
	errors         metric.Int64Counter
	activeRequests metric.Int64UpDownCounter
}

// NewMetrics creates the instruments on the global meter provider.
func NewMetrics(logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Metrics{
		meter:  otel.Meter(instrumentationName),
		logger: logger,
	}
	m.init()
	return m
}

func (m *Metrics) init() {
	var err error

	m.invocations, err = m.meter.Int64Counter(
		"peacock.mcp.tool.invocations_total",
		metric.WithDescription("MCP tool invocations"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		m.logger.Warn("failed to create invocations counter", zap.Error(err))
	}

	m.duration, err = m.meter.Float64Histogram(
		"peacock.mcp.tool.duration_seconds",
		metric.WithDescription("MCP tool invocation duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		m.logger.Warn("failed to create duration histogram", zap.Error(err))
	}

	m.errors, err = m.meter.Int64Counter(
		"peacock.mcp.tool.errors_total",
		metric.WithDescription("MCP tool errors by reason"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		m.logger.Warn("failed to create errors counter", zap.Error(err))
	}

	m.activeRequests, err = m.meter.Int64UpDownCounter(
		"peacock.mcp.tool.active_requests",
		metric.WithDescription("MCP tool invocations in flight"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		m.logger.Warn("failed to create active requests gauge", zap.Error(err))
	}
}

// RecordInvocation records one finished invocation.
func (m *Metrics) RecordInvocation(ctx context.Context, tool string, took time.Duration, err error) {
	attrs := []attribute.KeyValue{attribute.String("tool", tool)}
	if m.invocations != nil {
		m.invocations.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	if m.duration != nil {
		m.duration.Record(ctx, took.Seconds(), metric.WithAttributes(attrs...))
	}
	if err != nil && m.errors != nil {
		attrs = append(attrs, attribute.String("reason", categorizeError(err)))
		m.errors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// IncrementActive marks an invocation as started.
func (m *Metrics) IncrementActive(ctx context.Context, tool string) {
	if m.activeRequests != nil {
		m.activeRequests.Add(ctx, 1, metric.WithAttributes(attribute.String("tool", tool)))
	}
}

// DecrementActive marks an invocation as finished.
func (m *Metrics) DecrementActive(ctx context.Context, tool string) {
	if m.activeRequests != nil {
		m.activeRequests.Add(ctx, -1, metric.WithAttributes(attribute.String("tool", tool)))
	}
}

func categorizeError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidArgument),
		errors.Is(err, files.ErrEmptyContent),
		errors.Is(err, files.ErrInvalidOptions),
		errors.Is(err, search.ErrUnknownCategory):
		return "validation_error"
	case errors.Is(err, importer.ErrUnknownFormat),
		errors.Is(err, importer.ErrInvalidJSON),
		errors.Is(err, importer.ErrFileTooLarge),
		errors.Is(err, importer.ErrNothingImported):
		return "import_error"
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, store.ErrStoreUnavailable):
		return "storage_error"
	default:
		return "internal_error"
	}
}
