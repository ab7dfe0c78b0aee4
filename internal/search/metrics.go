package search

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/m5trevino/peacock-mem/internal/search"

type metrics struct {
	searches metric.Int64Counter
	results  metric.Int64Histogram
}

func newMetrics(logger *zap.Logger) *metrics {
	meter := otel.Meter(instrumentationName)
	m := &metrics{}
	var err error

	m.searches, err = meter.Int64Counter(
		"peacock.search.requests_total",
		metric.WithDescription("Searches by scope"),
		metric.WithUnit("{search}"),
	)
	if err != nil {
		logger.Warn("failed to create search counter", zap.Error(err))
	}

	m.results, err = meter.Int64Histogram(
		"peacock.search.results",
		metric.WithDescription("Results returned per search"),
		metric.WithUnit("{result}"),
		metric.WithExplicitBucketBoundaries(0, 1, 5, 10, 25, 50, 100),
	)
	if err != nil {
		logger.Warn("failed to create results histogram", zap.Error(err))
	}
	return m
}

func (m *metrics) record(ctx context.Context, scope string, n int) {
	attrs := metric.WithAttributes(attribute.String("scope", scope))
	if m.searches != nil {
		m.searches.Add(ctx, 1, attrs)
	}
	if m.results != nil {
		m.results.Record(ctx, int64(n), attrs)
	}
}
