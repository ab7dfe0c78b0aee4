package http

import (
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const httpInstrumentationName = "github.com/m5trevino/peacock-mem/internal/http"

// HTTPMetrics instruments the HTTP server through the global meter.
type HTTPMetrics struct {
	meter          metric.Meter
	logger         *zap.Logger
	requestsTotal  metric.Int64Counter
	requestDur     metric.Float64Histogram
	responseSize   metric.Int64Histogram
	activeRequests metric.Int64UpDownCounter
}

// NewHTTPMetrics creates the instruments. Creation failures are logged and
// the affected instrument is skipped.
func NewHTTPMetrics(logger *zap.Logger) *HTTPMetrics {
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &HTTPMetrics{
		meter:  otel.Meter(httpInstrumentationName),
		logger: logger,
	}
	m.init()
	return m
}

func (m *HTTPMetrics) init() {
	var err error

	m.requestsTotal, err = m.meter.Int64Counter(
		"peacock.http.requests_total",
		metric.WithDescription("HTTP requests by method, route and status"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		m.logger.Warn("failed to create requests counter", zap.Error(err))
	}

	m.requestDur, err = m.meter.Float64Histogram(
		"peacock.http.request_duration_seconds",
		metric.WithDescription("HTTP request duration by method, route and status"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		m.logger.Warn("failed to create duration histogram", zap.Error(err))
	}

	m.responseSize, err = m.meter.Int64Histogram(
		"peacock.http.response_size_bytes",
		metric.WithDescription("HTTP response body size by method, route and status"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(100, 500, 1000, 5000, 10000, 50000, 100000, 500000),
	)
	if err != nil {
		m.logger.Warn("failed to create response size histogram", zap.Error(err))
	}

	m.activeRequests, err = m.meter.Int64UpDownCounter(
		"peacock.http.active_requests",
		metric.WithDescription("Number of currently active HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		m.logger.Warn("failed to create active requests gauge", zap.Error(err))
	}
}

// MetricsMiddleware records request count, latency and response size per
// route. In-flight requests are tracked separately without labels.
func (m *HTTPMetrics) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			start := time.Now()
			if m.activeRequests != nil {
				m.activeRequests.Add(ctx, 1)
				defer m.activeRequests.Add(ctx, -1)
			}

			err := next(c)
			if err != nil {
				// Let echo write the error response so the status is final.
				c.Error(err)
			}

			attrs := metric.WithAttributes(
				attribute.String("method", c.Request().Method),
				attribute.String("route", normalizePath(c.Path())),
				attribute.Int("status", c.Response().Status),
			)
			if m.requestsTotal != nil {
				m.requestsTotal.Add(ctx, 1, attrs)
			}
			if m.requestDur != nil {
				m.requestDur.Record(ctx, time.Since(start).Seconds(), attrs)
			}
			if m.responseSize != nil {
				m.responseSize.Record(ctx, c.Response().Size, attrs)
			}
			return nil
		}
	}
}

// normalizePath maps a matched route to its metric label. Echo reports the
// route template (/projects/:name), so parameters never reach the label;
// unmatched requests share one label.
func normalizePath(path string) string {
	if path == "" {
		return "unmatched"
	}
	return path
}
