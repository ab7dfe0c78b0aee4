package embeddings

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/m5trevino/peacock-mem/internal/embeddings"

// Embedding calls are either a document batch or a single query.
const (
	opDocuments = "documents"
	opQuery     = "query"
)

// instruments are created on first use so tests that install an in-memory
// meter provider beforehand see them.
var (
	instOnce  sync.Once
	instErr   error
	latency   metric.Float64Histogram
	textCount metric.Int64Histogram
	inputSize metric.Int64Counter
)

func loadInstruments() error {
	instOnce.Do(func() {
		meter := otel.Meter(meterName)
		var errs [3]error
		latency, errs[0] = meter.Float64Histogram(
			"peacock.embedding.latency_seconds",
			metric.WithDescription("Time spent in one embedding call"),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30),
		)
		textCount, errs[1] = meter.Int64Histogram(
			"peacock.embedding.texts",
			metric.WithDescription("Texts sent in one embedding call"),
			metric.WithUnit("{text}"),
			metric.WithExplicitBucketBoundaries(1, 8, 32, 128, 512),
		)
		inputSize, errs[2] = meter.Int64Counter(
			"peacock.embedding.input_bytes_total",
			metric.WithDescription("Bytes of text sent for embedding"),
			metric.WithUnit("By"),
		)
		instErr = errors.Join(errs[:]...)
	})
	return instErr
}

// callStats describes one embedding call for metrics.
type callStats struct {
	backend string
	model   string
	op      string
	texts   []string
	started time.Time
}

func track(backend, model, op string, texts ...string) callStats {
	return callStats{backend: backend, model: model, op: op, texts: texts, started: time.Now()}
}

// done records the call once its outcome is known. Instruments that failed
// to register are skipped.
func (c callStats) done(ctx context.Context, err error) {
	_ = loadInstruments()

	attrs := metric.WithAttributes(
		attribute.String("backend", c.backend),
		attribute.String("model", c.model),
		attribute.String("op", c.op),
		attribute.String("outcome", outcome(err)),
	)
	if latency != nil {
		latency.Record(ctx, time.Since(c.started).Seconds(), attrs)
	}
	if err != nil {
		return
	}
	if textCount != nil {
		textCount.Record(ctx, int64(len(c.texts)), attrs)
	}
	if inputSize != nil {
		var n int64
		for _, t := range c.texts {
			n += int64(len(t))
		}
		inputSize.Add(ctx, n, attrs)
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrEmptyInput):
		return "empty"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "failed"
	}
}
