package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// Telemetry holds the OTLP providers installed for one peacock process.
//
// A provider that fails to start leaves the global no-op in its place and
// marks the instance degraded. Commands keep running either way.
type Telemetry struct {
	cfg   *Config
	stops []stopper

	mu       sync.Mutex
	startErr error
}

// stopper flushes and stops one installed provider.
type stopper struct {
	name string
	stop func(context.Context) error
}

// New validates cfg and, when telemetry is enabled, installs the global
// tracer and meter providers plus W3C trace context propagation.
func New(ctx context.Context, cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}
	t := &Telemetry{cfg: cfg}
	if !cfg.Enabled {
		return t, nil
	}

	res := newResource(cfg)
	if tp, err := newTracerProvider(ctx, cfg, res); err != nil {
		t.fail("tracing", err)
	} else {
		otel.SetTracerProvider(tp)
		t.stops = append(t.stops, stopper{name: "trace provider", stop: tp.Shutdown})
	}

	if mp, err := newMeterProvider(ctx, cfg, res); err != nil {
		t.fail("metrics", err)
	} else if mp != nil {
		otel.SetMeterProvider(mp)
		t.stops = append(t.stops, stopper{name: "meter provider", stop: mp.Shutdown})
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return t, nil
}

// Enabled reports whether any provider was installed.
func (t *Telemetry) Enabled() bool {
	return t != nil && len(t.stops) > 0
}

// Shutdown stops the installed providers in reverse start order, flushing
// pending exports. Without a deadline on ctx, Config.ShutdownTimeout bounds it.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil || len(t.stops) == 0 {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok && t.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.ShutdownTimeout)
		defer cancel()
	}

	var errs []error
	for i := len(t.stops) - 1; i >= 0; i-- {
		s := t.stops[i]
		if err := s.stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s shutdown: %w", s.name, err))
		}
	}
	t.stops = nil
	return errors.Join(errs...)
}

// Degraded reports whether a provider failed to start, with the cause.
func (t *Telemetry) Degraded() (bool, error) {
	if t == nil {
		return false, nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.startErr != nil, t.startErr
}

func (t *Telemetry) fail(what string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.startErr = errors.Join(t.startErr, fmt.Errorf("%s: %w", what, err))
}
