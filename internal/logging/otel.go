// internal/logging/otel.go
package logging

import (
	"fmt"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap/zapcore"
)

// newCore tees the console output with the OTEL bridge and wraps the result
// in a sampler. Errors and above bypass sampling.
func newCore(cfg *Config, otelProvider log.LoggerProvider) (zapcore.Core, error) {
	cores := make([]zapcore.Core, 0, 2)

	switch {
	case cfg.Output.Stderr:
		cores = append(cores, zapcore.NewCore(newEncoder(cfg.Format), zapcore.Lock(os.Stderr), cfg.Level))
	case cfg.Output.Stdout:
		cores = append(cores, zapcore.NewCore(newEncoder(cfg.Format), zapcore.Lock(os.Stdout), cfg.Level))
	}

	if cfg.Output.OTEL && otelProvider != nil {
		cores = append(cores, otelzap.NewCore("peacock", otelzap.WithLoggerProvider(otelProvider)))
	}

	if len(cores) == 0 {
		return nil, fmt.Errorf("at least one output must be enabled and available")
	}

	core := zapcore.NewTee(cores...)
	if !cfg.Sampling.Enabled {
		return core, nil
	}

	sampled := zapcore.NewSamplerWithOptions(
		&levelRangeCore{Core: core, max: zapcore.WarnLevel, hasMax: true},
		cfg.Sampling.Tick,
		cfg.Sampling.Initial,
		cfg.Sampling.Thereafter,
	)
	errorsOnly := &levelRangeCore{Core: core, min: zapcore.ErrorLevel, hasMin: true}
	return zapcore.NewTee(sampled, errorsOnly), nil
}

// levelRangeCore only admits entries within [min, max].
type levelRangeCore struct {
	zapcore.Core
	min, max       zapcore.Level
	hasMin, hasMax bool
}

func (c *levelRangeCore) Enabled(lvl zapcore.Level) bool {
	if c.hasMin && lvl < c.min {
		return false
	}
	if c.hasMax && lvl > c.max {
		return false
	}
	return c.Core.Enabled(lvl)
}

func (c *levelRangeCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(e.Level) {
		return ce
	}
	return c.Core.Check(e, ce)
}

func (c *levelRangeCore) With(fields []zapcore.Field) zapcore.Core {
	return &levelRangeCore{
		Core:   c.Core.With(fields),
		min:    c.min,
		max:    c.max,
		hasMin: c.hasMin,
		hasMax: c.hasMax,
	}
}
