// internal/logging/config.go
package logging

import (
	"fmt"
	"time"

	"github.com/m5trevino/peacock-mem/internal/config"
	"go.uber.org/zap/zapcore"
)

// TraceLevel is a custom level below Debug for wire-level detail.
const TraceLevel = zapcore.Level(-2)

// Config holds logging configuration.
type Config struct {
	Level    zapcore.Level
	Format   string // json | console
	Output   OutputConfig
	Sampling SamplingConfig
	Fields   map[string]string
}

// OutputConfig controls where logs are written.
//
// Stderr is used by the MCP stdio server, whose stdout carries JSON-RPC.
type OutputConfig struct {
	Stdout bool
	Stderr bool
	OTEL   bool
}

// SamplingConfig controls log volume reduction below error level.
type SamplingConfig struct {
	Enabled    bool
	Tick       time.Duration
	Initial    int
	Thereafter int
}

// NewDefaultConfig returns config with production-ready defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Level:  zapcore.InfoLevel,
		Format: "json",
		Output: OutputConfig{Stdout: true},
		Sampling: SamplingConfig{
			Enabled:    true,
			Tick:       time.Second,
			Initial:    100,
			Thereafter: 10,
		},
		Fields: map[string]string{"service": "peacock"},
	}
}

// FromObservability builds a logging Config from the loaded application
// config. toStderr routes console output to stderr instead of stdout.
func FromObservability(obs config.ObservabilityConfig, toStderr bool) (*Config, error) {
	cfg := NewDefaultConfig()

	level, err := LevelFromString(obs.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("parsing log level %q: %w", obs.LogLevel, err)
	}
	cfg.Level = level
	if obs.LogFormat != "" {
		cfg.Format = obs.LogFormat
	}
	if obs.ServiceName != "" {
		cfg.Fields["service"] = obs.ServiceName
	}
	if toStderr {
		cfg.Output.Stdout = false
		cfg.Output.Stderr = true
	}
	cfg.Output.OTEL = obs.EnableTelemetry
	return cfg, nil
}

// LevelFromString parses a level name, supporting "trace".
func LevelFromString(level string) (zapcore.Level, error) {
	if level == "trace" {
		return TraceLevel, nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel, err
	}
	return l, nil
}

// Validate checks config for errors.
func (c *Config) Validate() error {
	if c.Format != "json" && c.Format != "console" {
		return fmt.Errorf("format must be 'json' or 'console', got %q", c.Format)
	}
	if !c.Output.Stdout && !c.Output.Stderr && !c.Output.OTEL {
		return fmt.Errorf("at least one output must be enabled (stdout, stderr or otel)")
	}
	if c.Sampling.Enabled && c.Sampling.Tick <= 0 {
		return fmt.Errorf("sampling tick must be > 0 when sampling enabled")
	}
	for k, v := range c.Fields {
		if k == "" {
			return fmt.Errorf("field key cannot be empty")
		}
		if v == "" {
			return fmt.Errorf("field %q has empty value", k)
		}
	}
	return nil
}
