// Package telemetry provides OpenTelemetry instrumentation for peacock.
package telemetry

import (
	"fmt"
	"strings"
	"time"

	"github.com/m5trevino/peacock-mem/internal/config"
)

// Config holds telemetry configuration.
type Config struct {
	Enabled         bool
	Endpoint        string
	Protocol        string // grpc | http/protobuf
	ServiceName     string
	ServiceVersion  string
	Insecure        bool
	SamplingRate    float64
	MetricsEnabled  bool
	ExportInterval  time.Duration
	ShutdownTimeout time.Duration
}

// NewDefaultConfig returns defaults. Telemetry is off unless a collector is
// configured.
func NewDefaultConfig() *Config {
	return &Config{
		Enabled:         false,
		Endpoint:        "localhost:4317",
		Protocol:        "grpc",
		ServiceName:     "peacock",
		ServiceVersion:  "0.1.0",
		Insecure:        true,
		SamplingRate:    1.0,
		MetricsEnabled:  true,
		ExportInterval:  15 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
}

// FromObservability maps the application config onto telemetry settings.
func FromObservability(obs config.ObservabilityConfig, version string) *Config {
	cfg := NewDefaultConfig()
	cfg.Enabled = obs.EnableTelemetry
	if obs.OTLPEndpoint != "" {
		cfg.Endpoint = obs.OTLPEndpoint
	}
	if obs.OTLPProtocol != "" {
		cfg.Protocol = obs.OTLPProtocol
	}
	if obs.ServiceName != "" {
		cfg.ServiceName = obs.ServiceName
	}
	if version != "" {
		cfg.ServiceVersion = version
	}
	cfg.Insecure = obs.OTLPInsecure || isLocalEndpoint(cfg.Endpoint)
	cfg.SamplingRate = obs.SamplingRate
	return cfg
}

// Validate checks configuration for errors.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required when telemetry is enabled")
	}
	if c.ServiceName == "" {
		return fmt.Errorf("service_name is required when telemetry is enabled")
	}
	if c.Protocol != "grpc" && c.Protocol != "http/protobuf" {
		return fmt.Errorf("protocol must be grpc or http/protobuf, got %q", c.Protocol)
	}
	// Plaintext export is only allowed to a collector on this machine.
	if c.Insecure && !isLocalEndpoint(c.Endpoint) {
		return fmt.Errorf("insecure connections to remote endpoints are not allowed; set otlp_insecure=false or use a local endpoint")
	}
	if c.SamplingRate < 0 || c.SamplingRate > 1 {
		return fmt.Errorf("sampling rate must be between 0 and 1, got %f", c.SamplingRate)
	}
	if c.MetricsEnabled && c.ExportInterval <= 0 {
		return fmt.Errorf("export interval must be positive when metrics enabled")
	}
	return nil
}

func isLocalEndpoint(endpoint string) bool {
	host := stripScheme(endpoint)
	if strings.HasPrefix(host, "[") {
		if idx := strings.Index(host, "]"); idx != -1 {
			host = host[1:idx]
		}
	} else if strings.Count(host, ":") == 1 {
		host = host[:strings.LastIndex(host, ":")]
	}
	return host == "localhost" || host == "::1" || strings.HasPrefix(host, "127.")
}

// stripScheme removes http:// or https://; the OTLP HTTP exporters expect
// host:port.
func stripScheme(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "https://")
	return strings.TrimPrefix(endpoint, "http://")
}
