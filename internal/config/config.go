// Package config provides configuration loading for peacock.
//
// Configuration comes from an optional YAML file overridden by PEACOCK_*
// environment variables, with defaults applied last.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the complete peacock configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Store         StoreConfig         `koanf:"store"`
	VectorStore   VectorStoreConfig   `koanf:"vectorstore"`
	Qdrant        QdrantConfig        `koanf:"qdrant"`
	Embeddings    EmbeddingsConfig    `koanf:"embeddings"`
	Import        ImportConfig        `koanf:"import"`
	Redaction     RedactionConfig     `koanf:"redaction"`
	Observability ObservabilityConfig `koanf:"observability"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	// RateLimit is requests per second per client IP. Zero disables limiting.
	RateLimit float64 `koanf:"rate_limit"`
}

// StoreConfig locates the on-disk knowledge store.
type StoreConfig struct {
	// Path is the root directory. The catalog database and the embedded
	// vector index live underneath it.
	Path string `koanf:"path"`
}

// VectorStoreConfig selects the similarity index backend.
type VectorStoreConfig struct {
	Provider string `koanf:"provider"` // chromem | qdrant
	Compress bool   `koanf:"compress"`
}

// QdrantConfig holds remote qdrant settings (vectorstore.provider=qdrant).
type QdrantConfig struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	UseTLS bool   `koanf:"use_tls"`
	APIKey Secret `koanf:"api_key"`
}

// EmbeddingsConfig selects the embedding provider.
type EmbeddingsConfig struct {
	Provider  string `koanf:"provider"` // fastembed | tei | hash
	Model     string `koanf:"model"`
	BaseURL   string `koanf:"base_url"`
	CacheDir  string `koanf:"cache_dir"`
	Dimension int    `koanf:"dimension"`
	APIKey    Secret `koanf:"api_key"`
}

// ImportConfig tunes the import pipeline.
type ImportConfig struct {
	// ChatGPTOrder is "enumeration" (mapping order) or "thread" (parent chain
	// from current_node).
	ChatGPTOrder string `koanf:"chatgpt_order"`
	// MaxFileSize rejects export files larger than this many bytes.
	MaxFileSize int64 `koanf:"max_file_size"`
	// WatchDebounce delays imports of files still being written.
	WatchDebounce Duration `koanf:"watch_debounce"`
}

// RedactionConfig controls secret scrubbing of content before storage.
type RedactionConfig struct {
	Enabled bool `koanf:"enabled"`
	// AllowlistPath points at a gitleaks-style TOML allowlist.
	AllowlistPath string `koanf:"allowlist_path"`
}

// ObservabilityConfig holds logging and OpenTelemetry settings.
type ObservabilityConfig struct {
	LogLevel        string  `koanf:"log_level"`
	LogFormat       string  `koanf:"log_format"`
	EnableTelemetry bool    `koanf:"enable_telemetry"`
	ServiceName     string  `koanf:"service_name"`
	OTLPEndpoint    string  `koanf:"otlp_endpoint"`
	OTLPProtocol    string  `koanf:"otlp_protocol"`
	OTLPInsecure    bool    `koanf:"otlp_insecure"`
	SamplingRate    float64 `koanf:"sampling_rate"`
}

// Validate checks configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("%w: server.port out of range: %d", ErrInvalidConfig, c.Server.Port))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("%w: server.rate_limit must be >= 0", ErrInvalidConfig))
	}
	if strings.TrimSpace(c.Store.Path) == "" {
		errs = append(errs, fmt.Errorf("%w: store.path is required", ErrInvalidConfig))
	}

	switch c.VectorStore.Provider {
	case "chromem":
	case "qdrant":
		if c.Qdrant.Host == "" {
			errs = append(errs, fmt.Errorf("%w: qdrant.host is required for the qdrant provider", ErrInvalidConfig))
		}
		if c.Qdrant.Port <= 0 || c.Qdrant.Port > 65535 {
			errs = append(errs, fmt.Errorf("%w: qdrant.port out of range: %d", ErrInvalidConfig, c.Qdrant.Port))
		}
	default:
		errs = append(errs, fmt.Errorf("%w: vectorstore.provider must be chromem or qdrant, got %q", ErrInvalidConfig, c.VectorStore.Provider))
	}

	switch c.Embeddings.Provider {
	case "fastembed", "hash":
	case "tei":
		if c.Embeddings.BaseURL == "" {
			errs = append(errs, fmt.Errorf("%w: embeddings.base_url is required for tei", ErrInvalidConfig))
		}
	default:
		errs = append(errs, fmt.Errorf("%w: embeddings.provider must be fastembed, tei or hash, got %q", ErrInvalidConfig, c.Embeddings.Provider))
	}
	if c.Embeddings.Dimension < 0 {
		errs = append(errs, fmt.Errorf("%w: embeddings.dimension must be >= 0", ErrInvalidConfig))
	}

	if c.Import.ChatGPTOrder != "enumeration" && c.Import.ChatGPTOrder != "thread" {
		errs = append(errs, fmt.Errorf("%w: import.chatgpt_order must be enumeration or thread, got %q", ErrInvalidConfig, c.Import.ChatGPTOrder))
	}
	if c.Import.MaxFileSize <= 0 {
		errs = append(errs, fmt.Errorf("%w: import.max_file_size must be positive", ErrInvalidConfig))
	}

	if c.Observability.LogFormat != "json" && c.Observability.LogFormat != "console" {
		errs = append(errs, fmt.Errorf("%w: observability.log_format must be json or console", ErrInvalidConfig))
	}
	if r := c.Observability.SamplingRate; r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("%w: observability.sampling_rate must be between 0 and 1, got %f", ErrInvalidConfig, r))
	}

	return errors.Join(errs...)
}

// Default returns a Config with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if cfg.Store.Path == "" {
		cfg.Store.Path = "~/peacock_db"
	}

	// chromem is the default: embedded, nothing to run.
	if cfg.VectorStore.Provider == "" {
		cfg.VectorStore.Provider = "chromem"
	}
	if cfg.Qdrant.Host == "" {
		cfg.Qdrant.Host = "localhost"
	}
	if cfg.Qdrant.Port == 0 {
		cfg.Qdrant.Port = 6334
	}

	if cfg.Embeddings.Provider == "" {
		cfg.Embeddings.Provider = "fastembed"
	}
	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = "BAAI/bge-small-en-v1.5"
	}
	if cfg.Embeddings.BaseURL == "" {
		cfg.Embeddings.BaseURL = "http://localhost:8080"
	}
	if cfg.Embeddings.CacheDir == "" {
		cfg.Embeddings.CacheDir = "~/.cache/peacock/models"
	}

	if cfg.Import.ChatGPTOrder == "" {
		cfg.Import.ChatGPTOrder = "enumeration"
	}
	if cfg.Import.MaxFileSize == 0 {
		cfg.Import.MaxFileSize = 512 * 1024 * 1024
	}
	if cfg.Import.WatchDebounce == 0 {
		cfg.Import.WatchDebounce = Duration(500 * time.Millisecond)
	}

	if cfg.Observability.LogLevel == "" {
		cfg.Observability.LogLevel = "info"
	}
	if cfg.Observability.LogFormat == "" {
		cfg.Observability.LogFormat = "json"
	}
	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = "peacock"
	}
	if cfg.Observability.OTLPEndpoint == "" {
		cfg.Observability.OTLPEndpoint = "localhost:4317"
	}
	if cfg.Observability.OTLPProtocol == "" {
		cfg.Observability.OTLPProtocol = "grpc"
	}
	if cfg.Observability.SamplingRate == 0 {
		cfg.Observability.SamplingRate = 1.0
	}
}
