// Package embeddings turns text into vectors for the similarity index.
//
// Three providers are available: fastembed (local ONNX models, needs cgo),
// tei (a HuggingFace text-embeddings-inference server) and hash (a
// deterministic bag-of-words embedder with no model, used in tests and
// offline setups).
package embeddings

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)

// Provider generates embeddings.
type Provider interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// Dimension returns the vector size for the current model.
	Dimension() int
	// Close releases resources held by the provider.
	Close() error
}

// ProviderConfig selects and configures a provider.
type ProviderConfig struct {
	// Provider is "fastembed", "tei" or "hash".
	Provider string
	Model    string
	// BaseURL is the TEI server (tei only).
	BaseURL string
	// APIKey is sent as a bearer token (tei only, optional).
	APIKey string
	// CacheDir holds downloaded models (fastembed only).
	CacheDir string
	// Dimension overrides the detected vector size (tei and hash).
	Dimension int
}

// NewProvider creates the configured provider.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	switch cfg.Provider {
	case "fastembed", "":
		p, err := NewFastEmbedProvider(FastEmbedConfig{
			Model:    cfg.Model,
			CacheDir: cfg.CacheDir,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	case "tei":
		dim := cfg.Dimension
		if dim <= 0 {
			dim = detectDimensionFromModel(cfg.Model)
		}
		p, err := NewTEIProvider(TEIConfig{
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			APIKey:    cfg.APIKey,
			Dimension: dim,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	case "hash":
		return NewHashProvider(cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}

// detectDimensionFromModel guesses the vector size from a model name,
// falling back to 384 (bge-small).
func detectDimensionFromModel(model string) int {
	if dim, ok := knownModelDimensions[model]; ok {
		return dim
	}
	m := strings.ToLower(model)
	switch {
	case strings.Contains(m, "large"):
		return 1024
	case strings.Contains(m, "base"):
		return 768
	default:
		return 384
	}
}

var knownModelDimensions = map[string]int{
	"BAAI/bge-small-en-v1.5":                 384,
	"BAAI/bge-small-en":                      384,
	"BAAI/bge-base-en-v1.5":                  768,
	"BAAI/bge-base-en":                       768,
	"BAAI/bge-small-zh-v1.5":                 512,
	"sentence-transformers/all-MiniLM-L6-v2": 384,
}
