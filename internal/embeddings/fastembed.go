//go:build cgo

package embeddings

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	fastembed "github.com/anush008/fastembed-go"
)

// FastEmbedConfig configures the local ONNX provider.
type FastEmbedConfig struct {
	// Model is a HuggingFace name (BAAI/bge-small-en-v1.5) or a fastembed
	// constant (fast-bge-small-en-v1.5).
	Model string
	// CacheDir holds downloaded model files.
	CacheDir string
	// MaxLength is the maximum input sequence length. Defaults to 512.
	MaxLength int
}

// FastEmbedProvider embeds locally with fastembed-go.
type FastEmbedProvider struct {
	mu        sync.RWMutex
	model     *fastembed.FlagEmbedding
	modelName string
	dimension int
}

var modelMapping = map[string]fastembed.EmbeddingModel{
	"BAAI/bge-small-en-v1.5":                 fastembed.BGESmallENV15,
	"BAAI/bge-small-en":                      fastembed.BGESmallEN,
	"BAAI/bge-base-en-v1.5":                  fastembed.BGEBaseENV15,
	"BAAI/bge-base-en":                       fastembed.BGEBaseEN,
	"BAAI/bge-small-zh-v1.5":                 fastembed.BGESmallZH,
	"sentence-transformers/all-MiniLM-L6-v2": fastembed.AllMiniLML6V2,
}

var modelDimensions = map[fastembed.EmbeddingModel]int{
	fastembed.BGESmallENV15: 384,
	fastembed.BGESmallEN:    384,
	fastembed.BGEBaseENV15:  768,
	fastembed.BGEBaseEN:     768,
	fastembed.BGESmallZH:    512,
	fastembed.AllMiniLML6V2: 384,
}

// NewFastEmbedProvider loads (downloading on first use) a local model.
func NewFastEmbedProvider(cfg FastEmbedConfig) (*FastEmbedProvider, error) {
	if cfg.Model == "" {
		cfg.Model = "BAAI/bge-small-en-v1.5"
	}
	model, ok := modelMapping[cfg.Model]
	if !ok {
		model = fastembed.EmbeddingModel(cfg.Model)
		if _, known := modelDimensions[model]; !known {
			return nil, fmt.Errorf("%w: unsupported fastembed model %q", ErrInvalidConfig, cfg.Model)
		}
	}

	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		cacheDir = filepath.Join(".", "local_cache")
	}
	maxLength := cfg.MaxLength
	if maxLength == 0 {
		maxLength = 512
	}
	showProgress := false

	flag, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:                model,
		CacheDir:             cacheDir,
		MaxLength:            maxLength,
		ShowDownloadProgress: &showProgress,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing fastembed: %w", err)
	}

	return &FastEmbedProvider{
		model:     flag,
		modelName: cfg.Model,
		dimension: modelDimensions[model],
	}, nil
}

// EmbedDocuments uses the passage prefix BGE models expect.
func (p *FastEmbedProvider) EmbedDocuments(ctx context.Context, texts []string) (out [][]float32, err error) {
	call := track("fastembed", p.modelName, opDocuments, texts...)
	defer func() { call.done(ctx, err) }()

	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	out, err = p.model.PassageEmbed(texts, 256)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return out, nil
}

// EmbedQuery uses the query prefix.
func (p *FastEmbedProvider) EmbedQuery(ctx context.Context, text string) (out []float32, err error) {
	call := track("fastembed", p.modelName, opQuery, text)
	defer func() { call.done(ctx, err) }()

	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	out, err = p.model.QueryEmbed(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return out, nil
}

// Dimension implements Provider.
func (p *FastEmbedProvider) Dimension() int { return p.dimension }

// Close frees the ONNX session.
func (p *FastEmbedProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.model == nil {
		return nil
	}
	err := p.model.Destroy()
	p.model = nil
	return err
}
