package store

import (
	"context"
	"fmt"

	"github.com/m5trevino/peacock-mem/internal/catalog"
	"github.com/m5trevino/peacock-mem/internal/config"
	"github.com/m5trevino/peacock-mem/internal/embeddings"
	"github.com/m5trevino/peacock-mem/internal/secrets"
	"github.com/m5trevino/peacock-mem/internal/vectorstore"
	"go.uber.org/zap"
)

// Open wires the configured embedding provider, similarity index, catalog
// and redactor into a Store. The caller owns the Store and must Close it.
func Open(_ context.Context, cfg *config.Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dir, err := config.ExpandPath(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("expanding store path: %w", err)
	}

	cacheDir, err := config.ExpandPath(cfg.Embeddings.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("expanding model cache: %w", err)
	}
	provider, err := embeddings.NewProvider(embeddings.ProviderConfig{
		Provider:  cfg.Embeddings.Provider,
		Model:     cfg.Embeddings.Model,
		BaseURL:   cfg.Embeddings.BaseURL,
		APIKey:    cfg.Embeddings.APIKey.Value(),
		CacheDir:  cacheDir,
		Dimension: cfg.Embeddings.Dimension,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedding provider: %w", err)
	}

	var redactor secrets.Redactor = secrets.Noop{}
	if cfg.Redaction.Enabled {
		allowPath, err := config.ExpandPath(cfg.Redaction.AllowlistPath)
		if err != nil {
			provider.Close()
			return nil, fmt.Errorf("expanding allowlist path: %w", err)
		}
		allow, err := secrets.LoadAllowlist(allowPath)
		if err != nil {
			provider.Close()
			return nil, fmt.Errorf("loading allowlist: %w", err)
		}
		g, err := secrets.NewGitleaksRedactor(allow, logger.Named("secrets"))
		if err != nil {
			provider.Close()
			return nil, err
		}
		redactor = g
	}

	idx, err := vectorstore.NewFromConfig(cfg, provider, provider.Dimension(), logger.Named("vectorstore"))
	if err != nil {
		provider.Close()
		return nil, fmt.Errorf("opening index: %w", err)
	}

	cat, err := catalog.Open(dir)
	if err != nil {
		idx.Close()
		provider.Close()
		return nil, fmt.Errorf("opening catalog: %w", err)
	}

	logger.Info("store opened",
		zap.String("path", dir),
		zap.String("index", cfg.VectorStore.Provider),
		zap.String("embeddings", cfg.Embeddings.Provider),
		zap.Bool("redaction", cfg.Redaction.Enabled),
	)
	return New(cat, idx,
		WithLogger(logger.Named("store")),
		WithRedactor(redactor),
		withCloser(provider.Close),
	)
}
