package vectorstore

import (
	"fmt"
	"path/filepath"

	"github.com/m5trevino/peacock-mem/internal/config"
	"go.uber.org/zap"
)

// NewFromConfig builds the configured Index. The chromem backend persists
// under <store.path>/index; dimension sizes new qdrant collections.
func NewFromConfig(cfg *config.Config, embedder Embedder, dimension int, logger *zap.Logger) (Index, error) {
	switch cfg.VectorStore.Provider {
	case "", "chromem":
		path := ""
		if cfg.Store.Path != "" {
			root, err := config.ExpandPath(cfg.Store.Path)
			if err != nil {
				return nil, fmt.Errorf("expanding store path: %w", err)
			}
			path = filepath.Join(root, "index")
		}
		return NewChromemIndex(ChromemConfig{
			Path:     path,
			Compress: cfg.VectorStore.Compress,
		}, embedder, logger)
	case "qdrant":
		return NewQdrantIndex(QdrantConfig{
			Host:       cfg.Qdrant.Host,
			Port:       cfg.Qdrant.Port,
			UseTLS:     cfg.Qdrant.UseTLS,
			APIKey:     cfg.Qdrant.APIKey.Value(),
			VectorSize: dimension,
		}, embedder, logger)
	default:
		return nil, fmt.Errorf("%w: unknown vector store provider %q", ErrInvalidConfig, cfg.VectorStore.Provider)
	}
}
