//go:build integration

package integration

import (
	"context"
	"os"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/m5trevino/peacock-mem/internal/config"
	"github.com/m5trevino/peacock-mem/internal/files"
	"github.com/m5trevino/peacock-mem/internal/services"
	"github.com/m5trevino/peacock-mem/internal/store"
)

const export = `[
	{"uuid":"lc1","name":"kiln","chat_messages":[{"sender":"human","text":"cone 6 glaze firing schedule"}]}
]`

// qdrantConfig returns a config pointing at the Qdrant named by
// PEACOCK_TEST_QDRANT_HOST (and optionally PEACOCK_TEST_QDRANT_PORT).
func qdrantConfig(t *testing.T) *config.Config {
	t.Helper()
	host := os.Getenv("PEACOCK_TEST_QDRANT_HOST")
	if host == "" {
		t.Skip("PEACOCK_TEST_QDRANT_HOST not set, requires live Qdrant")
	}
	cfg := config.Default()
	cfg.Store.Path = t.TempDir()
	cfg.VectorStore.Provider = "qdrant"
	cfg.Qdrant.Host = host
	if p := os.Getenv("PEACOCK_TEST_QDRANT_PORT"); p != "" {
		port, err := strconv.Atoi(p)
		require.NoError(t, err)
		cfg.Qdrant.Port = port
	}
	cfg.Embeddings.Provider = "hash"
	return cfg
}

func TestMemoryLifecycle_Qdrant(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	cfg := qdrantConfig(t)
	logger := zaptest.NewLogger(t)

	st, err := store.Open(ctx, cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	reg, err := services.NewRegistry(services.Options{Store: st, Config: cfg, Logger: logger})
	require.NoError(t, err)

	t.Run("import", func(t *testing.T) {
		res, err := reg.Importer().ImportBytes(ctx, "kiln.json", []byte(export))
		require.NoError(t, err)
		assert.Equal(t, 1, res.Written)
	})

	var added files.Added
	t.Run("add_memory", func(t *testing.T) {
		added, err = reg.Files().AddMemory(ctx, files.Memory{Content: "bisque at cone 04", Project: "pottery"})
		require.NoError(t, err)
	})

	t.Run("search", func(t *testing.T) {
		results, err := reg.Search().SearchAll(ctx, "glaze firing schedule", 5)
		require.NoError(t, err)
		require.NotEmpty(t, results)
	})

	t.Run("delete", func(t *testing.T) {
		assert.True(t, st.DeleteItem(ctx, added.Collection, added.ID))
		assert.True(t, st.DeleteCollection(ctx, added.Collection))
		assert.True(t, st.DeleteCollection(ctx, store.ConversationsCollection))
	})
}
