package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/m5trevino/peacock-mem/internal/catalog"
	"github.com/m5trevino/peacock-mem/internal/embeddings"
	"github.com/m5trevino/peacock-mem/internal/services"
	"github.com/m5trevino/peacock-mem/internal/store"
	"github.com/m5trevino/peacock-mem/internal/vectorstore"
)

func newTestServer(t *testing.T) (*Server, services.Registry) {
	t.Helper()
	cat, err := catalog.Open(t.TempDir())
	require.NoError(t, err)
	idx, err := vectorstore.NewChromemIndex(vectorstore.ChromemConfig{}, embeddings.NewHashProvider(128), nil)
	require.NoError(t, err)
	st, err := store.New(cat, idx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	logger := zaptest.NewLogger(t)
	reg, err := services.NewRegistry(services.Options{Store: st, Logger: logger})
	require.NoError(t, err)
	s, err := NewServer(&Config{Name: "peacock-test", Version: "0.0.1", Logger: logger}, reg)
	require.NoError(t, err)
	return s, reg
}

func TestNewServer(t *testing.T) {
	t.Run("requires services", func(t *testing.T) {
		_, err := NewServer(nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "services are required")
	})

	t.Run("registers every tool", func(t *testing.T) {
		s, _ := newTestServer(t)
		var names []string
		for _, tool := range s.Tools().List() {
			names = append(names, tool.Name)
			assert.NotEmpty(t, tool.Description)
			assert.NotEmpty(t, tool.Category)
		}
		assert.Equal(t, []string{
			"add_memory",
			"delete_memory",
			"import_export",
			"list_projects",
			"memory_stats",
			"search_memory",
		}, names)
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "peacock-memory", cfg.Name)
	assert.NotEmpty(t, cfg.Version)
	assert.NotNil(t, cfg.Logger)
}
