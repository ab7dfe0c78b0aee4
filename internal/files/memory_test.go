package files

import (
	"context"
	"testing"

	"github.com/m5trevino/peacock-mem/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddMemory(t *testing.T) {
	w := &recordingWriter{}
	in := newIngester(w)

	a, err := in.AddMemory(context.Background(), Memory{Content: "remember the milk", Project: "errands"})
	require.NoError(t, err)
	assert.Equal(t, "project_errands", a.Collection)
	assert.Equal(t, store.HashID("memory_", "project_errands"+"remember the milk"), a.ID)

	require.Len(t, w.writes, 1)
	meta := w.writes[0].meta
	assert.Equal(t, MemorySource, meta[store.MetaFilePath])
	assert.Equal(t, string(store.Note), meta[store.MetaDisposition])
	assert.Equal(t, "errands", meta[store.MetaProject])
	assert.Equal(t, "2025-01-02T03:04:05Z", meta[store.MetaCreated])
	assert.Equal(t, "text", meta[store.MetaLanguage])
}

func TestAddMemory_SameTextSameID(t *testing.T) {
	w := &recordingWriter{}
	in := newIngester(w)
	ctx := context.Background()

	first, err := in.AddMemory(ctx, Memory{Content: "idea", Disposition: "idea"})
	require.NoError(t, err)
	second, err := in.AddMemory(ctx, Memory{Content: "idea", Disposition: "idea", Source: "notes.md"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, store.GlobalFilesCollection, second.Collection)
	assert.Equal(t, "notes.md", w.writes[1].meta[store.MetaFilePath])
	assert.Equal(t, "markdown", w.writes[1].meta[store.MetaLanguage])

	other, err := in.AddMemory(ctx, Memory{Content: "idea", Project: "p"})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestAddMemory_Rejects(t *testing.T) {
	in := newIngester(&recordingWriter{})

	_, err := in.AddMemory(context.Background(), Memory{Content: "  "})
	assert.ErrorIs(t, err, ErrEmptyContent)

	_, err = in.AddMemory(context.Background(), Memory{Content: "x", Disposition: "gossip"})
	assert.ErrorIs(t, err, ErrInvalidOptions)
}
