package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, c.Close()) })
	return c
}

func TestOpen_RequiresDir(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)
}

func TestOpen_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	c, err := Open(dir)
	require.NoError(t, err)
	_, _, err = c.EnsureCollection(ctx, "notes", "global", nil)
	require.NoError(t, err)
	require.NoError(t, c.Close())

	c, err = Open(dir)
	require.NoError(t, err)
	defer c.Close()
	colls, err := c.ListCollections(ctx)
	require.NoError(t, err)
	require.Len(t, colls, 1)
	assert.Equal(t, "notes", colls[0].Name)
}

func TestEnsureCollection_Idempotent(t *testing.T) {
	ctx := context.Background()
	c := setupTestCatalog(t)

	coll, created, err := c.EnsureCollection(ctx, "project_x", "project", map[string]string{"description": "first"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "project", coll.Kind)
	assert.Equal(t, "first", coll.Metadata["description"])
	assert.False(t, coll.CreatedAt.IsZero())

	coll, created, err = c.EnsureCollection(ctx, "project_x", "project", map[string]string{"description": "second"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "first", coll.Metadata["description"], "existing metadata is kept")
}

func TestGetCollection_NotFound(t *testing.T) {
	c := setupTestCatalog(t)
	_, err := c.GetCollection(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListCollections_SortedByName(t *testing.T) {
	ctx := context.Background()
	c := setupTestCatalog(t)
	for _, n := range []string{"project_b", "conversations", "global_files", "project_a"} {
		_, _, err := c.EnsureCollection(ctx, n, "global", nil)
		require.NoError(t, err)
	}

	colls, err := c.ListCollections(ctx)
	require.NoError(t, err)
	names := make([]string, len(colls))
	for i, cl := range colls {
		names[i] = cl.Name
	}
	assert.Equal(t, []string{"conversations", "global_files", "project_a", "project_b"}, names)
}

func TestDocuments_UpsertKeepsOrder(t *testing.T) {
	ctx := context.Background()
	c := setupTestCatalog(t)
	_, _, err := c.EnsureCollection(ctx, "c", "global", nil)
	require.NoError(t, err)

	require.NoError(t, c.UpsertDocument(ctx, "c", Record{ID: "1", Content: "one", Metadata: map[string]string{"k": "v"}}))
	require.NoError(t, c.UpsertDocument(ctx, "c", Record{ID: "2", Content: "two"}))
	require.NoError(t, c.UpsertDocument(ctx, "c", Record{ID: "1", Content: "uno"}))

	docs, err := c.Documents(ctx, "c")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "1", docs[0].ID)
	assert.Equal(t, "uno", docs[0].Content)
	assert.Empty(t, docs[0].Metadata, "replaced metadata")
	assert.Equal(t, "2", docs[1].ID)

	n, err := c.Count(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestUpsertDocument_RequiresCollection(t *testing.T) {
	c := setupTestCatalog(t)
	err := c.UpsertDocument(context.Background(), "ghost", Record{ID: "1", Content: "x"})
	assert.Error(t, err)
}

func TestGetDocuments(t *testing.T) {
	ctx := context.Background()
	c := setupTestCatalog(t)
	_, _, err := c.EnsureCollection(ctx, "c", "global", nil)
	require.NoError(t, err)
	require.NoError(t, c.UpsertDocument(ctx, "c", Record{ID: "a", Content: "A"}))
	require.NoError(t, c.UpsertDocument(ctx, "c", Record{ID: "b", Content: "B"}))

	got, err := c.GetDocuments(ctx, "c", []string{"a", "b", "zz"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, "B", got["b"].Content)

	got, err = c.GetDocuments(ctx, "c", nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	c := setupTestCatalog(t)
	_, _, err := c.EnsureCollection(ctx, "c", "global", nil)
	require.NoError(t, err)
	require.NoError(t, c.UpsertDocument(ctx, "c", Record{ID: "a", Content: "A"}))

	ok, err := c.DeleteDocument(ctx, "c", "a")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = c.DeleteDocument(ctx, "c", "a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.UpsertDocument(ctx, "c", Record{ID: "b", Content: "B"}))
	ok, err = c.DeleteCollection(ctx, "c")
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := c.Count(ctx, "c")
	require.NoError(t, err)
	assert.Zero(t, n, "documents cascade with their collection")

	ok, err = c.DeleteCollection(ctx, "c")
	require.NoError(t, err)
	assert.False(t, ok)
}
