package mcp

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m5trevino/peacock-mem/internal/files"
	"github.com/m5trevino/peacock-mem/internal/importer"
	"github.com/m5trevino/peacock-mem/internal/search"
	"github.com/m5trevino/peacock-mem/internal/store"
)

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	tc, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestAddMemory_StoresInProjectOrGlobal(t *testing.T) {
	s, reg := newTestServer(t)
	ctx := context.Background()

	res, out, err := s.addMemory(ctx, nil, addInput{Content: "use sqlite for the catalog", Project: "peacock"})
	require.NoError(t, err)
	assert.Equal(t, "project_peacock", out.Collection)
	assert.Equal(t, "Note", out.Disposition)
	assert.Equal(t, 26, out.Characters)
	assert.Contains(t, resultText(t, res), "Project: peacock")

	b, err := reg.Store().GetAll(ctx, "project_peacock")
	require.NoError(t, err)
	require.Equal(t, 1, b.Len())
	assert.Equal(t, files.MemorySource, b.Metadatas[0][store.MetaFilePath])
	assert.Equal(t, "peacock", b.Metadatas[0][store.MetaProject])

	_, out, err = s.addMemory(ctx, nil, addInput{Content: "a global idea", Disposition: "idea"})
	require.NoError(t, err)
	assert.Equal(t, store.GlobalFilesCollection, out.Collection)
	assert.Equal(t, "Idea", out.Disposition)
}

func TestAddMemory_Invalid(t *testing.T) {
	s, _ := newTestServer(t)

	_, _, err := s.addMemory(context.Background(), nil, addInput{})
	assert.ErrorIs(t, err, files.ErrEmptyContent)

	_, _, err = s.addMemory(context.Background(), nil, addInput{Content: "x", Disposition: "rumor"})
	assert.ErrorIs(t, err, files.ErrInvalidOptions)
}

func TestSearchMemory(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()
	_, _, err := s.addMemory(ctx, nil, addInput{Content: "vector index compaction", Disposition: "Codebase"})
	require.NoError(t, err)
	_, _, err = s.addMemory(ctx, nil, addInput{Content: "weekend hiking plan", Disposition: "Plan/Brainstorm"})
	require.NoError(t, err)

	res, out, err := s.searchMemory(ctx, nil, searchInput{Query: "vector index compaction"})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Count)
	assert.Equal(t, "vector index compaction", out.Results[0].Preview)
	assert.Contains(t, resultText(t, res), "Found 2 results")

	_, out, err = s.searchMemory(ctx, nil, searchInput{Query: "plan", Type: "brainstorm"})
	require.NoError(t, err)
	require.Equal(t, 1, out.Count)
	assert.Equal(t, "Plan/Brainstorm", out.Results[0].Metadata[store.MetaDisposition])

	res, out, err = s.searchMemory(ctx, nil, searchInput{Query: "plan", Types: []string{"ideas", "manpages"}})
	require.NoError(t, err)
	assert.Equal(t, 0, out.Count)
	assert.Contains(t, resultText(t, res), "No results found")
}

func TestSearchMemory_Invalid(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	_, _, err := s.searchMemory(ctx, nil, searchInput{Query: " "})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, _, err = s.searchMemory(ctx, nil, searchInput{Query: "q", Type: "gossip"})
	assert.ErrorIs(t, err, search.ErrUnknownCategory)

	_, _, err = s.searchMemory(ctx, nil, searchInput{Query: "q", Types: []string{"gossip"}})
	assert.ErrorIs(t, err, search.ErrUnknownCategory)
}

const chatgptExport = `[{
	"title": "Trip",
	"create_time": 1700000000,
	"conversation_id": "conv-1",
	"mapping": {
		"a": {"message": {"author": {"role": "user"}, "content": {"parts": ["where to go"]}}},
		"b": {"message": {"author": {"role": "assistant"}, "content": {"parts": ["the coast"]}}}
	}
}]`

func TestImportExport(t *testing.T) {
	s, reg := newTestServer(t)
	ctx := context.Background()

	res, out, err := s.importExport(ctx, nil, importInput{Content: chatgptExport})
	require.NoError(t, err)
	assert.Equal(t, importer.ChatGPTConversations.String(), out.Format)
	assert.Equal(t, 1, out.Written)
	assert.Equal(t, 2, out.Messages)
	assert.Contains(t, resultText(t, res), "Documents written: 1")

	n, err := reg.Store().Count(ctx, store.ConversationsCollection)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	path := filepath.Join(t.TempDir(), "projects.json")
	require.NoError(t, os.WriteFile(path,
		[]byte(`[{"name":"garden","description":"beds","documents":[{"title":"soil","content":"add compost"}]}]`), 0o600))
	_, out, err = s.importExport(ctx, nil, importInput{Path: path})
	require.NoError(t, err)
	assert.Equal(t, path, out.Path)
	assert.Equal(t, 1, out.Projects)
	assert.Equal(t, 1, out.Documents)

	_, listed, err := s.listProjects(ctx, nil, listProjectsInput{})
	require.NoError(t, err)
	require.Equal(t, 1, listed.Count)
	assert.Equal(t, "garden", listed.Projects[0].Name)
	assert.Equal(t, 1, listed.Projects[0].ItemCount)
}

func TestImportExport_Invalid(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	_, _, err := s.importExport(ctx, nil, importInput{})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, _, err = s.importExport(ctx, nil, importInput{Path: "a.json", Content: "[]"})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, _, err = s.importExport(ctx, nil, importInput{Content: `{"foo":1}`})
	assert.ErrorIs(t, err, importer.ErrUnknownFormat)
}

func TestListProjects_Empty(t *testing.T) {
	s, _ := newTestServer(t)
	res, out, err := s.listProjects(context.Background(), nil, listProjectsInput{})
	require.NoError(t, err)
	assert.Equal(t, 0, out.Count)
	assert.Equal(t, "No projects found in Peacock Memory", resultText(t, res))
}

func TestMemoryStats(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()
	_, _, err := s.addMemory(ctx, nil, addInput{Content: "one", Project: "p"})
	require.NoError(t, err)
	_, _, err = s.addMemory(ctx, nil, addInput{Content: "two", Disposition: "man-page"})
	require.NoError(t, err)

	res, st, err := s.memoryStats(ctx, nil, statsInput{})
	require.NoError(t, err)
	assert.Equal(t, 2, st.TotalCollections)
	assert.Equal(t, 1, st.Projects)
	assert.Equal(t, 2, st.TotalDocuments)
	assert.Equal(t, 1, st.ByType.Notes)
	assert.Equal(t, 1, st.ByType.Manpages)
	assert.Contains(t, resultText(t, res), "Documents: 2")
}

func TestDeleteMemory(t *testing.T) {
	s, reg := newTestServer(t)
	ctx := context.Background()
	_, added, err := s.addMemory(ctx, nil, addInput{Content: "forget me", Project: "tmp"})
	require.NoError(t, err)

	_, out, err := s.deleteMemory(ctx, nil, deleteInput{Collection: added.Collection, ID: added.ID})
	require.NoError(t, err)
	assert.True(t, out.Deleted)

	res, out, err := s.deleteMemory(ctx, nil, deleteInput{Collection: added.Collection, ID: added.ID})
	require.NoError(t, err)
	assert.False(t, out.Deleted)
	assert.Contains(t, resultText(t, res), "not found")

	_, out, err = s.deleteMemory(ctx, nil, deleteInput{Collection: added.Collection, All: true})
	require.NoError(t, err)
	assert.True(t, out.Deleted)

	colls, err := reg.Store().ListCollections(ctx)
	require.NoError(t, err)
	assert.Empty(t, colls)
}

func TestDeleteMemory_Invalid(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	for _, in := range []deleteInput{
		{},
		{Collection: "global_files"},
		{Collection: "global_files", ID: "x", All: true},
	} {
		_, _, err := s.deleteMemory(ctx, nil, in)
		assert.ErrorIs(t, err, ErrInvalidArgument, "%+v", in)
	}
}
