package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRegistry() *ToolRegistry {
	r := NewToolRegistry()
	r.Register(&ToolMetadata{Name: "search_memory", Description: "Search stored content", Category: CategorySearch, Keywords: []string{"find"}})
	r.Register(&ToolMetadata{Name: "add_memory", Description: "Add text", Category: CategoryMemory, Keywords: []string{"remember"}})
	r.Register(&ToolMetadata{Name: "memory_stats", Description: "Summarize what search can reach", Category: CategoryAdmin})
	return r
}

func TestToolRegistry_RegisterAndGet(t *testing.T) {
	r := sampleRegistry()
	r.Register(nil)
	r.Register(&ToolMetadata{})
	assert.Equal(t, 3, r.Count())

	tool, ok := r.Get("add_memory")
	require.True(t, ok)
	assert.Equal(t, CategoryMemory, tool.Category)

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestToolRegistry_ListSorted(t *testing.T) {
	r := sampleRegistry()
	var names []string
	for _, tool := range r.List() {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{"add_memory", "memory_stats", "search_memory"}, names)

	admin := r.ListByCategory(CategoryAdmin)
	require.Len(t, admin, 1)
	assert.Equal(t, "memory_stats", admin[0].Name)
	assert.Empty(t, r.ListByCategory(CategoryImport))
}

func TestToolRegistry_Search(t *testing.T) {
	r := sampleRegistry()

	tests := []struct {
		query string
		want  []string
		score int
	}{
		{"add_memory", []string{"add_memory"}, 3},
		{"memory", []string{"add_memory", "memory_stats", "search_memory"}, 2},
		{"summarize", []string{"memory_stats"}, 1},
		{"remember", []string{"add_memory"}, 1},
		{"^search_", []string{"search_memory"}, 2},
		{"nothing-here", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := r.Search(tt.query)
			var names []string
			for _, m := range got {
				names = append(names, m.Tool.Name)
				assert.Equal(t, tt.score, m.Score)
			}
			assert.Equal(t, tt.want, names)
		})
	}
	assert.Nil(t, r.Search(""))
}

func TestToolRegistry_SearchOrdersByScore(t *testing.T) {
	r := sampleRegistry()
	got := r.Search("search")
	require.Len(t, got, 2)
	assert.Equal(t, "search_memory", got[0].Tool.Name)
	assert.Equal(t, 2, got[0].Score)
	assert.Equal(t, "memory_stats", got[1].Tool.Name)
}
