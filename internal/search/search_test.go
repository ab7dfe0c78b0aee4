package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/m5trevino/peacock-mem/internal/catalog"
	"github.com/m5trevino/peacock-mem/internal/embeddings"
	"github.com/m5trevino/peacock-mem/internal/store"
	"github.com/m5trevino/peacock-mem/internal/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore serves canned candidates, nearest first, per collection.
type fakeStore struct {
	colls   map[string][]store.Candidate
	meta    map[string]map[string]string
	broken  map[string]bool
	queries map[string]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		colls:   map[string][]store.Candidate{},
		meta:    map[string]map[string]string{},
		broken:  map[string]bool{},
		queries: map[string]int{},
	}
}

func (f *fakeStore) add(coll string, cands ...store.Candidate) {
	f.colls[coll] = append(f.colls[coll], cands...)
}

func (f *fakeStore) ListCollections(context.Context) ([]store.Collection, error) {
	var names []string
	for n := range f.colls {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]store.Collection, len(names))
	for i, n := range names {
		out[i] = store.Collection{Name: n, Kind: store.KindFor(n), Metadata: f.meta[n]}
	}
	return out, nil
}

func (f *fakeStore) GetAll(_ context.Context, coll string) (store.Batch, error) {
	if f.broken[coll] {
		return store.Batch{}, fmt.Errorf("get all: %w", store.ErrStoreUnavailable)
	}
	var b store.Batch
	for _, c := range f.colls[coll] {
		b.IDs = append(b.IDs, c.ID)
		b.Contents = append(b.Contents, c.Content)
		b.Metadatas = append(b.Metadatas, c.Metadata)
	}
	return b, nil
}

func (f *fakeStore) QuerySimilar(_ context.Context, coll, _ string, k int) ([]store.Candidate, error) {
	f.queries[coll] = k
	if f.broken[coll] {
		return nil, fmt.Errorf("query: %w", store.ErrStoreUnavailable)
	}
	c := f.colls[coll]
	if k < len(c) {
		c = c[:k]
	}
	return c, nil
}

func cand(id string, dist float32, meta map[string]string) store.Candidate {
	return store.Candidate{ID: id, Content: "content of " + id, Metadata: meta, Distance: dist}
}

func assertRanked(t *testing.T, results []SearchResult) {
	t.Helper()
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Relevance, results[i].Relevance, "results out of order at %d", i)
	}
}

func TestSearchAll_PerCollectionCap(t *testing.T) {
	f := newFakeStore()
	f.add("project_a", cand("a1", 0.30, nil))
	f.add("project_b", cand("b1", 0.10, nil))
	for i := 0; i < 6; i++ {
		f.add("project_c", cand(fmt.Sprintf("c%d", i), 0.2+float32(i)*0.05, nil))
	}
	svc := NewService(f, nil)

	results, err := svc.SearchAll(context.Background(), "auth", 10)
	require.NoError(t, err)
	assert.Len(t, results, 7, "1 + 1 + min(10, 5)")
	assertRanked(t, results)
	assert.Equal(t, 5, f.queries["project_c"])

	perColl := map[string]int{}
	for _, r := range results {
		perColl[r.Collection]++
	}
	for coll, n := range perColl {
		assert.LessOrEqual(t, n, 5, coll)
	}
	assert.Equal(t, "b1", results[0].ID)
}

func TestSearchAll_SmallLimitCapsAndTruncates(t *testing.T) {
	f := newFakeStore()
	for i := 0; i < 4; i++ {
		f.add("x", cand(fmt.Sprintf("x%d", i), float32(i)*0.1, nil))
		f.add("y", cand(fmt.Sprintf("y%d", i), 0.05+float32(i)*0.1, nil))
	}
	svc := NewService(f, nil)

	results, err := svc.SearchAll(context.Background(), "q", 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, 3, f.queries["x"])
	assert.Equal(t, []string{"x0", "y0", "x1"}, []string{results[0].ID, results[1].ID, results[2].ID})

	none, err := svc.SearchAll(context.Background(), "q", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSearchAll_TiesKeepCollectionOrder(t *testing.T) {
	f := newFakeStore()
	f.add("b", cand("b1", 0.5, nil))
	f.add("a", cand("a1", 0.5, nil))
	results, err := NewService(f, nil).SearchAll(context.Background(), "q", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].Collection)
}

func TestSearchAll_SkipsFailingCollections(t *testing.T) {
	f := newFakeStore()
	f.add("good", cand("g1", 0.2, nil))
	f.add("bad", cand("x1", 0.0, nil))
	f.broken["bad"] = true

	results, err := NewService(f, nil).SearchAll(context.Background(), "q", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "g1", results[0].ID)
}

func TestSearchByType_Predicates(t *testing.T) {
	code := map[string]string{store.MetaDisposition: "Codebase", store.MetaProject: "auth"}
	conv := map[string]string{store.MetaType: "conversation"}
	idea := map[string]string{store.MetaDisposition: "Idea"}
	man := map[string]string{store.MetaDisposition: "man-page"}

	f := newFakeStore()
	f.add("project_auth", cand("code1", 0.1, code), cand("idea1", 0.2, idea))
	f.add("conversations", cand("conv1", 0.15, conv), cand("conv2", 0.4, conv))
	f.add("global_files", cand("man1", 0.3, man))
	svc := NewService(f, nil)

	for _, c := range Categories {
		results, err := svc.SearchByType(context.Background(), "q", c, 10)
		require.NoError(t, err, c)
		assertRanked(t, results)
		for _, r := range results {
			assert.True(t, c.Matches(r.Metadata), "%s result %s fails predicate", c, r.ID)
		}
	}

	convs, err := svc.SearchByType(context.Background(), "q", Conversations, 10)
	require.NoError(t, err)
	assert.Len(t, convs, 2)
	assert.Equal(t, 10, f.queries["conversations"], "type-scoped search is not capped at five")

	projects, err := svc.SearchByType(context.Background(), "q", Projects, 10)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "code1", projects[0].ID)

	_, err = svc.SearchByType(context.Background(), "q", "recipes", 10)
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestSearchCategories(t *testing.T) {
	note := map[string]string{store.MetaDisposition: "Note"}
	idea := map[string]string{store.MetaDisposition: "Idea"}
	f := newFakeStore()
	f.add("global_files",
		cand("n1", 0.1, note), cand("i1", 0.15, idea), cand("n2", 0.2, note),
		cand("i2", 0.25, idea), cand("n3", 0.3, note))
	svc := NewService(f, nil)

	results, err := svc.SearchCategories(context.Background(), "q", []Category{Notes, Ideas}, 4)
	require.NoError(t, err)
	assertRanked(t, results)
	// Each category gets limit/2 = 2 candidates per collection before filtering.
	require.Len(t, results, 2)
	assert.Equal(t, []string{"n1", "i1"}, []string{results[0].ID, results[1].ID})

	min1, err := svc.SearchCategories(context.Background(), "q", []Category{Notes, Ideas, Codebase}, 2)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(min1), 2)
	assert.Equal(t, 1, f.queries["global_files"], "share floors at one")

	_, err = svc.SearchCategories(context.Background(), "q", []Category{Notes, "bogus"}, 4)
	assert.ErrorIs(t, err, ErrUnknownCategory)

	all, err := svc.SearchCategories(context.Background(), "q", nil, 3)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestParseCategory(t *testing.T) {
	for in, want := range map[string]Category{
		"codebase": Codebase, "Code": Codebase, "conversation": Conversations,
		"IDEAS": Ideas, "plan": Brainstorm, "note": Notes, "man-page": Manpages, "project": Projects,
	} {
		got, err := ParseCategory(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseCategory("recipes")
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", Preview("short", 150))
	long := strings.Repeat("é", 151)
	p := Preview(long, 150)
	assert.Equal(t, strings.Repeat("é", 150)+"...", p)
	assert.Equal(t, strings.Repeat("x", 150), Preview(strings.Repeat("x", 150), 150))
}

func TestStats(t *testing.T) {
	f := newFakeStore()
	f.add("project_a",
		cand("1", 0, map[string]string{store.MetaDisposition: "Codebase"}),
		cand("2", 0, map[string]string{store.MetaDisposition: "Plan/Brainstorm", store.MetaType: "conversation"}))
	f.add("project_b")
	f.add("conversations",
		cand("3", 0, map[string]string{store.MetaType: "conversation"}),
		cand("4", 0, map[string]string{store.MetaType: "conversation", store.MetaDisposition: "None"}))
	f.add("global_files",
		cand("5", 0, map[string]string{store.MetaDisposition: "Idea"}),
		cand("6", 0, map[string]string{store.MetaDisposition: "Note"}),
		cand("7", 0, map[string]string{store.MetaDisposition: "man-page"}),
		cand("8", 0, nil))
	f.add("broken", cand("9", 0, nil))
	f.broken["broken"] = true

	st, err := NewService(f, nil).Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{
		TotalCollections: 5,
		Projects:         2,
		TotalDocuments:   8,
		ByType: ByType{
			Codebase:      1,
			Conversations: 2,
			Ideas:         1,
			Brainstorm:    1,
			Notes:         1,
			Manpages:      1,
		},
	}, st)
}

func TestListByType(t *testing.T) {
	f := newFakeStore()
	f.add("global_files",
		cand("i1", 0, map[string]string{store.MetaDisposition: "Idea"}),
		cand("n1", 0, map[string]string{store.MetaDisposition: "Note"}))
	f.add("project_x", cand("i2", 0, map[string]string{store.MetaDisposition: "Idea", store.MetaProject: "x"}))
	f.meta["project_x"] = map[string]string{store.MetaDescription: "desc", store.MetaCreated: "2024-01-01T00:00:00Z"}
	svc := NewService(f, nil)

	ideas, err := svc.ListByType(context.Background(), Ideas)
	require.NoError(t, err)
	require.Len(t, ideas, 2)
	assert.Equal(t, "i1", ideas[0].ID)
	assert.Equal(t, Ideas, ideas[0].Type)

	projects, err := svc.ListByType(context.Background(), Projects)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	require.NotNil(t, projects[0].Project)
	assert.Equal(t, ProjectSummary{
		Name: "x", CollectionName: "project_x", Description: "desc",
		Created: "2024-01-01T00:00:00Z", ItemCount: 1,
	}, *projects[0].Project)

	_, err = svc.ListByType(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestProjectContents(t *testing.T) {
	f := newFakeStore()
	long := strings.Repeat("a", 250)
	f.add("project_x", store.Candidate{ID: "d1", Content: long, Metadata: map[string]string{}})
	svc := NewService(f, nil)

	pc, err := svc.ProjectContents(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, 1, pc.Count)
	assert.Equal(t, strings.Repeat("a", 200)+"...", pc.Items[0].Preview)

	empty, err := svc.ProjectContents(context.Background(), "missing")
	require.NoError(t, err)
	assert.Zero(t, empty.Count)
	assert.NotNil(t, empty.Items)
}

func TestRecent(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	f := newFakeStore()
	f.add("global_files",
		cand("old", 0, map[string]string{store.MetaCreated: "2025-05-01T00:00:00Z"}),
		cand("new", 0, map[string]string{store.MetaCreated: "2025-06-10T08:00:00Z"}),
		cand("py", 0, map[string]string{store.MetaCreated: "2025-06-09T10:30:00.123456"}),
		cand("undated", 0, nil))
	f.add("conversations", cand("conv", 0, map[string]string{store.MetaImported: "2025-06-10T11:00:00Z"}))
	svc := NewService(f, nil)
	svc.now = func() time.Time { return now }

	items, err := svc.Recent(context.Background(), 72*time.Hour, 0)
	require.NoError(t, err)
	var ids []string
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	assert.Equal(t, []string{"conv", "new", "py"}, ids)

	top, err := svc.Recent(context.Background(), 72*time.Hour, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "conv", top[0].ID)
}

// End to end over the real store with the deterministic hash embedder.
func TestSearch_RealStoreRanking(t *testing.T) {
	ctx := context.Background()
	cat, err := catalog.Open(t.TempDir())
	require.NoError(t, err)
	idx, err := vectorstore.NewChromemIndex(vectorstore.ChromemConfig{}, embeddings.NewHashProvider(256), nil)
	require.NoError(t, err)
	st, err := store.New(cat, idx)
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.Upsert(ctx, "project_auth", "1", "auth token refresh rotation", map[string]string{store.MetaDisposition: "Codebase"}))
	require.NoError(t, st.Upsert(ctx, "global_files", "2", "banana bread recipe", map[string]string{store.MetaDisposition: "Note"}))
	require.NoError(t, st.Upsert(ctx, "conversations", "3", "we discussed auth token expiry", map[string]string{store.MetaType: "conversation"}))

	svc := NewService(st, nil)
	results, err := svc.SearchAll(ctx, "auth token", 10)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assertRanked(t, results)
	assert.NotEqual(t, "2", results[0].ID)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Relevance, 0.0)
		assert.LessOrEqual(t, r.Relevance, 1.0)
	}

	codebase, err := svc.SearchByType(ctx, "auth token", Codebase, 10)
	require.NoError(t, err)
	require.Len(t, codebase, 1)
	assert.Equal(t, "1", codebase[0].ID)
}
