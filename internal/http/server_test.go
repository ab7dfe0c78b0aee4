package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/m5trevino/peacock-mem/internal/catalog"
	"github.com/m5trevino/peacock-mem/internal/embeddings"
	"github.com/m5trevino/peacock-mem/internal/importer"
	"github.com/m5trevino/peacock-mem/internal/logging"
	"github.com/m5trevino/peacock-mem/internal/search"
	"github.com/m5trevino/peacock-mem/internal/services"
	"github.com/m5trevino/peacock-mem/internal/store"
	"github.com/m5trevino/peacock-mem/internal/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

func newRegistry(t *testing.T) services.Registry {
	t.Helper()
	cat, err := catalog.Open(t.TempDir())
	require.NoError(t, err)
	idx, err := vectorstore.NewChromemIndex(vectorstore.ChromemConfig{}, embeddings.NewHashProvider(128), nil)
	require.NoError(t, err)
	st, err := store.New(cat, idx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	reg, err := services.NewRegistry(services.Options{Store: st, Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	return reg
}

func setupTestServer(t *testing.T, cfg *Config) (*Server, services.Registry) {
	t.Helper()
	reg := newRegistry(t)
	s, err := NewServer(reg, zaptest.NewLogger(t), cfg)
	require.NoError(t, err)
	return s, reg
}

func do(t *testing.T, s *Server, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r *bytes.Reader
	switch b := body.(type) {
	case nil:
		r = bytes.NewReader(nil)
	case string:
		r = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestNewServer(t *testing.T) {
	t.Run("uses defaults when config is nil", func(t *testing.T) {
		s, err := NewServer(newRegistry(t), zap.NewNop(), nil)
		require.NoError(t, err)
		assert.Equal(t, "localhost", s.config.Host)
		assert.Equal(t, 8765, s.config.Port)
		assert.Equal(t, int64(defaultMaxImportSize), s.config.MaxImportSize)
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		_, err := NewServer(newRegistry(t), nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "logger is required")
	})

	t.Run("returns error when services are nil", func(t *testing.T) {
		_, err := NewServer(nil, zap.NewNop(), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "services cannot be nil")
	})
}

func TestHandleHealth(t *testing.T) {
	s, _ := setupTestServer(t, nil)

	rec := do(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[HealthResponse](t, rec).Status)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestHandleAddThenSearch(t *testing.T) {
	s, reg := setupTestServer(t, nil)

	rec := do(t, s, http.MethodPost, "/add", AddRequest{
		Content:     "deploy the cluster on friday",
		Disposition: "Note",
		Project:     "ops",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	added := decode[AddResponse](t, rec)
	assert.Equal(t, "success", added.Status)
	assert.Equal(t, "project_ops", added.Collection)
	assert.Equal(t, store.HashID("memory_", "project_ops"+"deploy the cluster on friday"), added.ID)

	b, err := reg.Store().GetAll(context.Background(), "project_ops")
	require.NoError(t, err)
	require.Equal(t, 1, b.Len())
	assert.Equal(t, "mcp_input", b.Metadatas[0][store.MetaFilePath])

	rec = do(t, s, http.MethodPost, "/search", SearchRequest{Query: "deploy the cluster on friday"})
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[SearchResponse](t, rec)
	require.Equal(t, 1, res.Count)
	assert.Equal(t, added.ID, res.Results[0].ID)

	rec = do(t, s, http.MethodPost, "/search", SearchRequest{Query: "deploy", Type: "notes"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[SearchResponse](t, rec).Count)

	rec = do(t, s, http.MethodPost, "/search", SearchRequest{Query: "deploy", Types: []string{"ideas", "code"}})
	require.Equal(t, http.StatusOK, rec.Code)
	res = decode[SearchResponse](t, rec)
	assert.Equal(t, 0, res.Count)
	assert.NotNil(t, res.Results)
}

func TestHandleAdd_Invalid(t *testing.T) {
	s, _ := setupTestServer(t, nil)

	tests := []struct {
		name string
		body any
	}{
		{"empty content", AddRequest{Content: ""}},
		{"unknown disposition", AddRequest{Content: "x", Disposition: "rumor"}},
		{"malformed json", "{not json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, "/add", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, decode[ErrorResponse](t, rec).Error)
		})
	}
}

func TestHandleSearch_Invalid(t *testing.T) {
	s, _ := setupTestServer(t, nil)

	rec := do(t, s, http.MethodPost, "/search", SearchRequest{Query: "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/search", SearchRequest{Query: "q", Type: "gossip"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[ErrorResponse](t, rec).Error, "unknown category")

	rec = do(t, s, http.MethodPost, "/search", SearchRequest{Query: "q", Types: []string{"notes", "gossip"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

const projectExport = `{"projects":[{"name":"atlas","description":"maps","documents":[
	{"title":"roadmap","content":"ship tiles"},
	{"title":"risks","content":"projection bugs"}
]}]}`

func TestHandleImport(t *testing.T) {
	s, _ := setupTestServer(t, nil)

	rec := do(t, s, http.MethodPost, "/import?name=projects.json", projectExport)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[ImportResponse](t, rec)
	assert.Equal(t, importer.ClaudeProjects, res.Result.Format)
	assert.Equal(t, 2, res.Result.Written)
	assert.Equal(t, "projects.json", res.Result.Path)

	rec = do(t, s, http.MethodGet, "/projects", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	projects := decode[ProjectsResponse](t, rec)
	require.Equal(t, 1, projects.Count)
	assert.Equal(t, "atlas", projects.Projects[0].Name)
	assert.Equal(t, "maps", projects.Projects[0].Description)
	assert.Equal(t, 2, projects.Projects[0].ItemCount)

	rec = do(t, s, http.MethodGet, "/projects/atlas", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	contents := decode[search.ProjectContents](t, rec)
	assert.Equal(t, 2, contents.Count)

	rec = do(t, s, http.MethodGet, "/projects/missing", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[search.ProjectContents](t, rec).Count)

	rec = do(t, s, http.MethodGet, "/list/brainstorm", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[ListResponse](t, rec)
	assert.Equal(t, search.Brainstorm, list.Type)
	assert.Equal(t, 2, list.Count)

	rec = do(t, s, http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[search.Stats](t, rec)
	assert.Equal(t, 1, st.Projects)
	assert.Equal(t, 2, st.TotalDocuments)
	assert.Equal(t, 2, st.ByType.Brainstorm)
}

func TestHandleImport_Errors(t *testing.T) {
	s, _ := setupTestServer(t, &Config{MaxImportSize: 64})

	rec := do(t, s, http.MethodPost, "/import", "{broken")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, s, http.MethodPost, "/import", `{"hello":"world"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decode[ErrorResponse](t, rec).Error, "unknown export format")

	rec = do(t, s, http.MethodPost, "/import", "["+strings.Repeat(`{"a":1},`, 20)+`{"a":1}]`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestHandleList_UnknownType(t *testing.T) {
	s, _ := setupTestServer(t, nil)
	rec := do(t, s, http.MethodGet, "/list/gossip", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleDelete(t *testing.T) {
	s, reg := setupTestServer(t, nil)
	ctx := context.Background()
	require.NoError(t, reg.Store().Upsert(ctx, "global_files", "a", "alpha", nil))
	require.NoError(t, reg.Store().Upsert(ctx, "global_files", "b", "beta", nil))

	rec := do(t, s, http.MethodDelete, "/collections/global_files/items/a", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[DeleteResponse](t, rec).Deleted)

	rec = do(t, s, http.MethodDelete, "/collections/global_files/items/a", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, decode[DeleteResponse](t, rec).Deleted)

	rec = do(t, s, http.MethodDelete, "/collections/global_files", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodDelete, "/collections/global_files", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s, reg := setupTestServer(t, nil)
	require.NoError(t, reg.Store().Upsert(context.Background(), "project_x", "a", "alpha", nil))

	rec := do(t, s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `peacock_collections{kind="project"} 1`)
	assert.Contains(t, body, `peacock_documents{kind="project"} 1`)
	assert.Contains(t, body, "go_goroutines")
}

func TestRateLimit(t *testing.T) {
	s, _ := setupTestServer(t, &Config{RateLimit: 1})

	first := do(t, s, http.MethodGet, "/stats", nil)
	assert.Equal(t, http.StatusOK, first.Code)
	second := do(t, s, http.MethodGet, "/stats", nil)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)

	// Health checks bypass the limiter.
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/health", nil).Code)
}

func TestIPLimiter_ResetsHourly(t *testing.T) {
	l := newIPLimiter(1)
	now := time.Now()
	l.now = func() time.Time { return now }

	a := l.get("10.0.0.1")
	assert.Same(t, a, l.get("10.0.0.1"))

	now = now.Add(2 * time.Hour)
	assert.NotSame(t, a, l.get("10.0.0.1"))
}

func TestMiddleware_RecoversPanics(t *testing.T) {
	s, _ := setupTestServer(t, nil)
	s.echo.GET("/panic", func(echo.Context) error {
		panic("test panic")
	})

	rec := do(t, s, http.MethodGet, "/panic", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServerLifecycle(t *testing.T) {
	s, _ := setupTestServer(t, &Config{Host: "127.0.0.1", Port: 0})

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	assert.NoError(t, <-errCh)
}

func TestRequestLogCarriesRequestID(t *testing.T) {
	logs := logging.NewRecorder()
	s, err := NewServer(newRegistry(t), logs.Logger, nil)
	require.NoError(t, err)

	rec := do(t, s, http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	id := rec.Header().Get(echo.HeaderXRequestID)
	require.NotEmpty(t, id)

	entry := logs.Find(t, zapcore.InfoLevel, "http request").ContextMap()
	assert.Equal(t, id, entry["request.id"])
	assert.Equal(t, "/stats", entry["uri"])
	assert.EqualValues(t, http.StatusOK, entry["status"])
}

func TestRequestLogKeepsClientRequestID(t *testing.T) {
	logs := logging.NewRecorder()
	s, err := NewServer(newRegistry(t), logs.Logger, nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(echo.HeaderXRequestID, "client-42")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "client-42", rec.Header().Get(echo.HeaderXRequestID))
	entry := logs.Find(t, zapcore.InfoLevel, "http request").ContextMap()
	assert.Equal(t, "client-42", entry["request.id"])
}
