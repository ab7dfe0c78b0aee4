package files

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/m5trevino/peacock-mem/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type upsert struct {
	collection, id, content string
	meta                    map[string]string
}

// recordingWriter captures writes and can fail for one path.
type recordingWriter struct {
	writes []upsert
	fail   string
}

func (w *recordingWriter) Upsert(_ context.Context, collection, id, content string, meta map[string]string) error {
	if w.fail != "" && meta[store.MetaFilePath] == w.fail {
		return errors.New("store unavailable")
	}
	w.writes = append(w.writes, upsert{collection, id, content, meta})
	return nil
}

func newIngester(w Writer) *Ingester {
	in := NewIngester(w, nil)
	in.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }
	return in
}

func write(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLanguage(t *testing.T) {
	for path, want := range map[string]string{
		"a.py":      "python",
		"b.JS":      "javascript",
		"c.yml":     "yaml",
		"main.go":   "go",
		"lib.rs":    "rust",
		"index.ts":  "typescript",
		"README":    "text",
		"photo.png": "text",
	} {
		assert.Equal(t, want, Language(path), path)
	}
}

func TestCollection(t *testing.T) {
	assert.Equal(t, "global_files", Collection(""))
	assert.Equal(t, "project_auth", Collection("auth"))
}

func TestAddFile(t *testing.T) {
	dir := t.TempDir()
	p := write(t, filepath.Join(dir, "auth.py"), "def login():\n    pass\n")
	w := &recordingWriter{}

	a, err := newIngester(w).AddFile(context.Background(), p, Options{Disposition: "code", Project: "auth"})
	require.NoError(t, err)
	assert.Equal(t, store.HashID("file_", p), a.ID)
	assert.Equal(t, "project_auth", a.Collection)
	assert.Equal(t, 3, a.Lines)

	require.Len(t, w.writes, 1)
	got := w.writes[0]
	assert.Equal(t, "project_auth", got.collection)
	assert.Equal(t, "def login():\n    pass\n", got.content)
	assert.Equal(t, map[string]string{
		"file_path":   p,
		"disposition": "Codebase",
		"type":        "file",
		"created":     "2025-01-02T03:04:05Z",
		"lines":       "3",
		"size":        "22",
		"language":    "python",
		"project":     "auth",
	}, got.meta)
}

func TestAddFile_GlobalAndDefaults(t *testing.T) {
	p := write(t, filepath.Join(t.TempDir(), "note.txt"), "remember")
	w := &recordingWriter{}

	a, err := newIngester(w).AddFile(context.Background(), p, Options{})
	require.NoError(t, err)
	assert.Equal(t, "global_files", a.Collection)
	require.Len(t, w.writes, 1)
	assert.Equal(t, "None", w.writes[0].meta[store.MetaDisposition])
	_, hasProject := w.writes[0].meta[store.MetaProject]
	assert.False(t, hasProject)
}

func TestAddFile_Rejects(t *testing.T) {
	dir := t.TempDir()
	in := newIngester(&recordingWriter{})
	ctx := context.Background()

	bin := write(t, filepath.Join(dir, "blob.bin"), "ab\x00cd")
	_, err := in.AddFile(ctx, bin, Options{})
	assert.ErrorIs(t, err, ErrBinaryFile)

	txt := write(t, filepath.Join(dir, "a.txt"), "x")
	_, err = in.AddFile(ctx, txt, Options{Disposition: "recipe"})
	assert.ErrorIs(t, err, ErrInvalidOptions)

	_, err = in.AddFile(ctx, dir, Options{})
	assert.Error(t, err)

	_, err = in.AddFile(ctx, filepath.Join(dir, "missing.txt"), Options{})
	assert.Error(t, err)
}

func TestAddPaths_WalksDirectory(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "main.go"), "package main")
	write(t, filepath.Join(root, "pkg", "util.go"), "package pkg")
	write(t, filepath.Join(root, "pkg", "util_test.go"), "package pkg")
	write(t, filepath.Join(root, "docs", "guide.md"), "# guide")
	write(t, filepath.Join(root, ".env"), "SECRET=1")
	write(t, filepath.Join(root, "build", "out.go"), "package out")
	write(t, filepath.Join(root, ".gitignore"), "build/\n*_test.go\n")
	extra := write(t, filepath.Join(t.TempDir(), "single.md"), "solo")

	w := &recordingWriter{}
	rep, err := newIngester(w).AddPaths(context.Background(), []string{root, extra}, Options{
		Disposition: store.Codebase,
		Project:     "demo",
		Include:     []string{"*.go", "**/*.go", "docs/*"},
	})
	require.NoError(t, err)

	var names []string
	for _, a := range rep.Added {
		names = append(names, filepath.Base(a.Path))
	}
	assert.ElementsMatch(t, []string{"main.go", "util.go", "guide.md", "single.md"}, names)
	assert.Empty(t, rep.Failed)
	assert.Equal(t, 3, rep.Skipped, "two hidden files and the ignored test file")
	for _, wr := range w.writes {
		assert.Equal(t, "project_demo", wr.collection)
	}
}

func TestAddPaths_CollectsFailures(t *testing.T) {
	root := t.TempDir()
	good := write(t, filepath.Join(root, "good.txt"), "ok")
	bad := write(t, filepath.Join(root, "bad.txt"), "nope")

	w := &recordingWriter{fail: bad}
	rep, err := newIngester(w).AddPaths(context.Background(), []string{root, filepath.Join(root, "absent")}, Options{})
	require.NoError(t, err)
	require.Len(t, rep.Added, 1)
	assert.Equal(t, good, rep.Added[0].Path)
	require.Len(t, rep.Failed, 2)
}

func TestAddPaths_InvalidInclude(t *testing.T) {
	_, err := newIngester(&recordingWriter{}).AddPaths(context.Background(), []string{t.TempDir()}, Options{Include: []string{"[bad"}})
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

func TestRepoName(t *testing.T) {
	root := filepath.Join(t.TempDir(), "my repo")
	require.NoError(t, os.MkdirAll(root, 0o755))
	_, err := git.PlainInit(root, false)
	require.NoError(t, err)
	f := write(t, filepath.Join(root, "src", "a.go"), "package a")

	name, err := RepoName(f)
	require.NoError(t, err)
	assert.Equal(t, "my_repo", name)

	_, err = RepoName(t.TempDir())
	assert.ErrorIs(t, err, ErrNotGitRepo)
}

func TestAddFile_GitProject(t *testing.T) {
	root := filepath.Join(t.TempDir(), "peacock")
	require.NoError(t, os.MkdirAll(root, 0o755))
	_, err := git.PlainInit(root, false)
	require.NoError(t, err)
	f := write(t, filepath.Join(root, "x.md"), "hi")

	a, err := newIngester(&recordingWriter{}).AddFile(context.Background(), f, Options{GitProject: true})
	require.NoError(t, err)
	assert.Equal(t, "project_peacock", a.Collection)
}
