package ignore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToGlobPatterns(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []string
	}{
		{"empty line", "", nil},
		{"whitespace only", "   ", nil},
		{"comment", "# this is a comment", nil},
		{"negation skipped", "!important.txt", nil},
		{"file glob", "*.log", []string{"**/*.log", "**/*.log/**"}},
		{"directory only", "node_modules/", []string{"**/node_modules/**"}},
		{"nested path", "vendor/cache", []string{"/vendor/cache", "/vendor/cache/**"}},
		{"anchored", "/dist", []string{"/dist", "/dist/**"}},
		{"double star", "**/build", []string{"**/build", "**/build/**"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, toGlobPatterns(tt.line))
		})
	}
}

func TestMatcher_Match(t *testing.T) {
	m, err := New([]string{"*.log", "build/", "/dist", "docs/private", "**/tmp"})
	require.NoError(t, err)

	tests := []struct {
		rel   string
		isDir bool
		want  bool
	}{
		{"app.log", false, true},
		{"a/b/app.log", false, true},
		{"app.go", false, false},
		{"build", true, true},
		{"src/build", true, true},
		{"src/build/out.bin", false, true},
		{"build", false, false},
		{"dist", true, true},
		{"dist/bundle.js", false, true},
		{"src/dist", true, false},
		{"docs/private/key.md", false, true},
		{"other/docs/private", true, false},
		{"x/tmp/y.txt", false, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, m.Match(tt.rel, tt.isDir), "%s (dir=%v)", tt.rel, tt.isDir)
	}
}

func TestLoad(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte("# outputs\nout/\n*.tmp\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".peacockignore"), []byte("secrets.md\n"), 0o644))

	m, err := Load(root)
	require.NoError(t, err)
	assert.True(t, m.Match("out", true))
	assert.True(t, m.Match("a.tmp", false))
	assert.True(t, m.Match("notes/secrets.md", false))
	assert.True(t, m.Match(".git", true), "defaults always apply")
	assert.True(t, m.Match("web/node_modules/x.js", false))
	assert.False(t, m.Match("main.go", false))
}

func TestLoad_NoIgnoreFiles(t *testing.T) {
	m, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.True(t, m.Match(".git/HEAD", false))
	assert.False(t, m.Match("README.md", false))
}

func TestNew_InvalidPattern(t *testing.T) {
	_, err := New([]string{"[unclosed"})
	assert.Error(t, err)
}
