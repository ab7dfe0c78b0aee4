// Package ignore matches gitignore-style exclusion rules when a directory is
// added to the store.
package ignore

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// DefaultFiles are the ignore files read from a directory root.
var DefaultFiles = []string{".gitignore", ".peacockignore"}

// DefaultPatterns are always excluded.
var DefaultPatterns = []string{".git/", "node_modules/", "__pycache__/", ".venv/"}

// Matcher reports whether a path relative to a root is excluded.
type Matcher struct {
	globs []glob.Glob
}

// New compiles gitignore-style lines. Comments, blank lines and negations
// are dropped.
func New(lines []string) (*Matcher, error) {
	m := &Matcher{}
	for _, line := range lines {
		for _, pattern := range toGlobPatterns(line) {
			g, err := glob.Compile(pattern, '/')
			if err != nil {
				return nil, fmt.Errorf("invalid ignore pattern %q: %w", line, err)
			}
			m.globs = append(m.globs, g)
		}
	}
	return m, nil
}

// Load reads DefaultFiles from root and compiles them together with
// DefaultPatterns. Missing files are skipped.
func Load(root string) (*Matcher, error) {
	lines := append([]string(nil), DefaultPatterns...)
	for _, name := range DefaultFiles {
		fileLines, err := readLines(filepath.Join(root, name))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		lines = append(lines, fileLines...)
	}
	return New(lines)
}

// Match reports whether rel (slash or OS separated, relative to the root)
// is excluded. Directories should be passed with isDir set so directory-only
// rules apply.
func (m *Matcher) Match(rel string, isDir bool) bool {
	p := "/" + strings.TrimPrefix(filepath.ToSlash(filepath.Clean(rel)), "/")
	if isDir {
		p += "/"
	}
	for _, g := range m.globs {
		if g.Match(p) {
			return true
		}
	}
	return false
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}

// toGlobPatterns converts one gitignore line into globs over "/"-rooted
// paths. A rule without an inner slash matches at any depth; a rule naming
// something matches it and everything beneath it.
func toGlobPatterns(line string) []string {
	line = strings.TrimRight(line, " \t")
	if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
		return nil
	}

	dirOnly := strings.HasSuffix(line, "/")
	line = strings.TrimSuffix(line, "/")
	anchored := strings.HasPrefix(line, "/") || strings.Contains(line, "/")
	line = strings.TrimPrefix(line, "/")
	if line == "" {
		return nil
	}

	var base string
	switch {
	case strings.HasPrefix(line, "**/"):
		base = line
	case anchored:
		base = "/" + line
	default:
		base = "**/" + line
	}

	if dirOnly {
		return []string{base + "/**"}
	}
	return []string{base, base + "/**"}
}
