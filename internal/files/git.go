package files

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
)

// ErrNotGitRepo is returned when --git-project is used outside a repository.
var ErrNotGitRepo = errors.New("not a git repository")

// RepoName returns the name of the git work tree containing path, suitable
// as a project name.
func RepoName(path string) (string, error) {
	dir := path
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		dir = filepath.Dir(path)
	}
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return "", fmt.Errorf("%s: %w", path, ErrNotGitRepo)
		}
		return "", fmt.Errorf("opening repository for %s: %w", path, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, ErrNotGitRepo)
	}
	return sanitizeProject(filepath.Base(wt.Filesystem.Root())), nil
}

// sanitizeProject keeps project names usable in collection names.
func sanitizeProject(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		case r == ' ' || r == '.':
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "repo"
	}
	return b.String()
}
