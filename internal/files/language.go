package files

import (
	"path/filepath"
	"strings"
)

var languages = map[string]string{
	".py":   "python",
	".js":   "javascript",
	".html": "html",
	".css":  "css",
	".md":   "markdown",
	".txt":  "text",
	".sh":   "bash",
	".json": "json",
	".yaml": "yaml",
	".yml":  "yaml",
	".xml":  "xml",
	".sql":  "sql",
	".go":   "go",
	".ts":   "typescript",
	".rs":   "rust",
}

// Language maps a file extension to a language tag, defaulting to "text".
func Language(path string) string {
	if lang, ok := languages[strings.ToLower(filepath.Ext(path))]; ok {
		return lang
	}
	return "text"
}
