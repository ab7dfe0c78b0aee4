package mcp

import (
	"regexp"
	"sort"
	"strings"
	"sync"
)

// ToolCategory groups tools by what they touch.
type ToolCategory string

// Tool categories.
const (
	CategorySearch ToolCategory = "search"
	CategoryMemory ToolCategory = "memory"
	CategoryImport ToolCategory = "import"
	CategoryAdmin  ToolCategory = "admin"
)

// ToolMetadata describes a registered tool.
type ToolMetadata struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Category    ToolCategory `json:"category"`
	Keywords    []string     `json:"keywords,omitempty"`
}

// ToolRegistry records the tools a server exposes.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]*ToolMetadata
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]*ToolMetadata)}
}

// Register adds or replaces a tool. Nameless tools are ignored.
func (r *ToolRegistry) Register(tool *ToolMetadata) {
	if tool == nil || tool.Name == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name] = tool
}

// Get returns one tool.
func (r *ToolRegistry) Get(name string) (*ToolMetadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns every tool sorted by name.
func (r *ToolRegistry) List() []*ToolMetadata {
	return r.filter(func(*ToolMetadata) bool { return true })
}

// ListByCategory returns the tools in category sorted by name.
func (r *ToolRegistry) ListByCategory(category ToolCategory) []*ToolMetadata {
	return r.filter(func(t *ToolMetadata) bool { return t.Category == category })
}

func (r *ToolRegistry) filter(keep func(*ToolMetadata) bool) []*ToolMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*ToolMetadata, 0, len(r.tools))
	for _, t := range r.tools {
		if keep(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Count returns the number of registered tools.
func (r *ToolRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// ToolMatch is a tool found by Search.
type ToolMatch struct {
	Tool *ToolMetadata `json:"tool"`
	// Score is 3 for an exact name, 2 for a name match and 1 for a
	// description or keyword match.
	Score int `json:"score"`
}

// Search matches query against names, descriptions and keywords, case
// insensitively. A query that compiles as a regular expression is also
// matched as one. Results are ordered by score, then name.
func (r *ToolRegistry) Search(query string) []ToolMatch {
	if query == "" {
		return nil
	}
	q := strings.ToLower(query)
	re, _ := regexp.Compile("(?i)" + query)
	matches := func(s string) bool {
		return strings.Contains(strings.ToLower(s), q) || (re != nil && re.MatchString(s))
	}

	var out []ToolMatch
	for _, t := range r.List() {
		switch {
		case strings.ToLower(t.Name) == q:
			out = append(out, ToolMatch{Tool: t, Score: 3})
		case matches(t.Name):
			out = append(out, ToolMatch{Tool: t, Score: 2})
		case matches(t.Description):
			out = append(out, ToolMatch{Tool: t, Score: 1})
		default:
			for _, kw := range t.Keywords {
				if matches(kw) {
					out = append(out, ToolMatch{Tool: t, Score: 1})
					break
				}
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
