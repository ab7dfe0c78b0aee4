package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/m5trevino/peacock-mem/internal/files"
	"github.com/m5trevino/peacock-mem/internal/importer"
	"github.com/m5trevino/peacock-mem/internal/search"
	"github.com/m5trevino/peacock-mem/internal/store"
)

// ErrInvalidArgument is returned for tool arguments that fail validation.
var ErrInvalidArgument = errors.New("invalid argument")

const defaultSearchLimit = 10

// addTool records meta and registers h under meta.Name with invocation
// metrics.
func addTool[In, Out any](s *Server, meta *ToolMetadata, h mcp.ToolHandlerFor[In, Out]) {
	s.tools.Register(meta)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: meta.Name, Description: meta.Description},
		func(ctx context.Context, req *mcp.CallToolRequest, in In) (*mcp.CallToolResult, Out, error) {
			start := time.Now()
			s.metrics.IncrementActive(ctx, meta.Name)
			res, out, err := h(ctx, req, in)
			s.metrics.DecrementActive(ctx, meta.Name)
			s.metrics.RecordInvocation(ctx, meta.Name, time.Since(start), err)
			if err != nil {
				s.logger.Warn("tool failed", zap.String("tool", meta.Name), zap.Error(err))
			}
			return res, out, err
		})
}

func (s *Server) registerTools() {
	addTool(s, &ToolMetadata{
		Name:        "search_memory",
		Description: "Search Peacock Memory for relevant content across all collections, optionally scoped to one or more types.",
		Category:    CategorySearch,
		Keywords:    []string{"find", "query", "similar"},
	}, s.searchMemory)
	addTool(s, &ToolMetadata{
		Name:        "add_memory",
		Description: "Add a piece of text to Peacock Memory, in a project or the global collection.",
		Category:    CategoryMemory,
		Keywords:    []string{"remember", "store", "note"},
	}, s.addMemory)
	addTool(s, &ToolMetadata{
		Name:        "list_projects",
		Description: "List all projects in Peacock Memory with their item counts.",
		Category:    CategoryMemory,
	}, s.listProjects)
	addTool(s, &ToolMetadata{
		Name:        "memory_stats",
		Description: "Summarize Peacock Memory: collections, projects and documents by type.",
		Category:    CategoryAdmin,
		Keywords:    []string{"count", "overview"},
	}, s.memoryStats)
	addTool(s, &ToolMetadata{
		Name:        "import_export",
		Description: "Import a Claude or ChatGPT conversation export, or a Claude projects export, from a file path or inline JSON.",
		Category:    CategoryImport,
		Keywords:    []string{"claude", "chatgpt", "json"},
	}, s.importExport)
	addTool(s, &ToolMetadata{
		Name:        "delete_memory",
		Description: "Delete one document from a collection, or a whole collection when all is set.",
		Category:    CategoryAdmin,
		Keywords:    []string{"remove", "forget"},
	}, s.deleteMemory)
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

// ===== search_memory =====

type searchInput struct {
	Query string   `json:"query" jsonschema:"Text to search for"`
	Limit int      `json:"limit,omitempty" jsonschema:"Maximum results to return (default 10)"`
	Type  string   `json:"type,omitempty" jsonschema:"Restrict to one type: codebase, conversations, ideas, brainstorm, notes, manpages or projects"`
	Types []string `json:"types,omitempty" jsonschema:"Split the limit across several types"`
}

type searchHit struct {
	Collection string            `json:"collection"`
	ID         string            `json:"id"`
	Relevance  float64           `json:"relevance"`
	Preview    string            `json:"preview"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type searchOutput struct {
	Query   string      `json:"query"`
	Results []searchHit `json:"results"`
	Count   int         `json:"count"`
}

func (s *Server) searchMemory(ctx context.Context, _ *mcp.CallToolRequest, in searchInput) (*mcp.CallToolResult, searchOutput, error) {
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return nil, searchOutput{}, fmt.Errorf("%w: query is required", ErrInvalidArgument)
	}
	limit := in.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	svc := s.services.Search()
	var (
		results []search.SearchResult
		err     error
	)
	switch {
	case in.Type != "":
		cat, perr := search.ParseCategory(in.Type)
		if perr != nil {
			return nil, searchOutput{}, perr
		}
		results, err = svc.SearchByType(ctx, query, cat, limit)
	case len(in.Types) > 0:
		cats := make([]search.Category, 0, len(in.Types))
		for _, t := range in.Types {
			cat, perr := search.ParseCategory(t)
			if perr != nil {
				return nil, searchOutput{}, perr
			}
			cats = append(cats, cat)
		}
		results, err = svc.SearchCategories(ctx, query, cats, limit)
	default:
		results, err = svc.SearchAll(ctx, query, limit)
	}
	if err != nil {
		return nil, searchOutput{}, err
	}

	out := searchOutput{Query: query, Results: make([]searchHit, len(results)), Count: len(results)}
	var b strings.Builder
	if len(results) == 0 {
		fmt.Fprintf(&b, "No results found for: %s", query)
	} else {
		fmt.Fprintf(&b, "Found %d results for: %s\n\n", len(results), query)
	}
	for i, r := range results {
		out.Results[i] = searchHit{
			Collection: r.Collection,
			ID:         r.ID,
			Relevance:  r.Relevance,
			Preview:    r.Preview,
			Metadata:   r.Metadata,
		}
		fmt.Fprintf(&b, "Result #%d (relevance %.3f)\nCollection: %s\nPreview: %s\n\n", i+1, r.Relevance, r.Collection, r.Preview)
	}
	return textResult(strings.TrimRight(b.String(), "\n")), out, nil
}

// ===== add_memory =====

type addInput struct {
	Content     string `json:"content" jsonschema:"Text to store"`
	Disposition string `json:"disposition,omitempty" jsonschema:"Codebase, Plan/Brainstorm, Idea, Note (default), man-page or None"`
	Project     string `json:"project,omitempty" jsonschema:"Project to file the text under; omitted means the global collection"`
	FilePath    string `json:"file_path,omitempty" jsonschema:"Where the text came from (default mcp_input)"`
}

type addOutput struct {
	ID          string `json:"id"`
	Collection  string `json:"collection"`
	Disposition string `json:"disposition"`
	Characters  int    `json:"characters"`
	Project     string `json:"project,omitempty"`
}

func (s *Server) addMemory(ctx context.Context, _ *mcp.CallToolRequest, in addInput) (*mcp.CallToolResult, addOutput, error) {
	disp := store.Disposition(in.Disposition)
	if disp == "" {
		disp = store.Note
	}
	added, err := s.services.Files().AddMemory(ctx, files.Memory{
		Content:     in.Content,
		Disposition: disp,
		Project:     in.Project,
		Source:      in.FilePath,
	})
	if err != nil {
		return nil, addOutput{}, err
	}
	parsed, _ := store.ParseDisposition(string(disp))
	out := addOutput{
		ID:          added.ID,
		Collection:  added.Collection,
		Disposition: string(parsed),
		Characters:  len([]rune(in.Content)),
		Project:     in.Project,
	}
	text := fmt.Sprintf("Added to Peacock Memory\nCollection: %s\nDisposition: %s\nContent: %d characters",
		out.Collection, out.Disposition, out.Characters)
	if in.Project != "" {
		text += "\nProject: " + in.Project
	}
	return textResult(text), out, nil
}

// ===== list_projects =====

type listProjectsInput struct{}

type projectOutput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ItemCount   int    `json:"item_count"`
	Created     string `json:"created"`
}

type listProjectsOutput struct {
	Projects []projectOutput `json:"projects"`
	Count    int             `json:"count"`
}

func (s *Server) listProjects(ctx context.Context, _ *mcp.CallToolRequest, _ listProjectsInput) (*mcp.CallToolResult, listProjectsOutput, error) {
	projects, err := s.services.Search().ListProjects(ctx)
	if err != nil {
		return nil, listProjectsOutput{}, err
	}
	out := listProjectsOutput{Projects: make([]projectOutput, len(projects)), Count: len(projects)}
	if len(projects) == 0 {
		return textResult("No projects found in Peacock Memory"), out, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Peacock Memory Projects (%d total)\n\n", len(projects))
	for i, p := range projects {
		out.Projects[i] = projectOutput{Name: p.Name, Description: p.Description, ItemCount: p.ItemCount, Created: p.Created}
		desc := p.Description
		if desc == "" {
			desc = "No description"
		}
		created := "Unknown"
		if len(p.Created) >= 10 {
			created = p.Created[:10]
		}
		fmt.Fprintf(&b, "Project #%d: %s\nDescription: %s\nItems: %d\nCreated: %s\n\n", i+1, p.Name, desc, p.ItemCount, created)
	}
	return textResult(strings.TrimRight(b.String(), "\n")), out, nil
}

// ===== memory_stats =====

type statsInput struct{}

func (s *Server) memoryStats(ctx context.Context, _ *mcp.CallToolRequest, _ statsInput) (*mcp.CallToolResult, search.Stats, error) {
	st, err := s.services.Search().Stats(ctx)
	if err != nil {
		return nil, search.Stats{}, err
	}
	text := fmt.Sprintf(
		"Collections: %d\nProjects: %d\nDocuments: %d\n  codebase: %d\n  conversations: %d\n  ideas: %d\n  brainstorm: %d\n  notes: %d\n  manpages: %d",
		st.TotalCollections, st.Projects, st.TotalDocuments,
		st.ByType.Codebase, st.ByType.Conversations, st.ByType.Ideas,
		st.ByType.Brainstorm, st.ByType.Notes, st.ByType.Manpages,
	)
	return textResult(text), st, nil
}

// ===== import_export =====

type importInput struct {
	Path    string `json:"path,omitempty" jsonschema:"Path of an export file on the server's machine"`
	Content string `json:"content,omitempty" jsonschema:"Export JSON given inline instead of a path"`
}

type importOutput struct {
	Path          string   `json:"path"`
	Format        string   `json:"format"`
	Written       int      `json:"written"`
	Conversations int      `json:"conversations"`
	Messages      int      `json:"messages"`
	Projects      int      `json:"projects"`
	Documents     int      `json:"documents"`
	Failures      []string `json:"failures,omitempty"`
}

func (s *Server) importExport(ctx context.Context, _ *mcp.CallToolRequest, in importInput) (*mcp.CallToolResult, importOutput, error) {
	var (
		res importer.FileResult
		err error
	)
	switch {
	case in.Path != "" && in.Content != "":
		return nil, importOutput{}, fmt.Errorf("%w: give either path or content, not both", ErrInvalidArgument)
	case in.Path != "":
		res, err = s.services.Importer().ImportFile(ctx, in.Path)
	case in.Content != "":
		res, err = s.services.Importer().ImportBytes(ctx, "inline", []byte(in.Content))
	default:
		return nil, importOutput{}, fmt.Errorf("%w: path or content is required", ErrInvalidArgument)
	}
	if err != nil {
		return nil, importOutput{}, err
	}

	out := importOutput{
		Path:          res.Path,
		Format:        res.Format.String(),
		Written:       res.Written,
		Conversations: res.ConversationsSeen,
		Messages:      res.MessagesSeen,
		Projects:      res.ProjectsCreated,
		Documents:     res.DocumentsCreated,
	}
	for _, f := range res.Failures {
		out.Failures = append(out.Failures, f.Error())
	}
	text := fmt.Sprintf("Imported %s (%s)\nDocuments written: %d\nConversations: %d\nMessages: %d\nProjects: %d",
		out.Path, out.Format, out.Written, out.Conversations, out.Messages, out.Projects)
	if n := len(out.Failures); n > 0 {
		text += fmt.Sprintf("\nFailed items: %d", n)
	}
	return textResult(text), out, nil
}

// ===== delete_memory =====

type deleteInput struct {
	Collection string `json:"collection" jsonschema:"Collection to delete from"`
	ID         string `json:"id,omitempty" jsonschema:"Document id; omit together with all=true to drop the collection"`
	All        bool   `json:"all,omitempty" jsonschema:"Delete the entire collection"`
}

type deleteOutput struct {
	Deleted    bool   `json:"deleted"`
	Collection string `json:"collection"`
	ID         string `json:"id,omitempty"`
}

func (s *Server) deleteMemory(ctx context.Context, _ *mcp.CallToolRequest, in deleteInput) (*mcp.CallToolResult, deleteOutput, error) {
	if in.Collection == "" {
		return nil, deleteOutput{}, fmt.Errorf("%w: collection is required", ErrInvalidArgument)
	}
	out := deleteOutput{Collection: in.Collection, ID: in.ID}
	switch {
	case in.ID != "" && in.All:
		return nil, deleteOutput{}, fmt.Errorf("%w: id and all are mutually exclusive", ErrInvalidArgument)
	case in.ID != "":
		out.Deleted = s.services.Store().DeleteItem(ctx, in.Collection, in.ID)
	case in.All:
		out.Deleted = s.services.Store().DeleteCollection(ctx, in.Collection)
	default:
		return nil, deleteOutput{}, fmt.Errorf("%w: id or all=true is required", ErrInvalidArgument)
	}

	target := in.Collection
	if in.ID != "" {
		target = in.Collection + "/" + in.ID
	}
	if !out.Deleted {
		return textResult("Nothing deleted: " + target + " not found"), out, nil
	}
	return textResult("Deleted " + target), out, nil
}
