package http

import (
	"github.com/m5trevino/peacock-mem/internal/importer"
	"github.com/m5trevino/peacock-mem/internal/search"
)

// DefaultSearchLimit applies when a search request omits limit.
const DefaultSearchLimit = 10

// SearchRequest is the request body for POST /search. Type scopes the
// search to one category; Types splits limit across several. With neither,
// every collection is searched.
type SearchRequest struct {
	Query string   `json:"query"`
	Limit int      `json:"limit"`
	Type  string   `json:"type,omitempty"`
	Types []string `json:"types,omitempty"`
}

// SearchResponse is the response body for POST /search.
type SearchResponse struct {
	Query   string                `json:"query"`
	Results []search.SearchResult `json:"results"`
	Count   int                   `json:"count"`
}

// AddRequest is the request body for POST /add.
type AddRequest struct {
	Content     string `json:"content"`
	Disposition string `json:"disposition"`
	Project     string `json:"project,omitempty"`
	FilePath    string `json:"file_path,omitempty"`
}

// AddResponse is the response body for POST /add.
type AddResponse struct {
	Status     string `json:"status"`
	ID         string `json:"id"`
	Collection string `json:"collection"`
}

// ListResponse is the response body for GET /list/:type.
type ListResponse struct {
	Type  search.Category `json:"type"`
	Items []search.Item   `json:"items"`
	Count int             `json:"count"`
}

// ProjectsResponse is the response body for GET /projects.
type ProjectsResponse struct {
	Projects []search.ProjectSummary `json:"projects"`
	Count    int                     `json:"count"`
}

// DeleteResponse is the response body for the DELETE endpoints.
type DeleteResponse struct {
	Deleted bool `json:"deleted"`
}

// ImportResponse is the response body for POST /import.
type ImportResponse struct {
	Result importer.FileResult `json:"result"`
	Error  string              `json:"error,omitempty"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status      string `json:"status"`
	Collections int    `json:"collections"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}
