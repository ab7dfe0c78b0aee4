package http

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/m5trevino/peacock-mem/internal/files"
	"github.com/m5trevino/peacock-mem/internal/importer"
	"github.com/m5trevino/peacock-mem/internal/logging"
	"github.com/m5trevino/peacock-mem/internal/search"
	"github.com/m5trevino/peacock-mem/internal/store"
	"go.uber.org/zap"
)

func (s *Server) handleHealth(c echo.Context) error {
	colls, err := s.services.Store().ListCollections(c.Request().Context())
	if err != nil {
		logging.For(c.Request().Context(), s.logger).Warn("health check: store unavailable", zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "degraded"})
	}
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Collections: len(colls)})
}

func (s *Server) handleSearch(c echo.Context) error {
	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}
	if req.Limit <= 0 {
		req.Limit = DefaultSearchLimit
	}

	ctx := c.Request().Context()
	svc := s.services.Search()
	var (
		results []search.SearchResult
		err     error
	)
	switch {
	case req.Type != "":
		var cat search.Category
		if cat, err = search.ParseCategory(req.Type); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		results, err = svc.SearchByType(ctx, req.Query, cat, req.Limit)
	case len(req.Types) > 0:
		cats := make([]search.Category, 0, len(req.Types))
		for _, t := range req.Types {
			cat, perr := search.ParseCategory(t)
			if perr != nil {
				return echo.NewHTTPError(http.StatusBadRequest, perr.Error())
			}
			cats = append(cats, cat)
		}
		results, err = svc.SearchCategories(ctx, req.Query, cats, req.Limit)
	default:
		results, err = svc.SearchAll(ctx, req.Query, req.Limit)
	}
	if err != nil {
		return err
	}
	if results == nil {
		results = []search.SearchResult{}
	}
	return c.JSON(http.StatusOK, SearchResponse{Query: req.Query, Results: results, Count: len(results)})
}

func (s *Server) handleAdd(c echo.Context) error {
	var req AddRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	added, err := s.services.Files().AddMemory(c.Request().Context(), files.Memory{
		Content:     req.Content,
		Disposition: store.Disposition(req.Disposition),
		Project:     req.Project,
		Source:      req.FilePath,
	})
	switch {
	case errors.Is(err, files.ErrEmptyContent), errors.Is(err, files.ErrInvalidOptions):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrStoreUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	case err != nil:
		return err
	}
	return c.JSON(http.StatusCreated, AddResponse{Status: "success", ID: added.ID, Collection: added.Collection})
}

// handleImport imports a raw export posted as the request body. The name
// query parameter labels the import in logs and results.
func (s *Server) handleImport(c echo.Context) error {
	body := http.MaxBytesReader(c.Response(), c.Request().Body, s.config.MaxImportSize)
	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "export exceeds size limit")
		}
		return echo.NewHTTPError(http.StatusBadRequest, "reading request body failed")
	}
	name := c.QueryParam("name")
	if name == "" {
		name = "upload"
	}

	res, err := s.services.Importer().ImportBytes(c.Request().Context(), name, data)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, ImportResponse{Result: res})
	case errors.Is(err, importer.ErrInvalidJSON), errors.Is(err, importer.ErrUnknownFormat):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, importer.ErrNothingImported):
		return c.JSON(http.StatusUnprocessableEntity, ImportResponse{Result: res, Error: err.Error()})
	default:
		return err
	}
}

func (s *Server) handleStats(c echo.Context) error {
	st, err := s.services.Search().Stats(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, st)
}

func (s *Server) handleProjects(c echo.Context) error {
	projects, err := s.services.Search().ListProjects(c.Request().Context())
	if err != nil {
		return err
	}
	if projects == nil {
		projects = []search.ProjectSummary{}
	}
	return c.JSON(http.StatusOK, ProjectsResponse{Projects: projects, Count: len(projects)})
}

func (s *Server) handleProject(c echo.Context) error {
	pc, err := s.services.Search().ProjectContents(c.Request().Context(), c.Param("name"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pc)
}

func (s *Server) handleList(c echo.Context) error {
	cat, err := search.ParseCategory(c.Param("type"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	items, err := s.services.Search().ListByType(c.Request().Context(), cat)
	if err != nil {
		return err
	}
	if items == nil {
		items = []search.Item{}
	}
	return c.JSON(http.StatusOK, ListResponse{Type: cat, Items: items, Count: len(items)})
}

func (s *Server) handleDeleteCollection(c echo.Context) error {
	if !s.services.Store().DeleteCollection(c.Request().Context(), c.Param("name")) {
		return c.JSON(http.StatusNotFound, DeleteResponse{})
	}
	return c.JSON(http.StatusOK, DeleteResponse{Deleted: true})
}

func (s *Server) handleDeleteItem(c echo.Context) error {
	if !s.services.Store().DeleteItem(c.Request().Context(), c.Param("name"), c.Param("id")) {
		return c.JSON(http.StatusNotFound, DeleteResponse{})
	}
	return c.JSON(http.StatusOK, DeleteResponse{Deleted: true})
}
