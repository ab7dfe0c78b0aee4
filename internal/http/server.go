// Package http serves the peacock store over a JSON API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/m5trevino/peacock-mem/internal/logging"
	"github.com/m5trevino/peacock-mem/internal/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server provides the HTTP endpoints.
type Server struct {
	echo     *echo.Echo
	services services.Registry
	logger   *zap.Logger
	config   *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
	// RateLimit is requests per second per client IP. Zero disables it.
	RateLimit float64
	// MaxImportSize bounds the body of POST /import in bytes.
	MaxImportSize int64
}

const defaultMaxImportSize = 512 << 20

// NewServer creates a new HTTP server.
func NewServer(reg services.Registry, logger *zap.Logger, cfg *Config) (*Server, error) {
	if reg == nil {
		return nil, errors.New("services cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Host: "localhost", Port: 8765}
	}
	if cfg.MaxImportSize <= 0 {
		cfg.MaxImportSize = defaultMaxImportSize
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(logger)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(requestLogger(logger))
	e.Use(NewHTTPMetrics(logger).MetricsMiddleware())
	if cfg.RateLimit > 0 {
		e.Use(newIPLimiter(cfg.RateLimit).middleware())
	}

	s := &Server{
		echo:     e,
		services: reg,
		logger:   logger,
		config:   cfg,
	}
	s.registerRoutes()
	return s, nil
}

// requestLogger carries the request id in the request context, so handlers
// and the error handler log it through logging.For, and logs each request.
func requestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			ctx := logging.WithRequestID(req.Context(), c.Response().Header().Get(echo.HeaderXRequestID))
			c.SetRequest(req.WithContext(ctx))

			if err := next(c); err != nil {
				c.Error(err)
			}
			logging.For(ctx, logger).Info("http request",
				zap.String("method", req.Method),
				zap.String("uri", req.RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
			)
			return nil
		}
	}
}

// errorHandler writes every error as an ErrorResponse.
func errorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code := http.StatusInternalServerError
		msg := err.Error()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			msg = fmt.Sprint(he.Message)
		}
		if code >= http.StatusInternalServerError {
			logging.For(c.Request().Context(), logger).Error("request failed",
				zap.String("uri", c.Request().RequestURI), zap.Error(err))
		}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, ErrorResponse{Error: msg})
		}
		if err != nil {
			logger.Warn("writing error response failed", zap.Error(err))
		}
	}
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		newStoreCollector(s.services.Store(), s.logger),
	)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	s.echo.POST("/search", s.handleSearch)
	s.echo.POST("/add", s.handleAdd)
	s.echo.POST("/import", s.handleImport)
	s.echo.GET("/stats", s.handleStats)
	s.echo.GET("/projects", s.handleProjects)
	s.echo.GET("/projects/:name", s.handleProject)
	s.echo.GET("/list/:type", s.handleList)
	s.echo.DELETE("/collections/:name", s.handleDeleteCollection)
	s.echo.DELETE("/collections/:name/items/:id", s.handleDeleteItem)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
