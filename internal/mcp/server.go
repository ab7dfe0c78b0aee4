package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/m5trevino/peacock-mem/internal/services"
)

// Server is an MCP server over the peacock services.
type Server struct {
	mcp      *mcp.Server
	services services.Registry
	tools    *ToolRegistry
	metrics  *Metrics
	logger   *zap.Logger
}

// Config configures the MCP server.
type Config struct {
	// Name is the implementation name reported to clients.
	Name string
	// Version is the implementation version reported to clients.
	Version string
	Logger  *zap.Logger
}

// DefaultConfig returns the default server identity.
func DefaultConfig() *Config {
	return &Config{
		Name:    "peacock-memory",
		Version: "1.0.0",
		Logger:  zap.NewNop(),
	}
}

// NewServer creates a server and registers every tool.
func NewServer(cfg *Config, reg services.Registry) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if reg == nil {
		return nil, errors.New("services are required")
	}

	s := &Server{
		mcp: mcp.NewServer(&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		}, nil),
		services: reg,
		tools:    NewToolRegistry(),
		metrics:  NewMetrics(cfg.Logger),
		logger:   cfg.Logger,
	}
	s.registerTools()
	return s, nil
}

// Tools returns the metadata of every registered tool.
func (s *Server) Tools() *ToolRegistry {
	return s.tools
}

// Run serves on stdin/stdout until ctx is done or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio transport", zap.Int("tools", s.tools.Count()))
	if err := s.mcp.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}
