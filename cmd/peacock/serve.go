package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/m5trevino/peacock-mem/internal/config"
	peacockhttp "github.com/m5trevino/peacock-mem/internal/http"
	"github.com/m5trevino/peacock-mem/internal/importer"
	"github.com/m5trevino/peacock-mem/internal/mcp"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <dir>",
		Short: "Import JSON exports as they appear in a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(a *app) error {
				out := cmd.OutOrStdout()
				w, err := importer.NewWatcher(a.services.Importer(), importer.WatcherConfig{
					Dir:      dir,
					Debounce: a.cfg.Import.WatchDebounce.Duration(),
					OnImport: func(r importer.FileResult, err error) {
						if err != nil && r.Err == nil {
							r.Err = err
						}
						renderFileResult(out, r)
					},
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s %s\n", sectionStyle.Render("Watching"), dir)
				if err := w.Run(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
					return err
				}
				return nil
			})
		},
	}
}

func httpConfig(cfg *config.Config) *peacockhttp.Config {
	return &peacockhttp.Config{
		Host:          cfg.Server.Host,
		Port:          cfg.Server.Port,
		RateLimit:     cfg.Server.RateLimit,
		MaxImportSize: cfg.Import.MaxFileSize,
	}
}

func newServeCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve search, add, import and admin endpoints over HTTP, with
Prometheus metrics on /metrics. Host, port and rate limit come from the
server section of the config file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(a *app) error {
				hc := httpConfig(a.cfg)
				if port > 0 {
					hc.Port = port
				}
				srv, err := peacockhttp.NewServer(a.services, a.logger.Named("http"), hc)
				if err != nil {
					return err
				}

				errCh := make(chan error, 1)
				go func() { errCh <- srv.Start() }()

				select {
				case err := <-errCh:
					return err
				case <-cmd.Context().Done():
				}

				ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout.Duration())
				defer cancel()
				if err := srv.Shutdown(ctx); err != nil {
					a.logger.Error("http shutdown failed", zap.Error(err))
					return err
				}
				return <-errCh
			})
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "override server.port")
	return cmd
}

func newMCPCmd() *cobra.Command {
	var listTools bool
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve memory tools over MCP on stdio",
		Long: `Run an MCP server on stdin/stdout exposing search_memory, add_memory,
list_projects, memory_stats, import_export and delete_memory.

Register it with an MCP client, for example:
  claude mcp add peacock -- peacock mcp`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(a *app) error {
				srv, err := mcp.NewServer(&mcp.Config{
					Name:    "peacock-memory",
					Version: version,
					Logger:  a.logger.Named("mcp"),
				}, a.services)
				if err != nil {
					return err
				}
				if listTools {
					for _, t := range srv.Tools().List() {
						fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n",
							valueStyle.Render(t.Name), dimStyle.Render("["+string(t.Category)+"]"), t.Description)
					}
					return nil
				}
				// Anything else on stdout corrupts the protocol stream.
				cmd.SetOut(os.Stderr)
				if err := srv.Run(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&listTools, "list-tools", false, "print the tools and exit")
	return cmd
}
