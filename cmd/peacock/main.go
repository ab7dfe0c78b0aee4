// Package main implements the peacock CLI: import chat exports and files
// into a local searchable memory, query it, and serve it over HTTP or MCP.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/log/global"
	"go.uber.org/zap"

	"github.com/m5trevino/peacock-mem/internal/config"
	"github.com/m5trevino/peacock-mem/internal/logging"
	"github.com/m5trevino/peacock-mem/internal/services"
	"github.com/m5trevino/peacock-mem/internal/store"
	"github.com/m5trevino/peacock-mem/internal/telemetry"
)

var version = "dev"

var (
	configPath string
	jsonOutput bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "peacock",
		Short: "Personal knowledge memory for chat exports, notes and code",
		Long: `peacock imports Claude and ChatGPT conversation exports, Claude project
exports and local files into a searchable vector memory.

Examples:
  peacock import conversations.json
  peacock add ./notes --disposition Note --project garden
  peacock search "sqlite migrations" --type codebase
  peacock serve`,
		Version:       version,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/peacock/config.yaml)")
	root.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print JSON instead of formatted text")

	root.AddCommand(
		newImportCmd(),
		newAnalyzeCmd(),
		newAddCmd(),
		newSearchCmd(),
		newListCmd(),
		newProjectsCmd(),
		newProjectCmd(),
		newRecentCmd(),
		newStatsCmd(),
		newDeleteCmd(),
		newWatchCmd(),
		newServeCmd(),
		newMCPCmd(),
	)
	return root
}

// app is everything a command needs once configuration is loaded.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	tel      *telemetry.Telemetry
	store    *store.Store
	services services.Registry
}

// openApp loads configuration, starts logging and telemetry, and opens the
// store. Logs always go to stderr: stdout carries command output and, for
// the mcp command, the protocol stream.
func openApp(ctx context.Context) (_ *app, err error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, err
	}

	tel, err := telemetry.New(ctx, telemetry.FromObservability(cfg.Observability, version))
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, tel: tel}
	// Everything started so far is released if a later step fails.
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	logCfg, err := logging.FromObservability(cfg.Observability, true)
	if err != nil {
		return nil, err
	}
	a.logger, err = logging.New(logCfg, global.GetLoggerProvider())
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	if degraded, terr := tel.Degraded(); degraded {
		a.logger.Warn("telemetry degraded, continuing without export", zap.Error(terr))
	}

	a.store, err = store.Open(ctx, cfg, a.logger.Named("store"))
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	a.services, err = services.NewRegistry(services.Options{Store: a.store, Config: cfg, Logger: a.logger})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Close releases whatever openApp managed to start.
func (a *app) Close() error {
	var errs []error
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing store: %w", err))
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.tel.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
	}
	if a.logger != nil {
		_ = logging.Sync(a.logger)
	}
	return errors.Join(errs...)
}

// withApp opens the app, runs fn and closes the app.
func withApp(cmd *cobra.Command, fn func(*app) error) (err error) {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(a)
}
