package importer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ErrWatcherFailed indicates the filesystem watcher could not start.
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

// Watcher imports JSON exports dropped into a directory. Events for the same
// file are debounced so a file still being written is imported once.
type Watcher struct {
	svc      *Service
	dir      string
	debounce time.Duration
	logger   *zap.Logger
	onImport func(FileResult, error)
}

// WatcherConfig configures a Watcher.
type WatcherConfig struct {
	Dir      string
	Debounce time.Duration
	// OnImport is called after every import attempt, from the watch loop.
	OnImport func(FileResult, error)
}

// NewWatcher creates a Watcher over svc.
func NewWatcher(svc *Service, cfg WatcherConfig) (*Watcher, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("watch directory is required")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 500 * time.Millisecond
	}
	return &Watcher{
		svc:      svc,
		dir:      cfg.Dir,
		debounce: cfg.Debounce,
		logger:   svc.logger.Named("watch"),
		onImport: cfg.OnImport,
	}, nil
}

// Run watches until ctx is done. Imports run one at a time on the calling
// goroutine.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}
	w.logger.Info("watching for exports", zap.String("dir", w.dir), zap.Duration("debounce", w.debounce))

	deb := newDebouncer(ctx, w.debounce)
	defer deb.stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 || !isExport(ev.Name) {
				continue
			}
			deb.touch(ev.Name)
		case path := <-deb.ready:
			res, err := w.svc.ImportFile(ctx, path)
			if err != nil {
				w.logger.Warn("watched import failed", zap.String("file", path), zap.Error(err))
			}
			if w.onImport != nil {
				w.onImport(res, err)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

// debouncer delivers a path on ready once no touch for it has arrived within
// delay. Each touch replaces the pending timer rather than resetting it, so a
// timer that already fired cannot deliver twice.
type debouncer struct {
	delay  time.Duration
	ready  chan string
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	pending map[string]*time.Timer
	wg      sync.WaitGroup
}

func newDebouncer(parent context.Context, delay time.Duration) *debouncer {
	ctx, cancel := context.WithCancel(parent)
	return &debouncer{
		delay:   delay,
		ready:   make(chan string),
		ctx:     ctx,
		cancel:  cancel,
		pending: make(map[string]*time.Timer),
	}
}

func (d *debouncer) touch(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if old, ok := d.pending[path]; ok && old.Stop() {
		d.wg.Done()
	}
	d.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(d.delay, func() {
		defer d.wg.Done()
		d.mu.Lock()
		current := d.pending[path] == t
		if current {
			delete(d.pending, path)
		}
		d.mu.Unlock()
		if !current {
			return
		}
		select {
		case d.ready <- path:
		case <-d.ctx.Done():
		}
	})
	d.pending[path] = t
}

// stop cancels pending deliveries and waits for fired callbacks to return.
func (d *debouncer) stop() {
	d.cancel()
	d.mu.Lock()
	for path, t := range d.pending {
		if t.Stop() {
			d.wg.Done()
		}
		delete(d.pending, path)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func isExport(path string) bool {
	base := filepath.Base(path)
	return strings.EqualFold(filepath.Ext(base), ".json") && !strings.HasPrefix(base, ".")
}
