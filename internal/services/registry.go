package services

import (
	"errors"
	"time"

	"github.com/m5trevino/peacock-mem/internal/config"
	"github.com/m5trevino/peacock-mem/internal/files"
	"github.com/m5trevino/peacock-mem/internal/importer"
	"github.com/m5trevino/peacock-mem/internal/search"
	"github.com/m5trevino/peacock-mem/internal/store"
	"go.uber.org/zap"
)

// Registry provides access to the peacock services.
type Registry interface {
	Store() *store.Store
	Search() *search.Service
	Importer() *importer.Service
	Files() *files.Ingester
}

// Options configures the registry.
type Options struct {
	Store  *store.Store
	Config *config.Config
	Logger *zap.Logger
	// Now overrides the clock used for imported timestamps.
	Now func() time.Time
}

type registry struct {
	store    *store.Store
	search   *search.Service
	importer *importer.Service
	files    *files.Ingester
}

// NewRegistry builds every service over opts.Store. A nil Config uses
// config.Default().
func NewRegistry(opts Options) (Registry, error) {
	if opts.Store == nil {
		return nil, errors.New("store is required")
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	imp := []importer.Option{importer.WithLogger(logger.Named("importer"))}
	if cfg.Import.MaxFileSize > 0 {
		imp = append(imp, importer.WithMaxFileSize(cfg.Import.MaxFileSize))
	}
	reg := importer.DefaultRegistry(importer.ParseOrder(cfg.Import.ChatGPTOrder), now)

	return &registry{
		store:    opts.Store,
		search:   search.NewService(opts.Store, logger.Named("search")),
		importer: importer.NewService(opts.Store, reg, imp...),
		files:    files.NewIngester(opts.Store, logger.Named("files")),
	}, nil
}

func (r *registry) Store() *store.Store         { return r.store }
func (r *registry) Search() *search.Service     { return r.search }
func (r *registry) Importer() *importer.Service { return r.importer }
func (r *registry) Files() *files.Ingester      { return r.files }
