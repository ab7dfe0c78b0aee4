// Package store is the collection store: a durable catalog of collections
// and documents paired with a similarity index.
//
// Writes go to the index first and then the catalog. Reads that need content
// (GetAll, listing, stats) come from the catalog; similarity queries ask the
// index for ids and hydrate them from the catalog, so a document the catalog
// does not hold is never returned.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/m5trevino/peacock-mem/internal/catalog"
	"github.com/m5trevino/peacock-mem/internal/secrets"
	"github.com/m5trevino/peacock-mem/internal/vectorstore"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("peacock.store")

var (
	// ErrStoreUnavailable wraps backend failures.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrNotFound is returned for a missing collection or document.
	ErrNotFound = errors.New("not found")

	// ErrInvalidDocument is returned for documents that cannot be stored.
	ErrInvalidDocument = errors.New("invalid document")
)

// Catalog is the durable record the store is built on.
type Catalog interface {
	EnsureCollection(ctx context.Context, name, kind string, meta map[string]string) (catalog.Collection, bool, error)
	GetCollection(ctx context.Context, name string) (catalog.Collection, error)
	ListCollections(ctx context.Context) ([]catalog.Collection, error)
	DeleteCollection(ctx context.Context, name string) (bool, error)
	UpsertDocument(ctx context.Context, collection string, rec catalog.Record) error
	Documents(ctx context.Context, collection string) ([]catalog.Record, error)
	GetDocuments(ctx context.Context, collection string, ids []string) (map[string]catalog.Record, error)
	DeleteDocument(ctx context.Context, collection, id string) (bool, error)
	Count(ctx context.Context, collection string) (int, error)
	Close() error
}

// Store is the collection store façade.
type Store struct {
	catalog  Catalog
	index    vectorstore.Index
	redactor secrets.Redactor
	logger   *zap.Logger
	closers  []func() error
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRedactor scrubs content before every write.
func WithRedactor(r secrets.Redactor) Option {
	return func(s *Store) {
		if r != nil {
			s.redactor = r
		}
	}
}

// withCloser registers an extra resource released by Close.
func withCloser(fn func() error) Option {
	return func(s *Store) { s.closers = append(s.closers, fn) }
}

// New creates a Store over an opened catalog and index.
func New(cat Catalog, idx vectorstore.Index, opts ...Option) (*Store, error) {
	if cat == nil {
		return nil, fmt.Errorf("catalog cannot be nil")
	}
	if idx == nil {
		return nil, fmt.Errorf("index cannot be nil")
	}
	s := &Store{
		catalog:  cat,
		index:    idx,
		redactor: secrets.Noop{},
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Close releases the index, the catalog and anything registered with them.
func (s *Store) Close() error {
	errs := []error{s.index.Close(), s.catalog.Close()}
	for _, fn := range s.closers {
		errs = append(errs, fn())
	}
	return errors.Join(errs...)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

func toCollection(c catalog.Collection) Collection {
	return Collection{Name: c.Name, Kind: c.Kind, Metadata: c.Metadata, Created: c.CreatedAt}
}

// EnsureCollection gets or creates a collection. meta is applied only on
// creation; a missing "created" entry is filled with the current time.
func (s *Store) EnsureCollection(ctx context.Context, name string, meta map[string]string) (Collection, error) {
	ctx, span := tracer.Start(ctx, "Store.EnsureCollection")
	defer span.End()
	span.SetAttributes(attribute.String("collection", name))

	if strings.TrimSpace(name) == "" {
		return Collection{}, fmt.Errorf("%w: collection name is empty", ErrInvalidDocument)
	}

	m := make(map[string]string, len(meta)+1)
	for k, v := range meta {
		m[k] = v
	}
	if m[MetaCreated] == "" {
		m[MetaCreated] = Timestamp(s.now())
	}

	coll, created, err := s.catalog.EnsureCollection(ctx, name, KindFor(name), m)
	if err != nil {
		span.RecordError(err)
		return Collection{}, unavailable("ensure collection", err)
	}
	if created {
		s.logger.Debug("created collection", zap.String("collection", name), zap.String("kind", coll.Kind))
	}
	return toCollection(coll), nil
}

// CreateProject ensures the project_<name> collection exists with project
// metadata.
func (s *Store) CreateProject(ctx context.Context, name, description string) (Collection, error) {
	if strings.TrimSpace(name) == "" {
		return Collection{}, fmt.Errorf("%w: project name is empty", ErrInvalidDocument)
	}
	return s.EnsureCollection(ctx, ProjectCollection(name), map[string]string{
		MetaType:        KindProject,
		MetaName:        name,
		MetaDescription: description,
	})
}

// Upsert writes or replaces a single document.
func (s *Store) Upsert(ctx context.Context, collection, id, content string, meta map[string]string) error {
	return s.UpsertBatch(ctx, collection, []Document{{ID: id, Content: content, Metadata: meta}})
}

// UpsertBatch writes or replaces documents in one collection, creating the
// collection if needed. Content is redacted before it reaches any backend.
func (s *Store) UpsertBatch(ctx context.Context, collection string, docs []Document) error {
	ctx, span := tracer.Start(ctx, "Store.UpsertBatch")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collection), attribute.Int("document_count", len(docs)))

	if len(docs) == 0 {
		return nil
	}
	prepared := make([]vectorstore.Document, len(docs))
	for i, d := range docs {
		if d.ID == "" {
			return fmt.Errorf("%w: document %d has no id", ErrInvalidDocument, i)
		}
		if disp, ok := d.Metadata[MetaDisposition]; ok {
			if _, valid := ParseDisposition(disp); !valid {
				return fmt.Errorf("%w: unknown disposition %q", ErrInvalidDocument, disp)
			}
		}
		red := s.redactor.Redact(d.Content)
		prepared[i] = vectorstore.Document{ID: d.ID, Content: red.Content, Metadata: d.Metadata}
	}

	if _, err := s.EnsureCollection(ctx, collection, nil); err != nil {
		return err
	}
	if err := s.index.Upsert(ctx, collection, prepared); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return unavailable("index upsert", err)
	}
	for _, d := range prepared {
		rec := catalog.Record{ID: d.ID, Content: d.Content, Metadata: d.Metadata}
		if err := s.catalog.UpsertDocument(ctx, collection, rec); err != nil {
			span.RecordError(err)
			return unavailable("catalog upsert", err)
		}
	}
	return nil
}

// GetAll returns every document of a collection in insertion order. An
// absent collection yields an empty Batch.
func (s *Store) GetAll(ctx context.Context, collection string) (Batch, error) {
	ctx, span := tracer.Start(ctx, "Store.GetAll")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collection))

	recs, err := s.catalog.Documents(ctx, collection)
	if err != nil {
		span.RecordError(err)
		return Batch{}, unavailable("get all", err)
	}
	b := Batch{
		IDs:       make([]string, len(recs)),
		Contents:  make([]string, len(recs)),
		Metadatas: make([]map[string]string, len(recs)),
	}
	for i, r := range recs {
		b.IDs[i] = r.ID
		b.Contents[i] = r.Content
		b.Metadatas[i] = r.Metadata
	}
	return b, nil
}

// QuerySimilar returns up to topK candidates, nearest first. topK is clamped
// to the collection size. An absent collection yields ErrNotFound.
func (s *Store) QuerySimilar(ctx context.Context, collection, text string, topK int) ([]Candidate, error) {
	ctx, span := tracer.Start(ctx, "Store.QuerySimilar")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collection), attribute.Int("top_k", topK))

	if _, err := s.catalog.GetCollection(ctx, collection); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, fmt.Errorf("collection %s: %w", collection, ErrNotFound)
		}
		return nil, unavailable("query", err)
	}
	n, err := s.catalog.Count(ctx, collection)
	if err != nil {
		return nil, unavailable("query", err)
	}
	if topK > n {
		topK = n
	}
	if topK <= 0 {
		return nil, nil
	}

	matches, err := s.index.Query(ctx, collection, text, topK)
	if errors.Is(err, vectorstore.ErrCollectionNotFound) {
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, unavailable("query", err)
	}

	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
	}
	recs, err := s.catalog.GetDocuments(ctx, collection, ids)
	if err != nil {
		return nil, unavailable("query", err)
	}

	out := make([]Candidate, 0, len(matches))
	for _, m := range matches {
		rec, ok := recs[m.ID]
		if !ok {
			s.logger.Debug("index hit missing from catalog",
				zap.String("collection", collection), zap.String("id", m.ID))
			continue
		}
		out = append(out, Candidate{ID: m.ID, Content: rec.Content, Metadata: rec.Metadata, Distance: m.Distance})
	}
	span.SetAttributes(attribute.Int("result_count", len(out)))
	return out, nil
}

// DeleteItem removes one document. It returns false when the collection or
// id is absent or a backend fails; failures are logged.
func (s *Store) DeleteItem(ctx context.Context, collection, id string) bool {
	ctx, span := tracer.Start(ctx, "Store.DeleteItem")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collection), attribute.String("id", id))

	ok, err := s.catalog.DeleteDocument(ctx, collection, id)
	if err != nil {
		span.RecordError(err)
		s.logger.Warn("delete item failed", zap.String("collection", collection), zap.String("id", id), zap.Error(err))
		return false
	}
	if !ok {
		return false
	}
	if err := s.index.Delete(ctx, collection, id); err != nil {
		s.logger.Warn("index delete failed", zap.String("collection", collection), zap.String("id", id), zap.Error(err))
	}
	return true
}

// DeleteCollection drops a collection and all its documents, with the same
// false-on-failure policy as DeleteItem.
func (s *Store) DeleteCollection(ctx context.Context, name string) bool {
	ctx, span := tracer.Start(ctx, "Store.DeleteCollection")
	defer span.End()
	span.SetAttributes(attribute.String("collection", name))

	ok, err := s.catalog.DeleteCollection(ctx, name)
	if err != nil {
		span.RecordError(err)
		s.logger.Warn("delete collection failed", zap.String("collection", name), zap.Error(err))
		return false
	}
	if !ok {
		return false
	}
	if err := s.index.DeleteCollection(ctx, name); err != nil {
		s.logger.Warn("index drop failed", zap.String("collection", name), zap.Error(err))
	}
	s.logger.Info("deleted collection", zap.String("collection", name))
	return true
}

// ListCollections returns every collection sorted by name.
func (s *Store) ListCollections(ctx context.Context) ([]Collection, error) {
	ctx, span := tracer.Start(ctx, "Store.ListCollections")
	defer span.End()

	colls, err := s.catalog.ListCollections(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, unavailable("list collections", err)
	}
	out := make([]Collection, len(colls))
	for i, c := range colls {
		out[i] = toCollection(c)
	}
	return out, nil
}

// GetCollection returns one collection or ErrNotFound.
func (s *Store) GetCollection(ctx context.Context, name string) (Collection, error) {
	c, err := s.catalog.GetCollection(ctx, name)
	if errors.Is(err, catalog.ErrNotFound) {
		return Collection{}, fmt.Errorf("collection %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return Collection{}, unavailable("get collection", err)
	}
	return toCollection(c), nil
}

// Count returns the number of documents in a collection.
func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	n, err := s.catalog.Count(ctx, collection)
	if err != nil {
		return 0, unavailable("count", err)
	}
	return n, nil
}
