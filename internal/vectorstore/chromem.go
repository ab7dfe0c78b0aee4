package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var chromemTracer = otel.Tracer("peacock.vectorstore.chromem")

// ChromemConfig configures the embedded index.
type ChromemConfig struct {
	// Path is the directory for gob files. Empty keeps the index in memory.
	Path string

	// Compress enables gzip compression of persisted files.
	Compress bool
}

// ChromemIndex implements Index on top of chromem-go.
type ChromemIndex struct {
	db       *chromem.DB
	embedder Embedder
	logger   *zap.Logger
}

// NewChromemIndex opens (or creates) an embedded index.
func NewChromemIndex(cfg ChromemConfig, embedder Embedder, logger *zap.Logger) (*ChromemIndex, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var db *chromem.DB
	if cfg.Path == "" {
		db = chromem.NewDB()
	} else {
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", cfg.Path, err)
		}
		var err error
		db, err = chromem.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("opening chromem DB: %w", err)
		}
	}

	logger.Info("chromem index opened",
		zap.String("path", cfg.Path),
		zap.Bool("compress", cfg.Compress),
	)
	return &ChromemIndex{db: db, embedder: embedder, logger: logger}, nil
}

func (c *ChromemIndex) embedFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return c.embedder.EmbedQuery(ctx, text)
	}
}

// Upsert implements Index.
func (c *ChromemIndex) Upsert(ctx context.Context, collection string, docs []Document) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemIndex.Upsert")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("document_count", len(docs)),
	)

	if len(docs) == 0 {
		return ErrEmptyDocuments
	}

	coll, err := c.db.GetOrCreateCollection(PhysicalName(collection), nil, c.embedFunc())
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("getting collection %s: %w", collection, err)
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}
	vectors, err := c.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if len(vectors) != len(docs) {
		return fmt.Errorf("%w: got %d vectors for %d documents", ErrEmbeddingFailed, len(vectors), len(docs))
	}

	chromemDocs := make([]chromem.Document, len(docs))
	for i, d := range docs {
		chromemDocs[i] = chromem.Document{
			ID:        d.ID,
			Content:   d.Content,
			Metadata:  d.Metadata,
			Embedding: vectors[i],
		}
	}

	// Embeddings are precomputed, so a single worker is enough.
	if err := coll.AddDocuments(ctx, chromemDocs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("adding documents: %w", err)
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// Query implements Index.
func (c *ChromemIndex) Query(ctx context.Context, collection, text string, k int) ([]Match, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemIndex.Query")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collection), attribute.Int("k", k))

	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyQuery
	}
	coll := c.db.GetCollection(PhysicalName(collection), c.embedFunc())
	if coll == nil {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}

	// chromem rejects k larger than the document count.
	n := coll.Count()
	if k > n {
		k = n
	}
	if k <= 0 {
		return nil, nil
	}

	vec, err := c.embedder.EmbedQuery(ctx, text)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	results, err := coll.QueryEmbedding(ctx, vec, k, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying %s: %w", collection, err)
	}

	matches := make([]Match, len(results))
	for i, r := range results {
		matches[i] = Match{
			ID:       r.ID,
			Content:  r.Content,
			Metadata: r.Metadata,
			Distance: 1 - r.Similarity,
		}
	}
	span.SetAttributes(attribute.Int("result_count", len(matches)))
	return matches, nil
}

// Delete implements Index.
func (c *ChromemIndex) Delete(ctx context.Context, collection string, ids ...string) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemIndex.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collection), attribute.Int("id_count", len(ids)))

	if len(ids) == 0 {
		return nil
	}
	coll := c.db.GetCollection(PhysicalName(collection), c.embedFunc())
	if coll == nil {
		return nil
	}
	if err := coll.Delete(ctx, nil, nil, ids...); err != nil {
		span.RecordError(err)
		return fmt.Errorf("deleting from %s: %w", collection, err)
	}
	return nil
}

// DeleteCollection implements Index.
func (c *ChromemIndex) DeleteCollection(ctx context.Context, collection string) error {
	_, span := chromemTracer.Start(ctx, "ChromemIndex.DeleteCollection")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collection))

	if err := c.db.DeleteCollection(PhysicalName(collection)); err != nil && !errors.Is(err, os.ErrNotExist) {
		span.RecordError(err)
		return fmt.Errorf("deleting collection %s: %w", collection, err)
	}
	c.logger.Debug("dropped index collection", zap.String("collection", collection))
	return nil
}

// Close implements Index. chromem persists on every write.
func (c *ChromemIndex) Close() error {
	return nil
}
