package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var qdrantTracer = otel.Tracer("peacock.vectorstore.qdrant")

// pointNamespace derives stable point UUIDs from document ids.
var pointNamespace = uuid.MustParse("4b7c1f5e-3f0a-4d6e-9a57-0c2f8e6d1a93")

const (
	payloadID      = "id"
	payloadContent = "content"
)

// QdrantConfig configures the remote index.
type QdrantConfig struct {
	Host           string
	Port           int
	UseTLS         bool
	APIKey         string
	VectorSize     int
	MaxMessageSize int
	MaxRetries     int
	RetryBackoff   time.Duration
}

// ApplyDefaults fills zero values.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = 200 * time.Millisecond
	}
}

// Validate checks the configuration.
func (c *QdrantConfig) Validate() error {
	if c.VectorSize <= 0 {
		return fmt.Errorf("%w: vector size must be positive", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port %d", ErrInvalidConfig, c.Port)
	}
	return nil
}

// IsTransientError reports whether a gRPC error is worth retrying.
func IsTransientError(err error) bool {
	st, ok := status.FromError(err)
	if !ok || err == nil {
		return false
	}
	switch st.Code() {
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded, grpccodes.Aborted, grpccodes.ResourceExhausted:
		return true
	default:
		return false
	}
}

func isNotFound(err error) bool {
	st, ok := status.FromError(err)
	return ok && st.Code() == grpccodes.NotFound
}

// QdrantIndex implements Index over Qdrant's gRPC API.
type QdrantIndex struct {
	client   *qdrant.Client
	embedder Embedder
	config   QdrantConfig
	logger   *zap.Logger

	// collections caches names known to exist.
	collections sync.Map
}

// NewQdrantIndex dials Qdrant.
func NewQdrantIndex(cfg QdrantConfig, embedder Embedder, logger *zap.Logger) (*QdrantIndex, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.UseTLS {
		logger.Warn("qdrant gRPC using plaintext", zap.String("host", cfg.Host))
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		UseTLS: cfg.UseTLS,
		APIKey: cfg.APIKey,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(cfg.MaxMessageSize),
				grpc.MaxCallSendMsgSize(cfg.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	logger.Info("qdrant index connected",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.Int("vector_size", cfg.VectorSize),
	)
	return &QdrantIndex{client: client, embedder: embedder, config: cfg, logger: logger}, nil
}

// retry runs fn with exponential backoff while it fails transiently.
func (q *QdrantIndex) retry(ctx context.Context, op string, fn func() error) error {
	backoff := q.config.RetryBackoff
	var err error
	for attempt := 0; attempt <= q.config.MaxRetries; attempt++ {
		if err = fn(); err == nil || !IsTransientError(err) {
			return err
		}
		q.logger.Debug("retrying qdrant operation",
			zap.String("operation", op),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return err
}

func (q *QdrantIndex) ensureCollection(ctx context.Context, name string) error {
	if _, ok := q.collections.Load(name); ok {
		return nil
	}
	var exists bool
	err := q.retry(ctx, "collection_exists", func() error {
		info, err := q.client.GetCollectionInfo(ctx, name)
		if isNotFound(err) {
			exists = false
			return nil
		}
		if err != nil {
			return err
		}
		exists = info != nil
		return nil
	})
	if err != nil {
		return fmt.Errorf("checking collection %s: %w", name, err)
	}
	if !exists {
		err = q.retry(ctx, "create_collection", func() error {
			return q.client.CreateCollection(ctx, &qdrant.CreateCollection{
				CollectionName: name,
				VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
					Size:     uint64(q.config.VectorSize),
					Distance: qdrant.Distance_Cosine,
				}),
			})
		})
		if err != nil {
			return fmt.Errorf("creating collection %s: %w", name, err)
		}
	}
	q.collections.Store(name, true)
	return nil
}

// Upsert implements Index.
func (q *QdrantIndex) Upsert(ctx context.Context, collection string, docs []Document) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantIndex.Upsert")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("document_count", len(docs)),
	)
	if len(docs) == 0 {
		return ErrEmptyDocuments
	}

	name := PhysicalName(collection)
	if err := q.ensureCollection(ctx, name); err != nil {
		span.RecordError(err)
		return err
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}
	vectors, err := q.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	points := make([]*qdrant.PointStruct, len(docs))
	for i, d := range docs {
		payload := make(map[string]*qdrant.Value, len(d.Metadata)+2)
		for k, v := range d.Metadata {
			payload[k] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: v}}
		}
		payload[payloadID] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: d.ID}}
		payload[payloadContent] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: d.Content}}

		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointID(d.ID)),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: payload,
		}
	}

	wait := true
	err = q.retry(ctx, "upsert", func() error {
		_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: name,
			Wait:           &wait,
			Points:         points,
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upserting points: %w", err)
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// Query implements Index.
func (q *QdrantIndex) Query(ctx context.Context, collection, text string, k int) ([]Match, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantIndex.Query")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collection), attribute.Int("k", k))

	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyQuery
	}
	if k <= 0 {
		return nil, nil
	}
	vec, err := q.embedder.EmbedQuery(ctx, text)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	var points []*qdrant.ScoredPoint
	err = q.retry(ctx, "query", func() error {
		var err error
		points, err = q.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: PhysicalName(collection),
			Query:          qdrant.NewQuery(vec...),
			Limit:          qdrant.PtrOf(uint64(k)),
			WithPayload:    qdrant.NewWithPayload(true),
		})
		return err
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying %s: %w", collection, err)
	}

	matches := make([]Match, 0, len(points))
	for _, p := range points {
		m := Match{Metadata: make(map[string]string), Distance: 1 - p.GetScore()}
		for key, v := range p.GetPayload() {
			s := v.GetStringValue()
			switch key {
			case payloadID:
				m.ID = s
			case payloadContent:
				m.Content = s
			default:
				m.Metadata[key] = s
			}
		}
		matches = append(matches, m)
	}
	span.SetAttributes(attribute.Int("result_count", len(matches)))
	return matches, nil
}

// Delete implements Index.
func (q *QdrantIndex) Delete(ctx context.Context, collection string, ids ...string) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantIndex.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collection), attribute.Int("id_count", len(ids)))

	if len(ids) == 0 {
		return nil
	}
	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewIDUUID(pointID(id))
	}
	err := q.retry(ctx, "delete", func() error {
		_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: PhysicalName(collection),
			Points: &qdrant.PointsSelector{
				PointsSelectorOneOf: &qdrant.PointsSelector_Points{
					Points: &qdrant.PointsIdsList{Ids: pointIDs},
				},
			},
		})
		return err
	})
	if err != nil && !isNotFound(err) {
		span.RecordError(err)
		return fmt.Errorf("deleting from %s: %w", collection, err)
	}
	return nil
}

// DeleteCollection implements Index.
func (q *QdrantIndex) DeleteCollection(ctx context.Context, collection string) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantIndex.DeleteCollection")
	defer span.End()

	name := PhysicalName(collection)
	span.SetAttributes(attribute.String("collection", collection))
	err := q.retry(ctx, "delete_collection", func() error {
		return q.client.DeleteCollection(ctx, name)
	})
	q.collections.Delete(name)
	if err != nil && !isNotFound(err) {
		span.RecordError(err)
		return fmt.Errorf("deleting collection %s: %w", collection, err)
	}
	return nil
}

// Close implements Index.
func (q *QdrantIndex) Close() error {
	if err := q.client.Close(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func pointID(id string) string {
	return uuid.NewSHA1(pointNamespace, []byte(id)).String()
}
