// Package vectorstore provides the similarity index behind the collection
// store.
//
// An Index only answers "which ids in this collection are closest to this
// text". Durable content and metadata live in the catalog; the index keeps
// enough of each document to rebuild and re-rank it.
//
// Two implementations exist: ChromemIndex (embedded, default) and
// QdrantIndex (remote gRPC).
package vectorstore

import (
	"context"
	"errors"
)

// Sentinel errors for index operations.
var (
	// ErrCollectionNotFound is returned when a collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyDocuments indicates empty or nil documents.
	ErrEmptyDocuments = errors.New("empty or nil documents")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")

	// ErrConnectionFailed indicates the remote backend is unreachable.
	ErrConnectionFailed = errors.New("failed to connect to vector backend")

	// ErrEmptyQuery is returned for blank query text.
	ErrEmptyQuery = errors.New("query cannot be empty")
)

// Embedder generates vector embeddings from text.
type Embedder interface {
	// EmbedDocuments generates embeddings for multiple texts.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Document is one entry to index.
type Document struct {
	ID       string
	Content  string
	Metadata map[string]string
}

// Match is one similarity hit. Distance is cosine distance in [0, 2];
// 1 - Distance is the similarity.
type Match struct {
	ID       string
	Content  string
	Metadata map[string]string
	Distance float32
}

// Index is a per-collection similarity index.
type Index interface {
	// Upsert writes or replaces documents by id, creating the collection
	// on first write.
	Upsert(ctx context.Context, collection string, docs []Document) error

	// Query returns up to k nearest documents. A missing collection yields
	// ErrCollectionNotFound; an empty one yields no matches.
	Query(ctx context.Context, collection, text string, k int) ([]Match, error)

	// Delete removes documents by id. Unknown ids are ignored.
	Delete(ctx context.Context, collection string, ids ...string) error

	// DeleteCollection drops a collection and its vectors.
	DeleteCollection(ctx context.Context, collection string) error

	// Close releases backend resources.
	Close() error
}
