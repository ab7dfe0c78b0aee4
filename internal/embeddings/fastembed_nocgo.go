//go:build !cgo

package embeddings

import (
	"context"
	"errors"
)

// ErrFastEmbedNotAvailable is returned by binaries built without cgo.
var ErrFastEmbedNotAvailable = errors.New("fastembed: not available (built without cgo, use the tei or hash provider)")

// FastEmbedConfig configures the local ONNX provider.
type FastEmbedConfig struct {
	Model     string
	CacheDir  string
	MaxLength int
}

// FastEmbedProvider is a stub for builds without cgo.
type FastEmbedProvider struct{}

// NewFastEmbedProvider always fails without cgo.
func NewFastEmbedProvider(_ FastEmbedConfig) (*FastEmbedProvider, error) {
	return nil, ErrFastEmbedNotAvailable
}

func (p *FastEmbedProvider) EmbedDocuments(_ context.Context, _ []string) ([][]float32, error) {
	return nil, ErrFastEmbedNotAvailable
}

func (p *FastEmbedProvider) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	return nil, ErrFastEmbedNotAvailable
}

func (p *FastEmbedProvider) Dimension() int { return 0 }

func (p *FastEmbedProvider) Close() error { return nil }
