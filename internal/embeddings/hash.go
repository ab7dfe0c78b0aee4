package embeddings

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// DefaultHashDimension is the vector size of the hash provider when none is
// configured.
const DefaultHashDimension = 256

// HashProvider is a deterministic feature-hashing embedder. Each lowercased
// word token is hashed into a bucket; the result is L2-normalized, so texts
// sharing words have high cosine similarity. It needs no model and gives
// identical vectors across runs.
type HashProvider struct {
	dimension int
}

// NewHashProvider creates a hash embedder. dimension <= 0 selects
// DefaultHashDimension.
func NewHashProvider(dimension int) *HashProvider {
	if dimension <= 0 {
		dimension = DefaultHashDimension
	}
	return &HashProvider{dimension: dimension}
}

// EmbedDocuments implements Provider.
func (h *HashProvider) EmbedDocuments(ctx context.Context, texts []string) (_ [][]float32, err error) {
	call := track("hash", "fnv", opDocuments, texts...)
	defer func() { call.done(ctx, err) }()

	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = h.vector(t)
	}
	return out, nil
}

// EmbedQuery implements Provider.
func (h *HashProvider) EmbedQuery(ctx context.Context, text string) (_ []float32, err error) {
	call := track("hash", "fnv", opQuery, text)
	defer func() { call.done(ctx, err) }()

	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return h.vector(text), nil
}

func (h *HashProvider) vector(text string) []float32 {
	vec := make([]float32, h.dimension)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		f := fnv.New64a()
		_, _ = f.Write([]byte(tok))
		sum := f.Sum64()
		idx := int(sum % uint64(h.dimension))
		// The top bit picks the sign so unrelated tokens partly cancel.
		if sum>>63 == 1 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		// Token-free text still needs a unit vector for cosine math.
		vec[0] = 1
		return vec
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}

// Dimension implements Provider.
func (h *HashProvider) Dimension() int { return h.dimension }

// Close implements Provider.
func (h *HashProvider) Close() error { return nil }
