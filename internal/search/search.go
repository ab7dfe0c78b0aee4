// Package search ranks and lists documents across every collection.
//
// Fan-out is sequential over collections sorted by name. A collection that
// fails is logged and skipped; the rest still contribute. Merged results are
// stable-sorted by relevance, so ties keep collection then store order.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/m5trevino/peacock-mem/internal/store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("peacock.search")

// ErrUnknownCategory is returned for a category with no predicate.
var ErrUnknownCategory = errors.New("unknown category")

// MaxPerCollection caps each collection's share of an unscoped search.
const MaxPerCollection = 5

const (
	searchPreviewLen  = 150
	projectPreviewLen = 200
)

// Store is the read side of the collection store.
type Store interface {
	ListCollections(ctx context.Context) ([]store.Collection, error)
	GetAll(ctx context.Context, collection string) (store.Batch, error)
	QuerySimilar(ctx context.Context, collection, text string, topK int) ([]store.Candidate, error)
}

// SearchResult is one ranked hit.
type SearchResult struct {
	Collection string            `json:"collection"`
	ID         string            `json:"id"`
	Document   string            `json:"document"`
	Metadata   map[string]string `json:"metadata"`
	Relevance  float64           `json:"relevance"`
	Preview    string            `json:"preview"`
}

// Category names a document class.
type Category string

// Categories.
const (
	Codebase      Category = "codebase"
	Conversations Category = "conversations"
	Ideas         Category = "ideas"
	Brainstorm    Category = "brainstorm"
	Notes         Category = "notes"
	Manpages      Category = "manpages"
	Projects      Category = "projects"
)

// Categories lists every category in display order.
var Categories = []Category{Codebase, Conversations, Ideas, Brainstorm, Notes, Manpages, Projects}

func dispositionIs(d store.Disposition) func(map[string]string) bool {
	return func(m map[string]string) bool { return m[store.MetaDisposition] == string(d) }
}

var predicates = map[Category]func(map[string]string) bool{
	Codebase:      dispositionIs(store.Codebase),
	Conversations: func(m map[string]string) bool { return m[store.MetaType] == store.TypeConversation },
	Ideas:         dispositionIs(store.Idea),
	Brainstorm:    dispositionIs(store.PlanBrainstorm),
	Notes:         dispositionIs(store.Note),
	Manpages:      dispositionIs(store.ManPage),
	Projects:      func(m map[string]string) bool { return m[store.MetaProject] != "" },
}

// ParseCategory accepts a category name or its singular form.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := predicates[c]; ok {
		return c, nil
	}
	switch c {
	case "code":
		return Codebase, nil
	case "conversation", "chats":
		return Conversations, nil
	case "idea":
		return Ideas, nil
	case "plan", "plans":
		return Brainstorm, nil
	case "note":
		return Notes, nil
	case "manpage", "man-page", "man":
		return Manpages, nil
	case "project":
		return Projects, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// Matches reports whether metadata satisfies the category predicate.
func (c Category) Matches(meta map[string]string) bool {
	p, ok := predicates[c]
	return ok && p(meta)
}

// Service answers searches, stats and listings over a Store.
type Service struct {
	store   Store
	logger  *zap.Logger
	metrics *metrics
	now     func() time.Time
}

// NewService creates a Service. A nil logger disables logging.
func NewService(s Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: s, logger: logger, metrics: newMetrics(logger), now: time.Now}
}

// Preview truncates s to n runes, appending "..." when anything was cut.
func Preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func (s *Service) collections(ctx context.Context) []store.Collection {
	colls, err := s.store.ListCollections(ctx)
	if err != nil {
		s.logger.Warn("listing collections failed", zap.Error(err))
		return nil
	}
	return colls
}

// fanOut queries every collection for k candidates and keeps those accepted
// by keep (all when keep is nil), in collection order.
func (s *Service) fanOut(ctx context.Context, query string, k int, keep func(map[string]string) bool) []SearchResult {
	var out []SearchResult
	for _, c := range s.collections(ctx) {
		cands, err := s.store.QuerySimilar(ctx, c.Name, query, k)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				s.logger.Warn("collection query failed", zap.String("collection", c.Name), zap.Error(err))
			}
			continue
		}
		for _, cand := range cands {
			if keep != nil && !keep(cand.Metadata) {
				continue
			}
			out = append(out, SearchResult{
				Collection: c.Name,
				ID:         cand.ID,
				Document:   cand.Content,
				Metadata:   cand.Metadata,
				Relevance:  cand.Relevance(),
				Preview:    Preview(cand.Content, searchPreviewLen),
			})
		}
	}
	return out
}

func rank(results []SearchResult, limit int) []SearchResult {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Relevance > results[j].Relevance
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// SearchAll searches every collection, taking at most min(limit, 5) hits
// from each.
func (s *Service) SearchAll(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	ctx, span := tracer.Start(ctx, "Search.SearchAll")
	defer span.End()
	span.SetAttributes(attribute.Int("limit", limit))

	if limit <= 0 {
		return nil, nil
	}
	results := rank(s.fanOut(ctx, query, min(limit, MaxPerCollection), nil), limit)
	s.metrics.record(ctx, "all", len(results))
	return results, nil
}

// SearchByType searches every collection for limit hits each and keeps the
// ones in category.
func (s *Service) SearchByType(ctx context.Context, query string, category Category, limit int) ([]SearchResult, error) {
	ctx, span := tracer.Start(ctx, "Search.SearchByType")
	defer span.End()
	span.SetAttributes(attribute.String("category", string(category)), attribute.Int("limit", limit))

	pred, ok := predicates[category]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	if limit <= 0 {
		return nil, nil
	}
	results := rank(s.fanOut(ctx, query, limit, pred), limit)
	s.metrics.record(ctx, string(category), len(results))
	return results, nil
}

// SearchCategories runs a type-scoped search per category with an equal
// share of limit (at least one each) and merges the results.
func (s *Service) SearchCategories(ctx context.Context, query string, categories []Category, limit int) ([]SearchResult, error) {
	if len(categories) == 0 {
		return s.SearchAll(ctx, query, limit)
	}
	for _, c := range categories {
		if _, ok := predicates[c]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, c)
		}
	}
	if limit <= 0 {
		return nil, nil
	}
	per := max(limit/len(categories), 1)

	var merged []SearchResult
	for _, c := range categories {
		r, err := s.SearchByType(ctx, query, c, per)
		if err != nil {
			return nil, err
		}
		merged = append(merged, r...)
	}
	return rank(merged, limit), nil
}
