package search

import (
	"context"
	"strings"

	"github.com/m5trevino/peacock-mem/internal/store"
	"go.uber.org/zap"
)

// ByType counts documents per category.
type ByType struct {
	Codebase      int `json:"codebase"`
	Conversations int `json:"conversations"`
	Ideas         int `json:"ideas"`
	Brainstorm    int `json:"brainstorm"`
	Notes         int `json:"notes"`
	Manpages      int `json:"manpages"`
}

// Stats summarizes the whole store.
type Stats struct {
	TotalCollections int    `json:"total_collections"`
	Projects         int    `json:"projects"`
	TotalDocuments   int    `json:"total_documents"`
	ByType           ByType `json:"by_type"`
}

// classify applies the disposition first and falls back to the
// conversation type tag.
func (b *ByType) classify(meta map[string]string) {
	switch store.Disposition(meta[store.MetaDisposition]) {
	case store.Codebase:
		b.Codebase++
	case store.Idea:
		b.Ideas++
	case store.PlanBrainstorm:
		b.Brainstorm++
	case store.Note:
		b.Notes++
	case store.ManPage:
		b.Manpages++
	default:
		if meta[store.MetaType] == store.TypeConversation {
			b.Conversations++
		}
	}
}

// Stats scans every collection. Collections that cannot be read still count
// toward TotalCollections.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	ctx, span := tracer.Start(ctx, "Search.Stats")
	defer span.End()

	colls := s.collections(ctx)
	st := Stats{TotalCollections: len(colls)}
	for _, c := range colls {
		if strings.HasPrefix(c.Name, store.ProjectPrefix) {
			st.Projects++
		}
		b, err := s.store.GetAll(ctx, c.Name)
		if err != nil {
			s.logger.Warn("reading collection failed", zap.String("collection", c.Name), zap.Error(err))
			continue
		}
		st.TotalDocuments += b.Len()
		for _, m := range b.Metadatas {
			st.ByType.classify(m)
		}
	}
	return st, nil
}
