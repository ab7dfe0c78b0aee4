package search

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/m5trevino/peacock-mem/internal/store"
	"go.uber.org/zap"
)

// Item is one listed document.
type Item struct {
	ID         string            `json:"id"`
	Collection string            `json:"collection"`
	Content    string            `json:"content"`
	Metadata   map[string]string `json:"metadata"`
	Preview    string            `json:"preview"`
	Type       Category          `json:"type,omitempty"`
	// Project is set instead of the document fields when listing projects.
	Project *ProjectSummary `json:"project,omitempty"`
}

// ProjectSummary describes a project collection.
type ProjectSummary struct {
	Name           string `json:"name"`
	CollectionName string `json:"collection_name"`
	Description    string `json:"description"`
	Created        string `json:"created"`
	ItemCount      int    `json:"item_count"`
}

// ProjectContents is every document of one project.
type ProjectContents struct {
	ProjectName string `json:"project_name"`
	Items       []Item `json:"items"`
	Count       int    `json:"count"`
}

// RecentItem is an Item with the timestamp it was selected by.
type RecentItem struct {
	Item
	When time.Time `json:"when"`
}

// ListProjects summarizes every project collection with its item count.
func (s *Service) ListProjects(ctx context.Context) ([]ProjectSummary, error) {
	ctx, span := tracer.Start(ctx, "Search.ListProjects")
	defer span.End()

	var out []ProjectSummary
	for _, c := range s.collections(ctx) {
		name, ok := store.ProjectName(c.Name)
		if !ok {
			continue
		}
		b, err := s.store.GetAll(ctx, c.Name)
		if err != nil {
			s.logger.Warn("reading project failed", zap.String("collection", c.Name), zap.Error(err))
		}
		created := c.Metadata[store.MetaCreated]
		if created == "" && !c.Created.IsZero() {
			created = store.Timestamp(c.Created)
		}
		out = append(out, ProjectSummary{
			Name:           name,
			CollectionName: c.Name,
			Description:    c.Metadata[store.MetaDescription],
			Created:        created,
			ItemCount:      b.Len(),
		})
	}
	return out, nil
}

// ListByType lists every document in category. Projects list as summaries.
func (s *Service) ListByType(ctx context.Context, category Category) ([]Item, error) {
	ctx, span := tracer.Start(ctx, "Search.ListByType")
	defer span.End()

	pred, ok := predicates[category]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}

	if category == Projects {
		projects, err := s.ListProjects(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]Item, len(projects))
		for i := range projects {
			p := projects[i]
			out[i] = Item{ID: p.Name, Collection: p.CollectionName, Type: Projects, Project: &p}
		}
		return out, nil
	}

	var out []Item
	s.scan(ctx, func(coll string, id, content string, meta map[string]string) {
		if pred(meta) {
			out = append(out, Item{
				ID:         id,
				Collection: coll,
				Content:    content,
				Metadata:   meta,
				Preview:    Preview(content, searchPreviewLen),
				Type:       category,
			})
		}
	})
	return out, nil
}

// ProjectContents returns a project's documents with a longer preview. An
// absent project yields an empty result.
func (s *Service) ProjectContents(ctx context.Context, project string) (ProjectContents, error) {
	out := ProjectContents{ProjectName: project, Items: []Item{}}
	coll := store.ProjectCollection(project)
	b, err := s.store.GetAll(ctx, coll)
	if err != nil {
		s.logger.Warn("reading project failed", zap.String("collection", coll), zap.Error(err))
		return out, nil
	}
	for i, id := range b.IDs {
		out.Items = append(out.Items, Item{
			ID:         id,
			Collection: coll,
			Content:    b.Contents[i],
			Metadata:   b.Metadatas[i],
			Preview:    Preview(b.Contents[i], projectPreviewLen),
		})
	}
	out.Count = len(out.Items)
	return out, nil
}

// Recent returns documents whose created (or imported) timestamp falls
// within the last window, newest first. limit <= 0 returns all of them.
func (s *Service) Recent(ctx context.Context, window time.Duration, limit int) ([]RecentItem, error) {
	ctx, span := tracer.Start(ctx, "Search.Recent")
	defer span.End()

	cutoff := s.now().Add(-window)
	var out []RecentItem
	s.scan(ctx, func(coll string, id, content string, meta map[string]string) {
		when, ok := timestampOf(meta)
		if !ok || when.Before(cutoff) {
			return
		}
		out = append(out, RecentItem{
			Item: Item{
				ID:         id,
				Collection: coll,
				Content:    content,
				Metadata:   meta,
				Preview:    Preview(content, searchPreviewLen),
			},
			When: when,
		})
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].When.After(out[j].When) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Service) scan(ctx context.Context, fn func(coll, id, content string, meta map[string]string)) {
	for _, c := range s.collections(ctx) {
		b, err := s.store.GetAll(ctx, c.Name)
		if err != nil {
			s.logger.Warn("reading collection failed", zap.String("collection", c.Name), zap.Error(err))
			continue
		}
		for i, id := range b.IDs {
			fn(c.Name, id, b.Contents[i], b.Metadatas[i])
		}
	}
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05", "2006-01-02"}

func timestampOf(meta map[string]string) (time.Time, bool) {
	for _, key := range []string{store.MetaCreated, store.MetaImported} {
		v := meta[key]
		if v == "" {
			continue
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}
