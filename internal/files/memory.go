package files

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/m5trevino/peacock-mem/internal/store"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// MemorySource is the file_path recorded for memories that did not come
// from a file.
const MemorySource = "mcp_input"

// ErrEmptyContent is returned when a memory has no content.
var ErrEmptyContent = errors.New("content is required")

// Memory is free text added directly rather than read from disk.
type Memory struct {
	Content string
	// Disposition defaults to Note.
	Disposition store.Disposition
	Project     string
	// Source is stored as file_path; empty means MemorySource.
	Source string
}

// AddMemory stores a piece of text. The id is derived from the target
// collection and the content, so adding the same text twice is a no-op.
func (in *Ingester) AddMemory(ctx context.Context, m Memory) (Added, error) {
	ctx, span := tracer.Start(ctx, "Files.AddMemory")
	defer span.End()

	if strings.TrimSpace(m.Content) == "" {
		return Added{}, ErrEmptyContent
	}
	if m.Disposition == "" {
		m.Disposition = store.Note
	}
	d, ok := store.ParseDisposition(string(m.Disposition))
	if !ok {
		return Added{}, fmt.Errorf("%w: unknown disposition %q", ErrInvalidOptions, m.Disposition)
	}
	if m.Source == "" {
		m.Source = MemorySource
	}

	coll := Collection(m.Project)
	span.SetAttributes(attribute.String("collection", coll))
	a := Added{
		Path:       m.Source,
		ID:         store.HashID("memory_", coll+m.Content),
		Collection: coll,
		Language:   Language(m.Source),
		Lines:      strings.Count(m.Content, "\n") + 1,
		Size:       len(m.Content),
	}
	meta := map[string]string{
		store.MetaFilePath:    m.Source,
		store.MetaDisposition: string(d),
		store.MetaType:        "file",
		store.MetaCreated:     store.Timestamp(in.now()),
		store.MetaLines:       strconv.Itoa(a.Lines),
		store.MetaSize:        strconv.Itoa(a.Size),
		store.MetaLanguage:    a.Language,
	}
	if m.Project != "" {
		meta[store.MetaProject] = m.Project
	}
	if err := in.writer.Upsert(ctx, coll, a.ID, m.Content, meta); err != nil {
		return Added{}, fmt.Errorf("storing memory: %w", err)
	}
	in.logger.Debug("added memory", zap.String("collection", coll), zap.String("id", a.ID))
	return a, nil
}
