package importer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/m5trevino/peacock-mem/internal/store"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// DefaultMaxFileSize bounds a single export file.
const DefaultMaxFileSize = 512 << 20

// Writer is the part of the store an import writes through.
type Writer interface {
	EnsureCollection(ctx context.Context, name string, meta map[string]string) (store.Collection, error)
	Upsert(ctx context.Context, collection, id, content string, meta map[string]string) error
	UpsertBatch(ctx context.Context, collection string, docs []store.Document) error
}

// FileResult reports the import of one file.
type FileResult struct {
	Path              string      `json:"path"`
	Format            Format      `json:"format"`
	Written           int         `json:"written"`
	ConversationsSeen int         `json:"conversations_seen"`
	MessagesSeen      int         `json:"messages_seen"`
	ProjectsCreated   int         `json:"projects_created"`
	DocumentsCreated  int         `json:"documents_created"`
	Failures          []ItemError `json:"failures,omitempty"`
	Err               error       `json:"-"`
}

// Totals aggregates counters across files.
type Totals struct {
	Written           int `json:"written"`
	ConversationsSeen int `json:"conversations_seen"`
	MessagesSeen      int `json:"messages_seen"`
	ProjectsCreated   int `json:"projects_created"`
	DocumentsCreated  int `json:"documents_created"`
	ItemFailures      int `json:"item_failures"`
}

// FailedFile names a file that imported nothing.
type FailedFile struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// BatchSummary reports a multi-file import.
type BatchSummary struct {
	Files     []FileResult `json:"files"`
	Succeeded int          `json:"succeeded"`
	Failed    []FailedFile `json:"failed,omitempty"`
	Totals    Totals       `json:"totals"`
}

// Service imports export files into the store.
type Service struct {
	writer      Writer
	registry    Registry
	logger      *zap.Logger
	maxFileSize int64
	metrics     *metrics
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMaxFileSize overrides DefaultMaxFileSize.
func WithMaxFileSize(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxFileSize = n
		}
	}
}

// NewService creates an import service. A nil registry uses DefaultRegistry
// with enumeration order.
func NewService(w Writer, reg Registry, opts ...Option) *Service {
	if reg == nil {
		reg = DefaultRegistry(OrderEnumeration, nil)
	}
	s := &Service{
		writer:      w,
		registry:    reg,
		logger:      zap.NewNop(),
		maxFileSize: DefaultMaxFileSize,
	}
	for _, o := range opts {
		o(s)
	}
	s.metrics = newMetrics(s.logger)
	return s
}

// ImportBytes detects, normalizes and writes one export. name labels the
// input in results and logs.
//
// Record-level failures are collected in FileResult.Failures. An error is
// returned only when the input cannot be imported at all: invalid JSON, an
// unknown format, or nothing written.
func (s *Service) ImportBytes(ctx context.Context, name string, data []byte) (FileResult, error) {
	ctx, span := tracer.Start(ctx, "Importer.ImportBytes")
	defer span.End()
	span.SetAttributes(attribute.String("file", name), attribute.Int("bytes", len(data)))

	start := time.Now()
	res := FileResult{Path: name}
	defer func() {
		s.metrics.record(ctx, res, time.Since(start))
		if res.Err != nil {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, res.Err.Error())
		}
	}()

	fail := func(err error) (FileResult, error) {
		res.Err = err
		return res, err
	}

	if !gjson.ValidBytes(data) {
		return fail(fmt.Errorf("%s: %w", name, ErrInvalidJSON))
	}
	v := gjson.ParseBytes(data)
	res.Format = Detect(v)
	span.SetAttributes(attribute.String("format", res.Format.String()))

	norm, ok := s.registry.Lookup(res.Format)
	if !ok {
		s.logger.Warn("unrecognized export", zap.String("file", name), zap.Strings("suggestions", Analyze(v).Suggestions))
		return fail(fmt.Errorf("%s: %w", name, ErrUnknownFormat))
	}

	out, err := norm.Normalize(ctx, v)
	if err != nil {
		return fail(fmt.Errorf("normalizing %s: %w", name, err))
	}
	res.ConversationsSeen = out.ConversationsSeen
	res.MessagesSeen = out.MessagesSeen
	res.ProjectsCreated = out.ProjectsCreated
	res.DocumentsCreated = out.DocumentsCreated
	res.Failures = out.Failures

	s.write(ctx, out, &res)

	for _, f := range res.Failures {
		s.logger.Warn("import item failed", zap.String("file", name), zap.Int("index", f.Index),
			zap.String("id", f.ID), zap.Error(f.Err))
	}
	s.logger.Info("imported export",
		zap.String("file", name),
		zap.Stringer("format", res.Format),
		zap.Int("written", res.Written),
		zap.Int("conversations", res.ConversationsSeen),
		zap.Int("messages", res.MessagesSeen),
		zap.Int("projects", res.ProjectsCreated),
		zap.Int("failures", len(res.Failures)),
	)

	if res.Written == 0 && res.ProjectsCreated == 0 {
		return fail(fmt.Errorf("%s: %w", name, ErrNothingImported))
	}
	return res, nil
}

// write creates declared collections, then upserts items grouped by
// collection in first-seen order. When a group's batch is rejected its items
// are retried one by one, so only the documents that fail individually
// become ItemErrors and drop out of the counters.
func (s *Service) write(ctx context.Context, out Result, res *FileResult) {
	broken := make(map[string]error)
	for i, c := range out.Collections {
		if _, err := s.writer.EnsureCollection(ctx, c.Name, c.Metadata); err != nil {
			broken[c.Name] = err
			res.ProjectsCreated--
			res.Failures = append(res.Failures, ItemError{Index: i, ID: c.Name, Err: err})
		}
	}

	var order []string
	groups := make(map[string][]Item)
	for _, it := range out.Items {
		if _, seen := groups[it.Collection]; !seen {
			order = append(order, it.Collection)
		}
		groups[it.Collection] = append(groups[it.Collection], it)
	}

	for _, coll := range order {
		items := groups[coll]
		if err := broken[coll]; err != nil {
			for i, it := range items {
				s.dropItem(res, i, it, err)
			}
			continue
		}

		docs := make([]store.Document, len(items))
		for i, it := range items {
			docs[i] = it.Document
		}
		err := s.writer.UpsertBatch(ctx, coll, docs)
		if err == nil {
			res.Written += len(docs)
			continue
		}
		s.logger.Debug("batch rejected, retrying items one by one",
			zap.String("collection", coll), zap.Int("items", len(items)), zap.Error(err))
		for i, it := range items {
			if err := s.writer.Upsert(ctx, coll, it.ID, it.Content, it.Metadata); err != nil {
				s.dropItem(res, i, it, err)
				continue
			}
			res.Written++
		}
	}
}

// dropItem records a failed item and takes it out of the seen/created totals.
func (s *Service) dropItem(res *FileResult, index int, it Item, err error) {
	res.Failures = append(res.Failures, ItemError{Index: index, ID: it.ID, Err: err})
	switch res.Format {
	case ClaudeConversations, ChatGPTConversations:
		res.ConversationsSeen--
		res.MessagesSeen -= it.Messages
	case ClaudeProjects:
		res.DocumentsCreated--
	}
}

// ImportFile reads and imports one file.
func (s *Service) ImportFile(ctx context.Context, path string) (FileResult, error) {
	data, err := s.readFile(path)
	if err != nil {
		return FileResult{Path: path, Err: err}, err
	}
	return s.ImportBytes(ctx, path, data)
}

// AnalyzeFile reports the structure of a file without importing it.
func (s *Service) AnalyzeFile(path string) (Analysis, error) {
	data, err := s.readFile(path)
	if err != nil {
		return Analysis{}, err
	}
	if !gjson.ValidBytes(data) {
		return Analysis{}, fmt.Errorf("%s: %w", path, ErrInvalidJSON)
	}
	return Analyze(gjson.ParseBytes(data)), nil
}

func (s *Service) readFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > s.maxFileSize {
		return nil, fmt.Errorf("%s (%d bytes, limit %d): %w", path, info.Size(), s.maxFileSize, ErrFileTooLarge)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

// ImportFiles imports each path in turn. The summary is always returned; the
// error is non-nil only when every file failed.
func (s *Service) ImportFiles(ctx context.Context, paths []string) (BatchSummary, error) {
	var sum BatchSummary
	var errs []error
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		r, err := s.ImportFile(ctx, p)
		sum.Files = append(sum.Files, r)
		sum.Totals.Written += r.Written
		sum.Totals.ConversationsSeen += r.ConversationsSeen
		sum.Totals.MessagesSeen += r.MessagesSeen
		sum.Totals.ProjectsCreated += r.ProjectsCreated
		sum.Totals.DocumentsCreated += r.DocumentsCreated
		sum.Totals.ItemFailures += len(r.Failures)
		if err != nil {
			errs = append(errs, err)
			sum.Failed = append(sum.Failed, FailedFile{Path: p, Error: err.Error()})
			continue
		}
		sum.Succeeded++
	}
	if len(paths) > 0 && sum.Succeeded == 0 {
		return sum, fmt.Errorf("all %d files failed: %w", len(paths), errors.Join(errs...))
	}
	return sum, nil
}
