// Package files adds individual files and directory trees to the store.
//
// Each file becomes one document keyed by its absolute path, so adding the
// same file again replaces the stored copy.
package files

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/m5trevino/peacock-mem/internal/ignore"
	"github.com/m5trevino/peacock-mem/internal/store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("peacock.files")

var (
	// ErrBinaryFile is returned for files that do not look like text.
	ErrBinaryFile = errors.New("binary file")

	// ErrInvalidOptions is returned for a bad disposition or include pattern.
	ErrInvalidOptions = errors.New("invalid add options")
)

// DefaultMaxFileSize bounds a single added file.
const DefaultMaxFileSize = 10 << 20

// Writer is the part of the store files are written through.
type Writer interface {
	Upsert(ctx context.Context, collection, id, content string, meta map[string]string) error
}

// Options controls how files are added.
type Options struct {
	Disposition store.Disposition
	// Project routes documents to project_<Project>; empty means global_files.
	Project string
	// GitProject names the project after the enclosing git repository when
	// Project is empty.
	GitProject bool
	// Include keeps only files whose path relative to the added directory
	// matches one of these globs. Empty keeps everything.
	Include []string
}

// Added describes one stored file.
type Added struct {
	Path       string `json:"path"`
	ID         string `json:"id"`
	Collection string `json:"collection"`
	Language   string `json:"language"`
	Lines      int    `json:"lines"`
	Size       int    `json:"size"`
}

// Failed names a file that could not be added.
type Failed struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// Report summarizes an AddPaths call.
type Report struct {
	Added   []Added  `json:"added"`
	Failed  []Failed `json:"failed,omitempty"`
	Skipped int      `json:"skipped"`
}

// Ingester writes files into the store.
type Ingester struct {
	writer  Writer
	logger  *zap.Logger
	now     func() time.Time
	maxSize int64
}

// NewIngester creates an Ingester. A nil logger disables logging.
func NewIngester(w Writer, logger *zap.Logger) *Ingester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingester{writer: w, logger: logger, now: time.Now, maxSize: DefaultMaxFileSize}
}

// Collection returns the collection a project routes to.
func Collection(project string) string {
	if project == "" {
		return store.GlobalFilesCollection
	}
	return store.ProjectCollection(project)
}

// AddFile stores one file.
func (in *Ingester) AddFile(ctx context.Context, path string, opts Options) (Added, error) {
	ctx, span := tracer.Start(ctx, "Files.AddFile")
	defer span.End()

	abs, err := filepath.Abs(path)
	if err != nil {
		return Added{}, fmt.Errorf("resolving %s: %w", path, err)
	}
	span.SetAttributes(attribute.String("path", abs))

	opts, err = in.resolve(abs, opts)
	if err != nil {
		return Added{}, err
	}
	return in.addFile(ctx, abs, opts)
}

func (in *Ingester) resolve(path string, opts Options) (Options, error) {
	if opts.Disposition == "" {
		opts.Disposition = store.NoDisposition
	}
	d, ok := store.ParseDisposition(string(opts.Disposition))
	if !ok {
		return opts, fmt.Errorf("%w: unknown disposition %q", ErrInvalidOptions, opts.Disposition)
	}
	opts.Disposition = d
	if opts.Project == "" && opts.GitProject {
		name, err := RepoName(path)
		if err != nil {
			return opts, err
		}
		opts.Project = name
	}
	return opts, nil
}

func (in *Ingester) addFile(ctx context.Context, abs string, opts Options) (Added, error) {
	info, err := os.Stat(abs)
	if err != nil {
		return Added{}, fmt.Errorf("stat %s: %w", abs, err)
	}
	if info.IsDir() {
		return Added{}, fmt.Errorf("%s is a directory", abs)
	}
	if info.Size() > in.maxSize {
		return Added{}, fmt.Errorf("%s is %d bytes, limit %d", abs, info.Size(), in.maxSize)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return Added{}, fmt.Errorf("reading %s: %w", abs, err)
	}
	if bytes.IndexByte(data, 0) >= 0 {
		return Added{}, fmt.Errorf("%s: %w", abs, ErrBinaryFile)
	}
	content := strings.ToValidUTF8(string(data), "")

	a := Added{
		Path:       abs,
		ID:         store.HashID("file_", abs),
		Collection: Collection(opts.Project),
		Language:   Language(abs),
		Lines:      strings.Count(content, "\n") + 1,
		Size:       len(content),
	}
	meta := map[string]string{
		store.MetaFilePath:    abs,
		store.MetaDisposition: string(opts.Disposition),
		store.MetaType:        "file",
		store.MetaCreated:     store.Timestamp(in.now()),
		store.MetaLines:       strconv.Itoa(a.Lines),
		store.MetaSize:        strconv.Itoa(a.Size),
		store.MetaLanguage:    a.Language,
	}
	if opts.Project != "" {
		meta[store.MetaProject] = opts.Project
	}

	if err := in.writer.Upsert(ctx, a.Collection, a.ID, content, meta); err != nil {
		return Added{}, fmt.Errorf("storing %s: %w", abs, err)
	}
	in.logger.Debug("added file",
		zap.String("path", abs),
		zap.String("collection", a.Collection),
		zap.String("disposition", string(opts.Disposition)),
	)
	return a, nil
}

// AddPaths stores files and walks directories. Hidden files, ignored paths
// and files outside the include globs are skipped. Per-file failures are
// collected in the report.
func (in *Ingester) AddPaths(ctx context.Context, paths []string, opts Options) (Report, error) {
	ctx, span := tracer.Start(ctx, "Files.AddPaths")
	defer span.End()

	includes := make([]glob.Glob, 0, len(opts.Include))
	for _, p := range opts.Include {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return Report{}, fmt.Errorf("%w: include pattern %q: %v", ErrInvalidOptions, p, err)
		}
		includes = append(includes, g)
	}

	var rep Report
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			rep.Failed = append(rep.Failed, Failed{Path: p, Error: err.Error()})
			continue
		}
		resolved, err := in.resolve(abs, opts)
		if err != nil {
			if errors.Is(err, ErrInvalidOptions) {
				return rep, err
			}
			rep.Failed = append(rep.Failed, Failed{Path: abs, Error: err.Error()})
			continue
		}

		info, err := os.Stat(abs)
		if err != nil {
			rep.Failed = append(rep.Failed, Failed{Path: abs, Error: err.Error()})
			continue
		}
		if !info.IsDir() {
			in.addOne(ctx, abs, resolved, &rep)
			continue
		}
		if err := in.walk(ctx, abs, resolved, includes, &rep); err != nil {
			return rep, err
		}
	}

	span.SetAttributes(attribute.Int("added", len(rep.Added)), attribute.Int("failed", len(rep.Failed)))
	in.logger.Info("added files",
		zap.Int("added", len(rep.Added)),
		zap.Int("failed", len(rep.Failed)),
		zap.Int("skipped", rep.Skipped),
	)
	return rep, nil
}

func (in *Ingester) addOne(ctx context.Context, path string, opts Options, rep *Report) {
	a, err := in.addFile(ctx, path, opts)
	if err != nil {
		in.logger.Warn("add file failed", zap.String("path", path), zap.Error(err))
		rep.Failed = append(rep.Failed, Failed{Path: path, Error: err.Error()})
		return
	}
	rep.Added = append(rep.Added, a)
}

func (in *Ingester) walk(ctx context.Context, root string, opts Options, includes []glob.Glob, rep *Report) error {
	ign, err := ignore.Load(root)
	if err != nil {
		return fmt.Errorf("loading ignore rules for %s: %w", root, err)
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			rep.Failed = append(rep.Failed, Failed{Path: path, Error: err.Error()})
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		hidden := strings.HasPrefix(d.Name(), ".")
		if d.IsDir() {
			if hidden || ign.Match(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || hidden || ign.Match(rel, false) || !included(includes, rel) {
			rep.Skipped++
			return nil
		}
		in.addOne(ctx, path, opts, rep)
		return nil
	})
}

func included(includes []glob.Glob, rel string) bool {
	if len(includes) == 0 {
		return true
	}
	rel = filepath.ToSlash(rel)
	base := filepath.Base(rel)
	for _, g := range includes {
		if g.Match(rel) || g.Match(base) {
			return true
		}
	}
	return false
}
