// Package catalog is the durable record of collections and their documents.
//
// The similarity index only answers nearest-neighbour queries; everything
// that must be listed, counted or scanned (collection metadata, document
// content, insertion order) lives here in SQLite.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/m5trevino/peacock-mem/internal/catalog/migrations"
)

// ErrNotFound is returned when a collection or document does not exist.
var ErrNotFound = errors.New("not found")

// DBFile is the catalog file name inside the store directory.
const DBFile = "catalog.db"

// Collection is a named container of documents.
type Collection struct {
	Name      string
	Kind      string
	Metadata  map[string]string
	CreatedAt time.Time
}

// Record is one stored document.
type Record struct {
	ID        string
	Content   string
	Metadata  map[string]string
	UpdatedAt time.Time
}

// Catalog is a SQLite-backed collection and document store.
type Catalog struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the catalog in dir.
func Open(dir string) (*Catalog, error) {
	if dir == "" {
		return nil, errors.New("catalog directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating catalog directory: %w", err)
	}

	path := filepath.Join(dir, DBFile)
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}

	c := &Catalog{db: db, path: path}
	if err := c.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return c, nil
}

// Close closes the database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Path returns the database file path.
func (c *Catalog) Path() string {
	return c.path
}

// Ping checks the database connection.
func (c *Catalog) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Catalog) migrate(fsys fs.FS) error {
	_, err := c.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := c.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations: %w", err)
	}
	var ups []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".up.sql") {
			ups = append(ups, e.Name())
		}
	}
	sort.Strings(ups)

	for _, name := range ups {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil || version <= current {
			continue
		}
		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := c.db.Exec(string(body)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := c.db.Exec("INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
			version, formatTime(time.Now())); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}
	return nil
}

// EnsureCollection returns the named collection, creating it with kind and
// meta when absent. created reports whether a row was inserted. Metadata of
// an existing collection is left untouched.
func (c *Catalog) EnsureCollection(ctx context.Context, name, kind string, meta map[string]string) (coll Collection, created bool, err error) {
	metaJSON, err := encodeMeta(meta)
	if err != nil {
		return Collection{}, false, err
	}
	res, err := c.db.ExecContext(ctx,
		`INSERT INTO collections (name, kind, metadata, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(name) DO NOTHING`,
		name, kind, metaJSON, formatTime(time.Now()))
	if err != nil {
		return Collection{}, false, fmt.Errorf("creating collection %s: %w", name, err)
	}
	n, _ := res.RowsAffected()

	coll, err = c.GetCollection(ctx, name)
	return coll, n > 0, err
}

// GetCollection loads one collection.
func (c *Catalog) GetCollection(ctx context.Context, name string) (Collection, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT name, kind, metadata, created_at FROM collections WHERE name = ?`, name)
	coll, err := scanCollection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Collection{}, fmt.Errorf("collection %s: %w", name, ErrNotFound)
	}
	return coll, err
}

// ListCollections returns every collection sorted by name.
func (c *Catalog) ListCollections(ctx context.Context) ([]Collection, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT name, kind, metadata, created_at FROM collections ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	defer rows.Close()

	var out []Collection
	for rows.Next() {
		coll, err := scanCollection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, coll)
	}
	return out, rows.Err()
}

// DeleteCollection removes a collection and, by cascade, its documents.
func (c *Catalog) DeleteCollection(ctx context.Context, name string) (bool, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM collections WHERE name = ?`, name)
	if err != nil {
		return false, fmt.Errorf("deleting collection %s: %w", name, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// UpsertDocument writes or replaces a document. The collection must exist.
// A replaced document keeps its original position in Documents order.
func (c *Catalog) UpsertDocument(ctx context.Context, collection string, rec Record) error {
	metaJSON, err := encodeMeta(rec.Metadata)
	if err != nil {
		return err
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, content, metadata, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(collection, id) DO UPDATE SET
			content = excluded.content,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at`,
		collection, rec.ID, rec.Content, metaJSON, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("upserting %s/%s: %w", collection, rec.ID, err)
	}
	return nil
}

// Documents returns every document of a collection in insertion order.
func (c *Catalog) Documents(ctx context.Context, collection string) ([]Record, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, content, metadata, updated_at FROM documents WHERE collection = ? ORDER BY rowid`,
		collection)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", collection, err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// GetDocuments loads the given ids. Missing ids are absent from the map.
func (c *Catalog) GetDocuments(ctx context.Context, collection string, ids []string) (map[string]Record, error) {
	out := make(map[string]Record, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	args := make([]any, 0, len(ids)+1)
	args = append(args, collection)
	for _, id := range ids {
		args = append(args, id)
	}
	query := `SELECT id, content, metadata, updated_at FROM documents
		WHERE collection = ? AND id IN (?` + strings.Repeat(",?", len(ids)-1) + `)`

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", collection, err)
	}
	defer rows.Close()

	recs, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	for _, r := range recs {
		out[r.ID] = r
	}
	return out, nil
}

// DeleteDocument removes one document, reporting whether it existed.
func (c *Catalog) DeleteDocument(ctx context.Context, collection, id string) (bool, error) {
	res, err := c.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return false, fmt.Errorf("deleting %s/%s: %w", collection, id, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Count returns the number of documents in a collection.
func (c *Catalog) Count(ctx context.Context, collection string) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE collection = ?`, collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting %s: %w", collection, err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCollection(s scanner) (Collection, error) {
	var (
		coll            Collection
		metaJSON, stamp string
	)
	if err := s.Scan(&coll.Name, &coll.Kind, &metaJSON, &stamp); err != nil {
		return Collection{}, err
	}
	meta, err := decodeMeta(metaJSON)
	if err != nil {
		return Collection{}, fmt.Errorf("collection %s: %w", coll.Name, err)
	}
	coll.Metadata = meta
	coll.CreatedAt = parseTime(stamp)
	return coll, nil
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var out []Record
	for rows.Next() {
		var (
			rec             Record
			metaJSON, stamp string
		)
		if err := rows.Scan(&rec.ID, &rec.Content, &metaJSON, &stamp); err != nil {
			return nil, err
		}
		meta, err := decodeMeta(metaJSON)
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", rec.ID, err)
		}
		rec.Metadata = meta
		rec.UpdatedAt = parseTime(stamp)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func encodeMeta(meta map[string]string) (string, error) {
	if len(meta) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("marshalling metadata: %w", err)
	}
	return string(b), nil
}

func decodeMeta(s string) (map[string]string, error) {
	meta := map[string]string{}
	if s == "" {
		return meta, nil
	}
	if err := json.Unmarshal([]byte(s), &meta); err != nil {
		return nil, fmt.Errorf("unmarshalling metadata: %w", err)
	}
	return meta, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
