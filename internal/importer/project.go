package importer

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/m5trevino/peacock-mem/internal/store"
	"github.com/tidwall/gjson"
)

// ProjectNormalizer imports Claude project exports: one collection per
// project, one Plan/Brainstorm document per knowledge document.
type ProjectNormalizer struct {
	now func() time.Time
}

// NewProjectNormalizer creates a ProjectNormalizer. A nil clock uses time.Now.
func NewProjectNormalizer(now func() time.Time) *ProjectNormalizer {
	if now == nil {
		now = time.Now
	}
	return &ProjectNormalizer{now: now}
}

func (n *ProjectNormalizer) Format() Format { return ClaudeProjects }

func projects(v gjson.Result) []gjson.Result {
	var raw []gjson.Result
	switch {
	case v.IsArray():
		raw = v.Array()
	case v.IsObject():
		if p := v.Get("projects"); p.IsArray() {
			raw = p.Array()
		} else {
			raw = []gjson.Result{v}
		}
	}
	out := raw[:0:0]
	for _, p := range raw {
		if p.IsObject() {
			out = append(out, p)
		}
	}
	return out
}

// Normalize declares a collection per project and emits its documents. A
// failing document is recorded and the rest of the project continues.
func (n *ProjectNormalizer) Normalize(ctx context.Context, v gjson.Result) (Result, error) {
	res := Result{Format: ClaudeProjects}
	imported := store.Timestamp(n.now())

	for pi, proj := range projects(v) {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		name := nonEmpty(proj, "name", "project_name")
		if name == "" {
			sum := md5.Sum([]byte(proj.Raw))
			name = "project_" + hex.EncodeToString(sum[:])[:12]
		}
		created := nonEmpty(proj, "created_at")
		if created == "" {
			created = imported
		}
		collection := store.ProjectCollection(name)
		res.Collections = append(res.Collections, CollectionSpec{
			Name: collection,
			Metadata: map[string]string{
				store.MetaType:        store.KindProject,
				store.MetaName:        name,
				store.MetaDescription: str(proj, "description"),
				store.MetaCreated:     created,
				store.MetaImported:    imported,
			},
		})
		res.ProjectsCreated++

		docs := field(proj, "documents", "knowledge_docs")
		if docs.Exists() && !docs.IsArray() {
			res.Failures = append(res.Failures, ItemError{
				Index: pi, ID: collection,
				Err: fmt.Errorf("documents field is %s, want array", kindOf(docs)),
			})
			continue
		}

		for di, doc := range docs.Array() {
			if !doc.IsObject() {
				continue
			}
			title := nonEmpty(doc, "title", "name")
			if title == "" {
				title = "Untitled Document"
			}
			id := store.HashID("proj_doc_", name+title)

			body := field(doc, "content", "text")
			if body.IsObject() || body.IsArray() {
				res.Failures = append(res.Failures, ItemError{
					Index: di, ID: id,
					Err: fmt.Errorf("document %q content is %s, want string", title, kindOf(body)),
				})
				continue
			}
			content := body.String()
			if content == "" {
				continue
			}

			docType := nonEmpty(doc, "type")
			if docType == "" {
				docType = "document"
			}
			docCreated := nonEmpty(doc, "created_at")
			if docCreated == "" {
				docCreated = created
			}
			res.DocumentsCreated++
			res.Items = append(res.Items, Item{
				Collection: collection,
				Document: store.Document{
					ID:      id,
					Content: content,
					Metadata: map[string]string{
						store.MetaTitle:        title,
						store.MetaType:         "document",
						store.MetaDisposition:  string(store.PlanBrainstorm),
						store.MetaProject:      name,
						store.MetaDocumentType: docType,
						store.MetaCreated:      docCreated,
						store.MetaImported:     imported,
					},
				},
			})
		}
	}
	return res, nil
}
