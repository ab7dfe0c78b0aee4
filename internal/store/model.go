package store

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"time"
)

// Disposition is the content category of a document.
type Disposition string

// Dispositions. ManPage persists as "man-page".
const (
	Codebase       Disposition = "Codebase"
	PlanBrainstorm Disposition = "Plan/Brainstorm"
	Idea           Disposition = "Idea"
	Note           Disposition = "Note"
	ManPage        Disposition = "man-page"
	NoDisposition  Disposition = "None"
)

// Dispositions lists every valid disposition.
var Dispositions = []Disposition{Codebase, PlanBrainstorm, Idea, Note, ManPage, NoDisposition}

// ParseDisposition accepts the persisted literal or a loose alias
// ("plan", "brainstorm", "manpage", "code", ...), case-insensitively.
func ParseDisposition(s string) (Disposition, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "codebase", "code":
		return Codebase, true
	case "plan/brainstorm", "plan", "brainstorm":
		return PlanBrainstorm, true
	case "idea", "ideas":
		return Idea, true
	case "note", "notes":
		return Note, true
	case "man-page", "manpage", "man", "manpages":
		return ManPage, true
	case "none", "":
		return NoDisposition, true
	}
	return "", false
}

// Collection kinds.
const (
	KindProject       = "project"
	KindGlobal        = "global"
	KindConversations = "conversations"
)

// Well-known collection names.
const (
	ConversationsCollection = "conversations"
	GlobalFilesCollection   = "global_files"
	ProjectPrefix           = "project_"
)

// Persisted metadata keys.
const (
	MetaDisposition    = "disposition"
	MetaType           = "type"
	MetaCreated        = "created"
	MetaCreatedAt      = "created_at"
	MetaFilePath       = "file_path"
	MetaLanguage       = "language"
	MetaLines          = "lines"
	MetaSize           = "size"
	MetaProject        = "project"
	MetaSource         = "source"
	MetaConversationID = "conversation_id"
	MetaTitle          = "title"
	MetaMessageCount   = "message_count"
	MetaImported       = "imported"
	MetaDocumentType   = "document_type"
	MetaDescription    = "description"
	MetaName           = "name"
)

// TypeConversation is the type tag of imported conversations.
const TypeConversation = "conversation"

// ProjectCollection returns the collection name for a project.
func ProjectCollection(project string) string {
	return ProjectPrefix + project
}

// ProjectName strips the project prefix, reporting whether it was present.
func ProjectName(collection string) (string, bool) {
	if !strings.HasPrefix(collection, ProjectPrefix) {
		return "", false
	}
	return strings.TrimPrefix(collection, ProjectPrefix), true
}

// KindFor derives a collection's kind from its name.
func KindFor(name string) string {
	switch {
	case strings.HasPrefix(name, ProjectPrefix):
		return KindProject
	case name == ConversationsCollection:
		return KindConversations
	default:
		return KindGlobal
	}
}

// HashID returns prefix + md5(key) in hex. All document ids are built this
// way so re-processing the same key replaces the stored record.
func HashID(prefix, key string) string {
	sum := md5.Sum([]byte(key))
	return prefix + hex.EncodeToString(sum[:])
}

// Timestamp formats t the way created/imported metadata is stored.
func Timestamp(t time.Time) string {
	return t.Format(time.RFC3339)
}

// Collection is a named container of documents.
type Collection struct {
	Name     string            `json:"name"`
	Kind     string            `json:"kind"`
	Metadata map[string]string `json:"metadata"`
	Created  time.Time         `json:"created"`
}

// Document is a document to write.
type Document struct {
	ID       string
	Content  string
	Metadata map[string]string
}

// Batch is the full content of one collection as parallel slices.
type Batch struct {
	IDs       []string
	Contents  []string
	Metadatas []map[string]string
}

// Len returns the number of documents.
func (b Batch) Len() int { return len(b.IDs) }

// Candidate is one similarity hit.
type Candidate struct {
	ID       string
	Content  string
	Metadata map[string]string
	Distance float32
}

// Relevance converts distance to a score clamped to [0, 1].
func (c Candidate) Relevance() float64 {
	r := 1 - float64(c.Distance)
	switch {
	case r < 0:
		return 0
	case r > 1:
		return 1
	}
	return r
}
