package importer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/m5trevino/peacock-mem/internal/store"
	"github.com/tidwall/gjson"
)

// Normalizer turns one detected export into store documents.
type Normalizer interface {
	Format() Format
	Normalize(ctx context.Context, v gjson.Result) (Result, error)
}

// Item is one document bound for a collection.
type Item struct {
	Collection string
	store.Document
	// Messages is the number of transcript messages in a conversation item.
	Messages int
}

// CollectionSpec is a collection a normalizer wants created with metadata,
// even when none of its documents survive.
type CollectionSpec struct {
	Name     string
	Metadata map[string]string
}

// Result is the output of one normalization.
type Result struct {
	Format            Format
	Items             []Item
	Collections       []CollectionSpec
	ConversationsSeen int
	MessagesSeen      int
	ProjectsCreated   int
	DocumentsCreated  int
	Failures          []ItemError
}

// records extracts the conversation records of an export. Non-object
// elements are dropped.
func records(v gjson.Result) []gjson.Result {
	var raw []gjson.Result
	switch {
	case v.IsArray():
		raw = v.Array()
	case v.IsObject():
		if convs := v.Get("conversations"); convs.IsArray() {
			raw = convs.Array()
			break
		}
		// A dict that is itself a record is never flattened, even when all of
		// its values are lists (a bare {"chat_messages": [...]}).
		if !isRecord(v) {
			if lists, ok := allLists(v); ok {
				raw = lists
				break
			}
		}
		raw = []gjson.Result{v}
	}
	out := raw[:0:0]
	for _, r := range raw {
		if r.IsObject() {
			out = append(out, r)
		}
	}
	return out
}

// isRecord reports whether v directly carries conversation marker fields.
func isRecord(v gjson.Result) bool {
	return hasAny(v, claudeMarkers) || hasAny(v, chatgptMarkers)
}

// allLists flattens an object whose values are all arrays, in key order.
func allLists(v gjson.Result) ([]gjson.Result, bool) {
	var out []gjson.Result
	ok, n := true, 0
	v.ForEach(func(_, value gjson.Result) bool {
		n++
		if !value.IsArray() {
			ok = false
			return false
		}
		out = append(out, value.Array()...)
		return true
	})
	return out, ok && n > 0
}

// str returns the first present, non-null field as a string.
func str(r gjson.Result, fields ...string) string {
	for _, f := range fields {
		if v := r.Get(gjson.Escape(f)); v.Exists() && v.Type != gjson.Null {
			return v.String()
		}
	}
	return ""
}

// nonEmpty returns the first field whose string value is not empty.
func nonEmpty(r gjson.Result, fields ...string) string {
	for _, f := range fields {
		if v := r.Get(gjson.Escape(f)); v.Exists() && v.Type != gjson.Null && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

// field returns the first present field.
func field(r gjson.Result, fields ...string) gjson.Result {
	for _, f := range fields {
		if v := r.Get(gjson.Escape(f)); v.Exists() && v.Type != gjson.Null {
			return v
		}
	}
	return gjson.Result{}
}

// titleCase upper-cases the first letter of every letter run and
// lower-cases the rest.
func titleCase(s string) string {
	var b strings.Builder
	prevLetter := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) && !prevLetter:
			b.WriteRune(unicode.ToUpper(r))
		case unicode.IsLetter(r):
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
		prevLetter = unicode.IsLetter(r)
	}
	return b.String()
}

// stringify renders a JSON value the way it would print: strings raw,
// everything else as its JSON text.
func stringify(v gjson.Result) string {
	if v.Type == gjson.String {
		return v.String()
	}
	return v.Raw
}

// epochTime renders a numeric timestamp as RFC 3339 UTC and passes anything
// else through as a string.
func epochTime(v gjson.Result) string {
	if v.Type != gjson.Number {
		return v.String()
	}
	f := v.Float()
	sec, frac := math.Modf(f)
	t := time.Unix(int64(sec), int64(frac*1e9)).UTC()
	return t.Format(time.RFC3339)
}

// syntheticID identifies a record that carries no id. Title, the raw
// created value and the message section are hashed; the header is left out
// because a missing created value defaults to the import time.
func syntheticID(title, created, messages string) string {
	h := sha256.New()
	for _, part := range []string{title, created, messages} {
		h.Write([]byte(strconv.Itoa(len(part))))
		h.Write([]byte{0})
		h.Write([]byte(part))
	}
	return "synthetic:" + hex.EncodeToString(h.Sum(nil))[:32]
}

type message struct {
	role    string
	content string
}

// transcript lays out a conversation and returns the full text and the
// message section on its own.
func transcript(title, created string, msgs []message) (string, string) {
	var body strings.Builder
	for _, m := range msgs {
		body.WriteString("## " + m.role + "\n")
		body.WriteString(m.content + "\n")
		body.WriteString("\n")
	}
	header := "# Conversation: " + title + "\nCreated: " + created + "\n\n"
	text := strings.TrimSuffix(header+body.String(), "\n")
	return text, body.String()
}
