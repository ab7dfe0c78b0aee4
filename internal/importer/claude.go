package importer

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/m5trevino/peacock-mem/internal/store"
	"github.com/tidwall/gjson"
)

const untitledConversation = "Untitled Conversation"

// ClaudeNormalizer imports Claude conversation exports.
type ClaudeNormalizer struct {
	now func() time.Time
}

// NewClaudeNormalizer creates a ClaudeNormalizer. A nil clock uses time.Now.
func NewClaudeNormalizer(now func() time.Time) *ClaudeNormalizer {
	if now == nil {
		now = time.Now
	}
	return &ClaudeNormalizer{now: now}
}

func (n *ClaudeNormalizer) Format() Format { return ClaudeConversations }

// Normalize emits one transcript document per conversation that has at least
// one non-empty message.
func (n *ClaudeNormalizer) Normalize(ctx context.Context, v gjson.Result) (Result, error) {
	res := Result{Format: ClaudeConversations}
	imported := store.Timestamp(n.now())

	for i, rec := range records(v) {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		rawMsgs := field(rec, "chat_messages", "messages")
		if rawMsgs.Exists() && !rawMsgs.IsArray() {
			res.Failures = append(res.Failures, ItemError{
				Index: i, ID: str(rec, "uuid", "id"),
				Err: fmt.Errorf("messages field is %s, want array", kindOf(rawMsgs)),
			})
			continue
		}
		raw := rawMsgs.Array()
		if len(raw) == 0 {
			continue
		}

		var msgs []message
		for _, m := range raw {
			if !m.IsObject() {
				continue
			}
			text := claudeText(m)
			if text == "" {
				continue
			}
			role := str(m, "sender", "role")
			if role == "" {
				role = "unknown"
			}
			msgs = append(msgs, message{role: titleCase(role), content: text})
		}
		if len(msgs) == 0 {
			continue
		}

		title := nonEmpty(rec, "name", "title")
		if title == "" {
			title = untitledConversation
		}
		rawCreated := str(rec, "created_at")
		created := rawCreated
		if created == "" {
			created = imported
		}
		text, body := transcript(title, created, msgs)

		convID := str(rec, "uuid", "id")
		if convID == "" {
			convID = syntheticID(title, rawCreated, body)
		}

		res.ConversationsSeen++
		res.MessagesSeen += len(msgs)
		res.Items = append(res.Items, Item{
			Collection: store.ConversationsCollection,
			Messages:   len(msgs),
			Document: store.Document{
				ID:      store.HashID("claude_conv_", convID),
				Content: text,
				Metadata: map[string]string{
					store.MetaConversationID: convID,
					store.MetaTitle:          title,
					store.MetaCreatedAt:      created,
					store.MetaType:           store.TypeConversation,
					store.MetaSource:         "claude",
					store.MetaMessageCount:   strconv.Itoa(len(raw)),
					store.MetaImported:       imported,
				},
			},
		})
	}
	return res, nil
}

// claudeText prefers "text" and falls back to "content", which may be a
// string or a list of content blocks.
func claudeText(m gjson.Result) string {
	if t := m.Get("text"); t.Type == gjson.String && t.String() != "" {
		return t.String()
	}
	c := m.Get("content")
	switch {
	case !c.Exists() || c.Type == gjson.Null:
		return ""
	case c.IsArray():
		var parts []string
		for _, block := range c.Array() {
			if block.Type == gjson.String {
				parts = append(parts, block.String())
				continue
			}
			if t := block.Get("text"); t.Exists() && t.String() != "" {
				parts = append(parts, t.String())
			}
		}
		return strings.Join(parts, "\n")
	default:
		return stringify(c)
	}
}
