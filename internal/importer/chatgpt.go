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

// Order selects how ChatGPT mapping nodes are linearized.
type Order string

const (
	// OrderEnumeration reads nodes in the order the mapping lists them.
	OrderEnumeration Order = "enumeration"
	// OrderThread follows parent links back from current_node.
	OrderThread Order = "thread"
)

// ParseOrder maps a config value to an Order, defaulting to enumeration.
func ParseOrder(s string) Order {
	if strings.EqualFold(s, string(OrderThread)) {
		return OrderThread
	}
	return OrderEnumeration
}

// ChatGPTNormalizer imports ChatGPT conversation exports.
type ChatGPTNormalizer struct {
	order Order
	now   func() time.Time
}

// NewChatGPTNormalizer creates a ChatGPTNormalizer. A nil clock uses time.Now.
func NewChatGPTNormalizer(order Order, now func() time.Time) *ChatGPTNormalizer {
	if now == nil {
		now = time.Now
	}
	if order == "" {
		order = OrderEnumeration
	}
	return &ChatGPTNormalizer{order: order, now: now}
}

func (n *ChatGPTNormalizer) Format() Format { return ChatGPTConversations }

// Normalize emits one transcript document per conversation whose mapping
// yields at least one non-empty message.
func (n *ChatGPTNormalizer) Normalize(ctx context.Context, v gjson.Result) (Result, error) {
	res := Result{Format: ChatGPTConversations}
	imported := store.Timestamp(n.now())

	for i, rec := range records(v) {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		mapping := rec.Get("mapping")
		if mapping.Exists() && mapping.Type != gjson.Null && !mapping.IsObject() {
			res.Failures = append(res.Failures, ItemError{
				Index: i, ID: str(rec, "conversation_id", "id"),
				Err: fmt.Errorf("mapping is %s, want object", kindOf(mapping)),
			})
			continue
		}

		var msgs []message
		for _, node := range n.nodes(rec, mapping) {
			if m, ok := chatgptMessage(node); ok {
				msgs = append(msgs, m)
			}
		}
		if len(msgs) == 0 {
			continue
		}

		title := nonEmpty(rec, "title")
		if title == "" {
			title = untitledConversation
		}
		ct := rec.Get("create_time")
		var rawCreated string
		if ct.Exists() && ct.Type != gjson.Null {
			rawCreated = epochTime(ct)
		}
		created := rawCreated
		if created == "" {
			created = imported
		}
		text, body := transcript(title, created, msgs)

		convID := str(rec, "conversation_id", "id")
		if convID == "" {
			convID = syntheticID(title, rawCreated, body)
		}

		res.ConversationsSeen++
		res.MessagesSeen += len(msgs)
		res.Items = append(res.Items, Item{
			Collection: store.ConversationsCollection,
			Messages:   len(msgs),
			Document: store.Document{
				ID:      store.HashID("chatgpt_conv_", convID),
				Content: text,
				Metadata: map[string]string{
					store.MetaConversationID: convID,
					store.MetaTitle:          title,
					store.MetaCreatedAt:      created,
					store.MetaType:           store.TypeConversation,
					store.MetaSource:         "chatgpt",
					store.MetaMessageCount:   strconv.Itoa(len(msgs)),
					store.MetaImported:       imported,
				},
			},
		})
	}
	return res, nil
}

// nodes returns the mapping nodes in the configured order. Thread order
// falls back to enumeration when current_node does not resolve.
func (n *ChatGPTNormalizer) nodes(rec, mapping gjson.Result) []gjson.Result {
	if !mapping.IsObject() {
		return nil
	}
	if n.order == OrderThread {
		if thread := threadNodes(rec, mapping); len(thread) > 0 {
			return thread
		}
	}
	var out []gjson.Result
	mapping.ForEach(func(_, node gjson.Result) bool {
		out = append(out, node)
		return true
	})
	return out
}

func threadNodes(rec, mapping gjson.Result) []gjson.Result {
	cur := rec.Get("current_node").String()
	seen := make(map[string]bool)
	var chain []gjson.Result
	for cur != "" && !seen[cur] {
		seen[cur] = true
		node := mapping.Get(gjson.Escape(cur))
		if !node.IsObject() {
			break
		}
		chain = append(chain, node)
		cur = node.Get("parent").String()
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

func chatgptMessage(node gjson.Result) (message, bool) {
	msg := node.Get("message")
	if !msg.IsObject() {
		return message{}, false
	}

	role := "unknown"
	switch author := msg.Get("author"); {
	case author.IsObject():
		if r := author.Get("role"); r.Exists() && r.Type != gjson.Null {
			role = r.String()
		}
	case author.Exists() && author.Type != gjson.Null:
		role = stringify(author)
	}

	var text string
	switch content := msg.Get("content"); {
	case content.IsObject():
		var parts []string
		for _, p := range content.Get("parts").Array() {
			if s := stringify(p); truthy(p) && s != "" {
				parts = append(parts, s)
			}
		}
		text = strings.Join(parts, "\n")
	case content.Exists() && content.Type != gjson.Null:
		text = stringify(content)
	}
	if strings.TrimSpace(text) == "" {
		return message{}, false
	}
	return message{role: titleCase(role), content: text}, true
}

// truthy drops the parts an export uses as placeholders: null, false, zero,
// empty strings, empty arrays and empty objects.
func truthy(v gjson.Result) bool {
	switch v.Type {
	case gjson.Null, gjson.False:
		return false
	case gjson.Number:
		return v.Float() != 0
	case gjson.String:
		return v.String() != ""
	case gjson.JSON:
		if v.IsArray() {
			return len(v.Array()) > 0
		}
		return len(v.Map()) > 0
	}
	return true
}
