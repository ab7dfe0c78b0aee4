package importer

import (
	"strings"

	"github.com/tidwall/gjson"
)

var (
	claudeMarkers  = []string{"uuid", "name", "created_at", "updated_at", "chat_messages"}
	chatgptMarkers = []string{"create_time", "conversation_id", "mapping"}
	projectKeys    = []string{"projects", "documents", "knowledge_docs", "project_name"}
	projectFields  = []string{"name", "description", "documents", "created_at"}
)

// Detect classifies a parsed JSON value. Checks run in a fixed order and the
// first match wins: Claude conversations, then ChatGPT, then projects.
func Detect(v gjson.Result) Format {
	switch {
	case isClaudeConversations(v):
		return ClaudeConversations
	case isChatGPTConversations(v):
		return ChatGPTConversations
	case isClaudeProjects(v):
		return ClaudeProjects
	default:
		return Unknown
	}
}

// DetectBytes parses data and classifies it.
func DetectBytes(data []byte) (Format, error) {
	if !gjson.ValidBytes(data) {
		return Unknown, ErrInvalidJSON
	}
	return Detect(gjson.ParseBytes(data)), nil
}

func hasAny(v gjson.Result, keys []string) bool {
	if !v.IsObject() {
		return false
	}
	for _, k := range keys {
		if v.Get(gjson.Escape(k)).Exists() {
			return true
		}
	}
	return false
}

func first(v gjson.Result) gjson.Result {
	var out gjson.Result
	v.ForEach(func(_, value gjson.Result) bool {
		out = value
		return false
	})
	return out
}

// isConversationRecord reports whether a listed record looks like a Claude
// conversation. Listed records carrying nested project documents are left to
// the project check; a top-level dict is judged by its markers alone.
func isConversationRecord(r gjson.Result) bool {
	return hasAny(r, claudeMarkers) && !hasAny(r, []string{"documents", "knowledge_docs"})
}

func isClaudeConversations(v gjson.Result) bool {
	switch {
	case v.IsArray():
		return isConversationRecord(first(v))
	case v.IsObject():
		if v.Get("conversations").IsArray() {
			return true
		}
		if hasAny(v, claudeMarkers) {
			return true
		}
		found := false
		v.ForEach(func(_, value gjson.Result) bool {
			if value.IsArray() && isConversationRecord(first(value)) {
				found = true
				return false
			}
			return true
		})
		return found
	}
	return false
}

func isChatGPTConversations(v gjson.Result) bool {
	switch {
	case v.IsArray():
		return hasAny(first(v), chatgptMarkers)
	case v.IsObject():
		if hasAny(v, chatgptMarkers) {
			return true
		}
		found := false
		v.Get("mapping").ForEach(func(_, node gjson.Result) bool {
			if node.IsObject() && node.Get("message").Exists() {
				found = true
				return false
			}
			return true
		})
		return found
	}
	return false
}

func isClaudeProjects(v gjson.Result) bool {
	switch {
	case v.IsObject():
		if hasAny(v, projectKeys) {
			return true
		}
		return hasAny(v, projectFields) && v.Get("documents").IsArray()
	case v.IsArray():
		return hasAny(first(v), projectFields)
	}
	return false
}

// Analysis describes the top-level structure of an input.
type Analysis struct {
	Format      Format   `json:"format"`
	Root        string   `json:"root"`
	Keys        []string `json:"keys,omitempty"`
	Length      int      `json:"length,omitempty"`
	ItemKeys    []string `json:"item_keys,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

const maxAnalysisKeys = 10

// Analyze reports the shape of v and, when detection fails, hints about
// what the file might be.
func Analyze(v gjson.Result) Analysis {
	a := Analysis{Format: Detect(v), Root: kindOf(v)}
	switch {
	case v.IsObject():
		a.Keys = objectKeys(v, maxAnalysisKeys)
	case v.IsArray():
		arr := v.Array()
		a.Length = len(arr)
		if len(arr) > 0 {
			a.ItemKeys = objectKeys(arr[0], maxAnalysisKeys)
		}
	}
	if a.Format == Unknown {
		a.Suggestions = suggestions(v)
	}
	return a
}

func kindOf(v gjson.Result) string {
	switch {
	case v.IsObject():
		return "object"
	case v.IsArray():
		return "array"
	}
	switch v.Type {
	case gjson.String:
		return "string"
	case gjson.Number:
		return "number"
	case gjson.True, gjson.False:
		return "boolean"
	default:
		return "null"
	}
}

func objectKeys(v gjson.Result, limit int) []string {
	var keys []string
	v.ForEach(func(k, _ gjson.Result) bool {
		keys = append(keys, k.String())
		return len(keys) < limit
	})
	return keys
}

func anyKeyContains(v gjson.Result, word string) bool {
	found := false
	v.ForEach(func(k, _ gjson.Result) bool {
		if strings.Contains(strings.ToLower(k.String()), word) {
			found = true
			return false
		}
		return true
	})
	return found
}

func suggestions(v gjson.Result) []string {
	var out []string
	switch {
	case v.IsObject():
		if anyKeyContains(v, "message") {
			out = append(out, "This might be a conversation format - check message structure")
		}
		if anyKeyContains(v, "project") {
			out = append(out, "This might be a project format - check for documents or files")
		}
		if anyKeyContains(v, "chat") {
			out = append(out, "This appears to be chat data - verify conversation format")
		}
	case v.IsArray():
		if item := first(v); item.IsObject() {
			if anyKeyContains(item, "conversation") {
				out = append(out, "List of conversations detected - check conversation format")
			}
			if anyKeyContains(item, "project") {
				out = append(out, "List of projects detected - verify project structure")
			}
		}
	}
	if len(out) == 0 {
		out = append(out, "Unknown format - ensure JSON matches Claude/ChatGPT export structure")
	}
	return out
}
