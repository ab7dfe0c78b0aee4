// Package importer detects the shape of exported archives and normalizes
// them into store documents.
//
// Three export shapes are understood: Claude conversations, ChatGPT
// conversations and Claude projects. Detect picks one by fixed-priority
// structural probing; the Registry maps the detected Format to its
// Normalizer; Service reads files, normalizes them and writes the result.
package importer

import (
	"errors"
	"fmt"
)

// Format is a detected export shape.
type Format int

// Formats in detection priority order.
const (
	Unknown Format = iota
	ClaudeConversations
	ChatGPTConversations
	ClaudeProjects
)

// String returns the human-readable format name.
func (f Format) String() string {
	switch f {
	case ClaudeConversations:
		return "Claude Conversations"
	case ChatGPTConversations:
		return "ChatGPT Conversations"
	case ClaudeProjects:
		return "Claude Projects"
	default:
		return "Unknown Format"
	}
}

// MarshalText encodes the format as its name.
func (f Format) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText decodes a format name. Unrecognized names decode as Unknown.
func (f *Format) UnmarshalText(b []byte) error {
	*f = Unknown
	for _, c := range []Format{ClaudeConversations, ChatGPTConversations, ClaudeProjects} {
		if c.String() == string(b) {
			*f = c
		}
	}
	return nil
}

var (
	// ErrUnknownFormat is returned when no format matches the input.
	ErrUnknownFormat = errors.New("unknown export format")

	// ErrInvalidJSON is returned for input that is not valid JSON.
	ErrInvalidJSON = errors.New("invalid JSON")

	// ErrFileTooLarge is returned for files above the configured limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrNothingImported is returned when a file produced no documents and
	// no projects.
	ErrNothingImported = errors.New("nothing imported")
)

// ItemError is a failure confined to one record of a file. It is collected
// in results and never aborts the rest of the file.
type ItemError struct {
	// Index is the record position within the file (or within its project).
	Index int
	// ID is the record identity when known.
	ID  string
	Err error
}

func (e ItemError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("item %d (%s): %v", e.Index, e.ID, e.Err)
	}
	return fmt.Sprintf("item %d: %v", e.Index, e.Err)
}

func (e ItemError) Unwrap() error { return e.Err }

// MarshalText renders the error for JSON summaries.
func (e ItemError) MarshalText() ([]byte, error) {
	return []byte(e.Error()), nil
}
