package logging

import (
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// Recorder captures every entry written through Logger so tests can check
// what a component reported, including failures it swallowed.
type Recorder struct {
	Logger *zap.Logger
	logs   *observer.ObservedLogs
}

// NewRecorder records entries at TraceLevel and above.
func NewRecorder() *Recorder {
	core, logs := observer.New(TraceLevel)
	return &Recorder{Logger: zap.New(core), logs: logs}
}

// Entries returns the entries whose message contains snippet, oldest first.
// An empty snippet returns everything.
func (r *Recorder) Entries(snippet string) []observer.LoggedEntry {
	if snippet == "" {
		return r.logs.All()
	}
	return r.logs.FilterMessageSnippet(snippet).All()
}

// Find returns the first entry at level whose message contains snippet and
// fails tb when there is none.
func (r *Recorder) Find(tb testing.TB, level zapcore.Level, snippet string) observer.LoggedEntry {
	tb.Helper()
	for _, e := range r.logs.All() {
		if e.Level == level && strings.Contains(e.Message, snippet) {
			return e
		}
	}
	var seen []string
	for _, e := range r.logs.All() {
		seen = append(seen, e.Level.String()+" "+e.Message)
	}
	tb.Fatalf("no %s entry containing %q; recorded: %q", level, snippet, seen)
	return observer.LoggedEntry{}
}
