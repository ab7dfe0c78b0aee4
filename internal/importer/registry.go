package importer

import (
	"time"
)

// Registry maps a detected Format to the Normalizer that handles it.
type Registry map[Format]Normalizer

// DefaultRegistry returns the three built-in normalizers.
func DefaultRegistry(order Order, now func() time.Time) Registry {
	r := Registry{}
	r.Register(NewClaudeNormalizer(now))
	r.Register(NewChatGPTNormalizer(order, now))
	r.Register(NewProjectNormalizer(now))
	return r
}

// Register adds n under its own format, replacing any previous entry.
func (r Registry) Register(n Normalizer) {
	r[n.Format()] = n
}

// Lookup returns the normalizer for f.
func (r Registry) Lookup(f Format) (Normalizer, bool) {
	n, ok := r[f]
	return n, ok
}
