package vectorstore

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const maxPhysicalNameLen = 64

// PhysicalName maps a logical collection name ("project_My App") onto a
// backend-safe name matching ^[a-z0-9_]{1,64}$.
//
// Names that are already safe pass through unchanged. Anything that had to
// be rewritten gets a hash suffix so two distinct logical names never share
// an index.
func PhysicalName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	safe := b.String()
	if safe == name && len(safe) <= maxPhysicalNameLen && safe != "" {
		return safe
	}

	sum := sha256.Sum256([]byte(name))
	suffix := hex.EncodeToString(sum[:])[:12]
	if len(safe) > maxPhysicalNameLen-len(suffix)-1 {
		safe = safe[:maxPhysicalNameLen-len(suffix)-1]
	}
	if safe == "" {
		return "h_" + suffix
	}
	return safe + "_" + suffix
}
