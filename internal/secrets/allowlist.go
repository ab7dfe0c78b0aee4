package secrets

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"github.com/BurntSushi/toml"
)

var (
	// ErrInvalidRegex indicates an allowlist pattern failed to compile.
	ErrInvalidRegex = errors.New("invalid regex pattern")

	// ErrInvalidTOML indicates the allowlist file could not be parsed.
	ErrInvalidTOML = errors.New("invalid TOML format")
)

// Allowlist holds content patterns that must never be redacted.
//
// The file uses the gitleaks layout:
//
//	[allowlist]
//	regexes = ['''example-key-[0-9]+''']
type Allowlist struct {
	Regexes []string
}

// LoadAllowlist reads an allowlist file. A missing file yields an empty
// allowlist.
func LoadAllowlist(path string) (*Allowlist, error) {
	if path == "" {
		return &Allowlist{}, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return &Allowlist{}, nil
	}

	var file struct {
		Allowlist struct {
			Regexes []string
		}
	}
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTOML, path, err)
	}
	for _, p := range file.Allowlist.Regexes {
		if _, err := regexp.Compile(p); err != nil {
			return nil, fmt.Errorf("%w: %q in %s: %v", ErrInvalidRegex, p, path, err)
		}
	}
	return &Allowlist{Regexes: file.Allowlist.Regexes}, nil
}
