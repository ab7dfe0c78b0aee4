package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration is a config duration. Besides Go syntax ("90s", "1h30m") it
// accepts a day suffix ("7d") and a bare integer, read as seconds.
type Duration time.Duration

// ParseDuration parses the forms Duration accepts. Negative values are
// rejected.
func ParseDuration(s string) (Duration, error) {
	s = strings.TrimSpace(s)
	var (
		d   time.Duration
		err error
	)
	switch {
	case s == "":
		return 0, fmt.Errorf("empty duration")
	case strings.HasSuffix(s, "d"):
		var days int
		days, err = strconv.Atoi(strings.TrimSuffix(s, "d"))
		d = time.Duration(days) * 24 * time.Hour
	default:
		if secs, convErr := strconv.Atoi(s); convErr == nil {
			d = time.Duration(secs) * time.Second
		} else {
			d, err = time.ParseDuration(s)
		}
	}
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	if d < 0 {
		return 0, fmt.Errorf("duration cannot be negative: %s", s)
	}
	return Duration(d), nil
}

// UnmarshalText lets koanf decode YAML strings and env values.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalText writes Go duration syntax, so output round-trips.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }

const redacted = "[REDACTED]"

// Secret holds a credential such as an API key. Every fmt verb and every
// text or JSON encoding prints a placeholder; only Value exposes it.
type Secret string

// Format implements fmt.Formatter.
func (s Secret) Format(f fmt.State, _ rune) {
	if s != "" {
		_, _ = f.Write([]byte(redacted))
	}
}

func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return redacted
}

func (s Secret) Value() string { return string(s) }

func (s Secret) IsSet() bool { return s != "" }

// MarshalText also covers encoding/json.
func (s Secret) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText trims the surrounding whitespace that key files and shell
// exports tend to carry.
func (s *Secret) UnmarshalText(text []byte) error {
	*s = Secret(strings.TrimSpace(string(text)))
	return nil
}
