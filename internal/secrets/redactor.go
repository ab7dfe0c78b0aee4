// Package secrets redacts credentials from content before it is stored.
//
// Detection uses the gitleaks default rule set. Each detected secret is
// replaced by a [REDACTED:<rule-id>] marker, which keeps enough context for
// similarity search without persisting the secret.
package secrets

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	gitleaksConfig "github.com/zricethezav/gitleaks/v8/config"
	"github.com/zricethezav/gitleaks/v8/detect"
	gitleaksRegexp "github.com/zricethezav/gitleaks/v8/regexp"
	"go.uber.org/zap"
)

// Finding is one detected secret.
type Finding struct {
	RuleID string
	Line   int
	Match  string
}

// Result is the outcome of a redaction.
type Result struct {
	Content  string
	Findings []Finding
}

// Redactor strips secrets from text.
type Redactor interface {
	Redact(content string) Result
}

// Noop leaves content unchanged.
type Noop struct{}

// Redact implements Redactor.
func (Noop) Redact(content string) Result { return Result{Content: content} }

// GitleaksRedactor detects secrets with gitleaks.
type GitleaksRedactor struct {
	mu       sync.Mutex
	detector *detect.Detector
	logger   *zap.Logger
}

// NewGitleaksRedactor builds a detector from the default gitleaks config
// plus the optional allowlist.
func NewGitleaksRedactor(allow *Allowlist, logger *zap.Logger) (*GitleaksRedactor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	detector, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("creating gitleaks detector: %w", err)
	}
	if allow != nil && len(allow.Regexes) > 0 {
		if err := applyAllowlist(&detector.Config, allow); err != nil {
			return nil, err
		}
	}
	return &GitleaksRedactor{detector: detector, logger: logger}, nil
}

func applyAllowlist(cfg *gitleaksConfig.Config, allow *Allowlist) error {
	entry := &gitleaksConfig.Allowlist{Description: "peacock allowlist"}
	for _, p := range allow.Regexes {
		re, err := regexp.Compile(p)
		if err != nil {
			return fmt.Errorf("%w: %q: %v", ErrInvalidRegex, p, err)
		}
		entry.Regexes = append(entry.Regexes, (*gitleaksRegexp.Regexp)(re))
	}
	cfg.Allowlists = append(cfg.Allowlists, entry)
	return nil
}

// Redact implements Redactor.
func (g *GitleaksRedactor) Redact(content string) Result {
	if content == "" {
		return Result{Content: content}
	}

	g.mu.Lock()
	found := g.detector.DetectString(content)
	g.mu.Unlock()

	if len(found) == 0 {
		return Result{Content: content}
	}

	findings := make([]Finding, 0, len(found))
	for _, f := range found {
		if f.Secret == "" {
			continue
		}
		findings = append(findings, Finding{RuleID: f.RuleID, Line: f.StartLine, Match: f.Secret})
	}

	// Longest first so a secret containing another is replaced whole.
	ordered := make([]Finding, len(findings))
	copy(ordered, findings)
	sort.SliceStable(ordered, func(i, j int) bool { return len(ordered[i].Match) > len(ordered[j].Match) })

	redacted := content
	for _, f := range ordered {
		redacted = strings.ReplaceAll(redacted, f.Match, "[REDACTED:"+f.RuleID+"]")
	}

	rules := make([]string, 0, len(findings))
	for _, f := range findings {
		rules = append(rules, f.RuleID)
	}
	g.logger.Info("redacted secrets", zap.Int("count", len(findings)), zap.Strings("rules", rules))
	return Result{Content: redacted, Findings: findings}
}
