// Package validator performs the structural checks generated source must
// pass before it is handed to the compiler.
//
// The checks are shallow: nothing is executed or type-checked here, and the
// deny list is a configurable safety net rather than a security boundary.
package validator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/GIL794/algorand-ai-contract-creator/internal/models"
)

// Failure reasons returned in ValidationOutcome.Reason.
const (
	ReasonEmpty             = "empty source"
	ReasonMissingEntryPoint = "missing program entry point."
)

// DefaultEntryMarkers lists the substrings that mark a program entry point.
// They follow the top-level names program.Document looks the approval
// program up by.
var DefaultEntryMarkers = []string{"approval_program", "router:", "app:"}

// DefaultDenyPatterns reject dynamic evaluation and embedded credentials.
var DefaultDenyPatterns = []string{
	"exec(",
	"eval(",
	"__import__",
	"compile(",
	"os.system",
	"subprocess",
	"importlib",
	"private_key",
	"PRIVATE KEY",
	"mnemonic",
	"api_key",
	"secret_key",
}

// DefaultDenyRegexps catch credentials the substring list cannot name.
var DefaultDenyRegexps = []string{
	// 25-word account mnemonics.
	`(?i)\b(?:[a-z]{3,8}\s+){24}[a-z]{3,8}\b`,
	// Bearer tokens and provider keys.
	`\bsk-[A-Za-z0-9]{20,}`,
	`\bpplx-[A-Za-z0-9]{20,}`,
}

// Config overrides the defaults; empty slices keep them.
type Config struct {
	EntryMarkers []string
	DenyPatterns []string
	DenyRegexps  []string
}

type denyRule struct {
	pattern string
	re      *regexp.Regexp
}

// Validator is immutable after New and safe for concurrent use.
type Validator struct {
	markers []string
	rules   []denyRule
}

// New compiles the configured rules.
func New(cfg Config) (*Validator, error) {
	markers := cfg.EntryMarkers
	if len(markers) == 0 {
		markers = DefaultEntryMarkers
	}
	patterns := cfg.DenyPatterns
	if len(patterns) == 0 {
		patterns = DefaultDenyPatterns
	}
	exprs := cfg.DenyRegexps
	if len(exprs) == 0 {
		exprs = DefaultDenyRegexps
	}

	v := &Validator{markers: append([]string(nil), markers...)}
	for _, p := range patterns {
		if p == "" {
			continue
		}
		v.rules = append(v.rules, denyRule{pattern: p})
	}
	for _, expr := range exprs {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid deny regexp %q: %w", expr, err)
		}
		v.rules = append(v.rules, denyRule{pattern: expr, re: re})
	}
	return v, nil
}

// Default returns a Validator with the built-in rules.
func Default() *Validator {
	v, err := New(Config{})
	if err != nil {
		panic(err)
	}
	return v
}

// Validate checks emptiness, then the entry point, then the deny list.
func (v *Validator) Validate(source string) models.ValidationOutcome {
	if strings.TrimSpace(source) == "" {
		return models.ValidationOutcome{Reason: ReasonEmpty}
	}

	if !v.hasEntryPoint(source) {
		return models.ValidationOutcome{Reason: ReasonMissingEntryPoint}
	}

	for _, rule := range v.rules {
		if rule.matches(source) {
			return models.ValidationOutcome{Reason: fmt.Sprintf("forbidden pattern %q found", rule.pattern)}
		}
	}

	return models.ValidationOutcome{Valid: true}
}

func (v *Validator) hasEntryPoint(source string) bool {
	for _, m := range v.markers {
		if strings.Contains(source, m) {
			return true
		}
	}
	return false
}

func (r denyRule) matches(source string) bool {
	if r.re != nil {
		return r.re.MatchString(source)
	}
	return strings.Contains(source, r.pattern)
}
