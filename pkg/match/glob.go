// Package match selects objects from a listing.
//
// Matcher applies doublestar glob include/exclude patterns to keys. The
// filters in this package test the remaining entry fields: size, age,
// modification date, name and storage class. Everything implements Filter
// and composes with AND semantics.
package match

import (
	"errors"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/3leaps/s3keeper/pkg/provider"
)

// Errors returned by New.
var (
	ErrInvalidPattern = errors.New("invalid glob pattern")
)

// PatternError wraps pattern-related errors with context.
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return "pattern " + e.Pattern + ": " + e.Err.Error()
}

func (e *PatternError) Unwrap() error {
	return e.Err
}

// Config configures a Matcher.
type Config struct {
	// Includes are glob patterns a key must match (at least one).
	// Empty matches every key.
	Includes []string

	// Excludes are glob patterns a key must not match.
	Excludes []string

	// ExcludeHidden skips keys with a path segment starting with '.'.
	ExcludeHidden bool
}

// Matcher evaluates glob patterns against object keys.
//
// Keys are opaque strings and are matched as returned by the service.
// A Matcher is safe for concurrent use.
type Matcher struct {
	includes      []string
	excludes      []string
	prefixes      []string
	excludeHidden bool
}

// New compiles cfg into a Matcher.
func New(cfg Config) (*Matcher, error) {
	includes, err := compilePatterns(cfg.Includes)
	if err != nil {
		return nil, err
	}
	excludes, err := compilePatterns(cfg.Excludes)
	if err != nil {
		return nil, err
	}

	return &Matcher{
		includes:      includes,
		excludes:      excludes,
		prefixes:      derivePrefixes(includes),
		excludeHidden: cfg.ExcludeHidden,
	}, nil
}

func compilePatterns(raw []string) ([]string, error) {
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		if !doublestar.ValidatePattern(p) {
			return nil, &PatternError{Pattern: p, Err: ErrInvalidPattern}
		}
		out = append(out, p)
	}
	return out, nil
}

// MatchKey reports whether key passes the include and exclude patterns.
func (m *Matcher) MatchKey(key string) bool {
	if m.excludeHidden && IsHidden(key) {
		return false
	}

	if len(m.includes) > 0 && !anyMatch(m.includes, key) {
		return false
	}
	return !anyMatch(m.excludes, key)
}

// Match implements Filter.
func (m *Matcher) Match(e *provider.ObjectEntry) bool {
	return m.MatchKey(e.Key)
}

// String returns a human-readable description.
func (m *Matcher) String() string {
	var parts []string
	if len(m.includes) > 0 {
		parts = append(parts, "include: "+strings.Join(m.includes, ","))
	}
	if len(m.excludes) > 0 {
		parts = append(parts, "exclude: "+strings.Join(m.excludes, ","))
	}
	if len(parts) == 0 {
		return "keys: any"
	}
	return strings.Join(parts, ", ")
}

// Prefixes returns the static listing prefixes of the include patterns,
// with prefixes subsumed by shorter ones removed. A single "" means a full
// listing is required.
func (m *Matcher) Prefixes() []string {
	return m.prefixes
}

// ListPrefix returns one prefix covering every include pattern, cut back to
// a delimiter boundary. It is the start prefix for a walk.
func (m *Matcher) ListPrefix() string {
	if len(m.prefixes) == 0 {
		return ""
	}
	common := m.prefixes[0]
	for _, p := range m.prefixes[1:] {
		for !strings.HasPrefix(p, common) {
			common = common[:len(common)-1]
		}
	}
	if len(m.prefixes) > 1 {
		common = common[:strings.LastIndex(common, "/")+1]
	}
	return common
}

func anyMatch(patterns []string, key string) bool {
	for _, p := range patterns {
		// Patterns were validated in New, so Match cannot fail here.
		if ok, _ := doublestar.Match(p, key); ok {
			return true
		}
	}
	return false
}

// IsHidden reports whether any '/'-separated segment of key starts with a dot.
func IsHidden(key string) bool {
	for _, seg := range strings.Split(key, "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}

// DerivePrefix extracts the static listing prefix of a glob pattern: the text
// before the first unescaped metacharacter, cut back to the last '/'.
// Escaped metacharacters are literal and unescaped in the result.
//
//	"logs/2024/**/*.gz" -> "logs/2024/"
//	"*.json"            -> ""
//	"exact/file.txt"    -> "exact/file.txt"
//	"data/file\*.txt"   -> "data/file*.txt"
func DerivePrefix(pattern string) string {
	meta := firstMeta(pattern)
	switch {
	case meta < 0:
		return unescape(pattern)
	case meta == 0:
		return ""
	}
	head := pattern[:meta]
	slash := strings.LastIndex(head, "/")
	if slash < 0 {
		return ""
	}
	return unescape(head[:slash+1])
}

// IsGlobPattern reports whether pattern contains an unescaped glob
// metacharacter.
func IsGlobPattern(pattern string) bool {
	return firstMeta(pattern) >= 0
}

func isMeta(c byte) bool {
	return c == '*' || c == '?' || c == '[' || c == '{'
}

// firstMeta returns the index of the first unescaped metacharacter, or -1.
func firstMeta(pattern string) int {
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		if c == '\\' && i+1 < len(pattern) {
			i++
			continue
		}
		if isMeta(c) {
			return i
		}
	}
	return -1
}

func unescape(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func derivePrefixes(patterns []string) []string {
	if len(patterns) == 0 {
		return nil
	}
	prefixes := make([]string, 0, len(patterns))
	for _, p := range patterns {
		prefix := DerivePrefix(p)
		if prefix == "" {
			return []string{""}
		}
		prefixes = append(prefixes, prefix)
	}

	sort.Slice(prefixes, func(i, j int) bool { return len(prefixes[i]) < len(prefixes[j]) })
	out := make([]string, 0, len(prefixes))
	for _, candidate := range prefixes {
		subsumed := false
		for _, kept := range out {
			if strings.HasPrefix(candidate, kept) {
				subsumed = true
				break
			}
		}
		if !subsumed {
			out = append(out, candidate)
		}
	}
	sort.Strings(out)
	return out
}
