package matching

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of compiled patterns a Matcher keeps.
const DefaultCacheSize = 512

// PatternError reports a malformed pattern. Match never returns it; a
// malformed pattern simply matches nothing.
type PatternError struct {
	Pattern string
	Reason  string
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("invalid pattern %q: %s", e.Pattern, e.Reason)
}

// Matcher matches request paths against Ant-style patterns.
//
// Supported syntax, evaluated segment by segment:
//   - literal text: "/api/users" matches only "/api/users"
//   - "*": zero or more characters within one segment, never crossing "/"
//   - "?": exactly one character
//   - "{name}": captures one non-empty segment (or part of one) as name
//   - "{name:regex}": captures text matching regex
//   - "**" as a whole segment: zero or more segments
//
// Matching is anchored at both ends and case-sensitive. A Matcher is safe for
// concurrent use.
type Matcher struct {
	cache *lru.Cache[string, *compiledPattern]
}

// NewMatcher creates a Matcher that memoises up to size compiled patterns.
// A size <= 0 uses DefaultCacheSize.
func NewMatcher(size int) *Matcher {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, *compiledPattern](size)
	if err != nil {
		// lru.New only fails for non-positive sizes.
		panic(err)
	}
	return &Matcher{cache: cache}
}

// Match reports whether path matches pattern in full and returns the
// captured path variables. On no match it returns false and an empty map.
func (m *Matcher) Match(pattern, path string) (bool, map[string]string) {
	return m.compile(pattern).match(path)
}

// Validate returns a *PatternError if pattern is malformed.
func (m *Matcher) Validate(pattern string) error {
	if cp := m.compile(pattern); cp.err != nil {
		return cp.err
	}
	return nil
}

func (m *Matcher) compile(pattern string) *compiledPattern {
	if cp, ok := m.cache.Get(pattern); ok {
		return cp
	}
	cp := compilePattern(pattern)
	m.cache.Add(pattern, cp)
	return cp
}

// Match matches without caching. Prefer a shared Matcher on hot paths.
func Match(pattern, path string) (bool, map[string]string) {
	return compilePattern(pattern).match(path)
}

// ValidatePattern returns a *PatternError if pattern is malformed.
func ValidatePattern(pattern string) error {
	if cp := compilePattern(pattern); cp.err != nil {
		return cp.err
	}
	return nil
}

type segmentKind int

const (
	segLiteral segmentKind = iota
	segWildcard
	segDoubleWildcard
	segRegex
)

type segment struct {
	kind    segmentKind
	literal string
	re      *regexp.Regexp
	vars    []string // variable names, group i+1 is named "v<i>"
}

type compiledPattern struct {
	segments []segment
	err      *PatternError
}

type capture struct {
	name, value string
}

func compilePattern(pattern string) *compiledPattern {
	parts := strings.Split(pattern, "/")
	cp := &compiledPattern{segments: make([]segment, 0, len(parts))}
	seen := make(map[string]bool)

	for _, part := range parts {
		seg, err := compileSegment(part)
		if err != nil {
			cp.err = &PatternError{Pattern: pattern, Reason: err.Error()}
			cp.segments = nil
			return cp
		}
		for _, name := range seg.vars {
			if seen[name] {
				cp.err = &PatternError{Pattern: pattern, Reason: fmt.Sprintf("duplicate variable %q", name)}
				cp.segments = nil
				return cp
			}
			seen[name] = true
		}
		cp.segments = append(cp.segments, seg)
	}
	return cp
}

func compileSegment(part string) (segment, error) {
	switch part {
	case "**":
		return segment{kind: segDoubleWildcard}, nil
	case "*":
		return segment{kind: segWildcard}, nil
	}
	if !strings.ContainsAny(part, "*?{}") {
		return segment{kind: segLiteral, literal: part}, nil
	}

	var (
		b    strings.Builder
		vars []string
	)
	b.WriteString("^")
	for i := 0; i < len(part); i++ {
		switch c := part[i]; c {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		case '}':
			return segment{}, fmt.Errorf("unbalanced '}' in segment %q", part)
		case '{':
			end := closingBrace(part, i)
			if end < 0 {
				return segment{}, fmt.Errorf("unbalanced '{' in segment %q", part)
			}
			name, expr, _ := strings.Cut(part[i+1:end], ":")
			if name == "" {
				return segment{}, fmt.Errorf("empty variable name in segment %q", part)
			}
			if expr == "" {
				expr = ".+"
			}
			if _, err := regexp.Compile(expr); err != nil {
				return segment{}, fmt.Errorf("variable %q: %w", name, err)
			}
			b.WriteString("(?P<v" + strconv.Itoa(len(vars)) + ">" + expr + ")")
			vars = append(vars, name)
			i = end
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	b.WriteString("$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return segment{}, err
	}
	return segment{kind: segRegex, re: re, vars: vars}, nil
}

// closingBrace returns the index of the brace closing the one at open,
// allowing nested braces inside a variable's regex (e.g. {id:\d{3}}).
func closingBrace(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func (cp *compiledPattern) match(path string) (bool, map[string]string) {
	vars := make(map[string]string)
	if cp.err != nil {
		return false, vars
	}
	caps, ok := matchSegments(cp.segments, strings.Split(path, "/"), nil)
	if !ok {
		return false, vars
	}
	for _, c := range caps {
		vars[c.name] = c.value
	}
	return true, vars
}

// matchSegments matches pattern segments against path segments, backtracking
// over "**". Captures from abandoned branches are dropped with the branch.
func matchSegments(pattern []segment, path []string, caps []capture) ([]capture, bool) {
	for len(pattern) > 0 {
		seg := pattern[0]
		if seg.kind == segDoubleWildcard {
			rest := pattern[1:]
			for skip := 0; skip <= len(path); skip++ {
				if got, ok := matchSegments(rest, path[skip:], caps); ok {
					return got, true
				}
			}
			return nil, false
		}
		if len(path) == 0 {
			return nil, false
		}
		var ok bool
		caps, ok = seg.matchOne(path[0], caps)
		if !ok {
			return nil, false
		}
		pattern, path = pattern[1:], path[1:]
	}
	return caps, len(path) == 0
}

func (s *segment) matchOne(part string, caps []capture) ([]capture, bool) {
	switch s.kind {
	case segLiteral:
		return caps, s.literal == part
	case segWildcard:
		return caps, true
	case segRegex:
		m := s.re.FindStringSubmatch(part)
		if m == nil {
			return caps, false
		}
		// Copy so sibling backtracking branches never share a backing array.
		out := make([]capture, len(caps), len(caps)+len(s.vars))
		copy(out, caps)
		for i, name := range s.vars {
			out = append(out, capture{name: name, value: m[s.re.SubexpIndex("v"+strconv.Itoa(i))]})
		}
		return out, true
	}
	return caps, false
}
