package template

import (
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/getmockd/devmock/internal/id"
)

// Engine processes templates with variable substitution.
// The engine itself is stateless; sequence state lives in the attached
// SequenceStore, which provides its own synchronization.
type Engine struct {
	sequences *SequenceStore
	now       func() time.Time
}

// New creates a template engine with its own sequence store.
func New() *Engine {
	return NewWithSequences(NewSequenceStore())
}

// NewWithSequences creates a template engine backed by store.
func NewWithSequences(store *SequenceStore) *Engine {
	return &Engine{sequences: store, now: time.Now}
}

// Sequences returns the engine's sequence store.
func (e *Engine) Sequences() *SequenceStore {
	return e.sequences
}

// templateRegex matches {{expression}} patterns with optional whitespace.
var templateRegex = regexp.MustCompile(`\{\{\s*([^}]+?)\s*\}\}`)

var (
	// random.int(min, max)
	randomIntPattern = regexp.MustCompile(`^random\.int\((\d+),\s*(\d+)\)$`)
	// random.string or random.string(length)
	randomStringPattern = regexp.MustCompile(`^random\.string(?:\((\d+)\))?$`)
	// sequence("name") or sequence("name", start)
	sequencePattern = regexp.MustCompile(`^sequence\("([^"]+)"(?:,\s*(\d+))?\)$`)
	// upper(value), lower(value), default(value, fallback)
	funcCallPattern = regexp.MustCompile(`^(\w+)\((.+)\)$`)
)

// HasExpressions reports whether s contains at least one {{...}} expression.
func HasExpressions(s string) bool {
	return templateRegex.MatchString(s)
}

// Process evaluates a template string with the given context. Unknown
// expressions evaluate to the empty string.
func (e *Engine) Process(template string, ctx *Context) (string, error) {
	if !strings.Contains(template, "{{") {
		return template, nil
	}
	result := templateRegex.ReplaceAllStringFunc(template, func(match string) string {
		inner := templateRegex.FindStringSubmatch(match)
		if len(inner) < 2 {
			return match
		}
		return e.evaluate(inner[1], ctx)
	})
	return result, nil
}

func (e *Engine) evaluate(expr string, ctx *Context) string {
	expr = strings.TrimSpace(expr)

	switch expr {
	case "now":
		return e.now().Format(time.RFC3339)
	case "uuid":
		return id.UUID()
	case "uuid.short":
		return id.Short()
	case "timestamp", "timestamp.unix":
		return strconv.FormatInt(e.now().Unix(), 10)
	case "timestamp.iso":
		return e.now().UTC().Format(time.RFC3339Nano)
	case "timestamp.unix_ms":
		return strconv.FormatInt(e.now().UnixMilli(), 10)
	}

	if result, handled := e.evaluateCall(expr, ctx); handled {
		return result
	}

	switch {
	case strings.HasPrefix(expr, "request."):
		return e.evaluateRequest(expr[len("request."):], ctx)
	case strings.HasPrefix(expr, "vars."):
		if ctx == nil {
			return ""
		}
		return lookupPath(ctx.Vars, expr[len("vars."):])
	}

	return ""
}

// evaluateCall handles function-call syntax: func(arg1, arg2).
func (e *Engine) evaluateCall(expr string, ctx *Context) (string, bool) {
	if m := randomIntPattern.FindStringSubmatch(expr); m != nil {
		lo, errLo := strconv.Atoi(m[1])
		hi, errHi := strconv.Atoi(m[2])
		if errLo != nil || errHi != nil {
			return "", true
		}
		return funcRandomInt(lo, hi), true
	}

	if m := randomStringPattern.FindStringSubmatch(expr); m != nil {
		n := 10
		if m[1] != "" {
			if v, err := strconv.Atoi(m[1]); err == nil && v > 0 {
				n = v
			}
		}
		return funcRandomString(n), true
	}

	if m := sequencePattern.FindStringSubmatch(expr); m != nil {
		if e.sequences == nil {
			return "", true
		}
		start := int64(1)
		if m[2] != "" {
			start, _ = strconv.ParseInt(m[2], 10, 64)
		}
		return strconv.FormatInt(e.sequences.Next(m[1], start), 10), true
	}

	m := funcCallPattern.FindStringSubmatch(expr)
	if m == nil {
		return "", false
	}
	switch m[1] {
	case "upper":
		return strings.ToUpper(e.resolveValue(m[2], ctx)), true
	case "lower":
		return strings.ToLower(e.resolveValue(m[2], ctx)), true
	case "jsonPath":
		if ctx == nil {
			return "", true
		}
		return funcJSONPath(parseStringArg(m[2]), ctx.Request.Body), true
	case "default":
		args := splitFuncArgs(m[2])
		if len(args) < 2 {
			return "", true
		}
		return funcDefault(e.resolveValue(args[0], ctx), parseStringArg(args[1])), true
	}
	return "", false
}

// resolveValue resolves a function argument. Quoted strings are literals;
// anything else is evaluated as an expression.
func (e *Engine) resolveValue(ref string, ctx *Context) string {
	ref = strings.TrimSpace(ref)
	if isQuoted(ref) {
		return ref[1 : len(ref)-1]
	}
	return e.evaluate(ref, ctx)
}

func (e *Engine) evaluateRequest(expr string, ctx *Context) string {
	if ctx == nil {
		return ""
	}
	req := ctx.Request

	field, rest, _ := strings.Cut(expr, ".")
	switch field {
	case "method":
		return req.Method
	case "path":
		return req.Path
	case "url":
		return req.URL
	case "query":
		return req.Query[rest]
	case "params", "pathParam":
		return req.Params[rest]
	case "header":
		if req.Headers == nil {
			return ""
		}
		return req.Headers.Get(http.CanonicalHeaderKey(rest))
	case "body":
		if rest == "" {
			if s, ok := req.Body.(string); ok {
				return s
			}
			return ""
		}
		return lookupPath(req.Body, rest)
	}
	return ""
}

// lookupPath walks a dotted path through nested maps and slices, e.g.
// "user.name" or "items.0.id".
func lookupPath(root any, path string) string {
	current := root
	for _, part := range strings.Split(path, ".") {
		switch v := current.(type) {
		case map[string]any:
			next, ok := v[part]
			if !ok {
				return ""
			}
			current = next
		case map[string]string:
			next, ok := v[part]
			if !ok {
				return ""
			}
			current = next
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(v) {
				return ""
			}
			current = v[i]
		default:
			return ""
		}
	}
	return formatValue(current)
}

func formatValue(val any) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func isQuoted(s string) bool {
	return len(s) >= 2 &&
		((s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\''))
}

// parseStringArg removes surrounding quotes from a string argument if present.
func parseStringArg(s string) string {
	s = strings.TrimSpace(s)
	if isQuoted(s) {
		return s[1 : len(s)-1]
	}
	return s
}

// splitFuncArgs splits comma-separated arguments, respecting quoted strings.
func splitFuncArgs(s string) []string {
	var args []string
	var current strings.Builder
	var quote byte

	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case quote != 0:
			current.WriteByte(ch)
			if ch == quote {
				quote = 0
			}
		case ch == '"' || ch == '\'':
			quote = ch
			current.WriteByte(ch)
		case ch == ',':
			args = append(args, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteByte(ch)
		}
	}
	if current.Len() > 0 {
		args = append(args, strings.TrimSpace(current.String()))
	}
	return args
}
