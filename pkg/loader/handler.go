package loader

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/ohler55/ojg/jp"

	"github.com/getmockd/devmock/internal/matching"
	"github.com/getmockd/devmock/pkg/httputil"
	"github.com/getmockd/devmock/pkg/mock"
	"github.com/getmockd/devmock/pkg/template"
)

// builder holds a validated module and produces handler lists from it.
// Expressions are compiled once; each build gets its own sequence store.
type builder struct {
	defs     []mock.Definition
	programs []*vm.Program
	vars     map[string]any
	logger   *slog.Logger
}

// exprEnv is the variable set visible to "json" expressions. The values
// here only fix the types used for compile-time checking.
func exprEnv() map[string]any {
	return map[string]any{
		"request":  map[string]any{},
		"params":   map[string]string{},
		"query":    map[string]string{},
		"body":     any(nil),
		"vars":     map[string]any{},
		"method":   "",
		"path":     "",
		"url":      "",
		"seq":      func(string) int64 { return 0 },
		"jsonPath": jsonPath,
	}
}

// jsonPath is exposed to expressions as jsonPath(body, "$.items[0].id").
// It returns nil when nothing matches, the value for a single match and a
// list otherwise.
func jsonPath(data any, path string) any {
	x, err := jp.ParseString(path)
	if err != nil {
		return nil
	}
	results := x.Get(data)
	switch len(results) {
	case 0:
		return nil
	case 1:
		return results[0]
	}
	return results
}

func (l *Loader) newBuilder(path string, defs []mock.Definition, vars map[string]any) (*builder, error) {
	b := &builder{
		defs:     defs,
		programs: make([]*vm.Program, len(defs)),
		vars:     vars,
		logger:   l.logger.With("module", path),
	}

	env := exprEnv()
	for i := range defs {
		def := &defs[i]
		if err := def.Validate(); err != nil {
			return nil, newLoadError(path, ErrExportShape, fmt.Sprintf("handlers[%d]", i), err)
		}
		if err := matching.ValidatePattern(def.Pattern); err != nil {
			// A malformed pattern never matches; the rest of the module stays usable.
			b.logger.Warn("handler pattern is malformed", "index", i, "pattern", def.Pattern, "error", err)
		}
		if def.JSON == "" {
			continue
		}
		program, err := expr.Compile(def.JSON, expr.Env(env))
		if err != nil {
			return nil, newLoadError(path, ErrExportShape, fmt.Sprintf("handlers[%d]: json expression", i), err)
		}
		b.programs[i] = program
	}
	return b, nil
}

// build returns a fresh handler list with new per-load state.
func (b *builder) build() []mock.Handler {
	engine := template.New()
	vars := maps.Clone(b.vars)

	handlers := make([]mock.Handler, len(b.defs))
	for i := range b.defs {
		def := b.defs[i]
		handlers[i] = mock.Handler{
			Pattern:    def.Pattern,
			Method:     def.Method,
			Handle:     b.handleFunc(&def, b.programs[i], engine, vars),
			Definition: &def,
		}
	}
	return handlers
}

func (b *builder) handleFunc(def *mock.Definition, program *vm.Program, engine *template.Engine, vars map[string]any) mock.HandleFunc {
	return func(w http.ResponseWriter, r *mock.Request, pathVars mock.PathVars) {
		if def.DelayMs > 0 && !sleep(r, time.Duration(def.DelayMs)*time.Millisecond) {
			return
		}

		tctx := template.NewContext(r, vars)
		for name, value := range def.Headers {
			v, _ := engine.Process(value, tctx)
			w.Header().Set(name, v)
		}

		if program != nil {
			out, err := expr.Run(program, requestEnv(r, pathVars, vars, engine))
			if err != nil {
				b.logger.Error("json expression failed", "pattern", def.Pattern, "error", err)
				httputil.WriteInternalError(w, "expression_error", err.Error())
				return
			}
			data, err := json.Marshal(out)
			if err != nil {
				b.logger.Error("json expression result is not encodable", "pattern", def.Pattern, "error", err)
				httputil.WriteInternalError(w, "encode_error", err.Error())
				return
			}
			if w.Header().Get("Content-Type") == "" {
				w.Header().Set("Content-Type", "application/json")
			}
			w.WriteHeader(def.StatusCode())
			_, _ = w.Write(data)
			return
		}

		body, _ := engine.Process(def.Body, tctx)
		w.WriteHeader(def.StatusCode())
		_, _ = io.WriteString(w, body)
	}
}

func requestEnv(r *mock.Request, pathVars mock.PathVars, vars map[string]any, engine *template.Engine) map[string]any {
	params := map[string]string(pathVars)
	if params == nil {
		params = map[string]string{}
	}
	query := r.Query
	if query == nil {
		query = map[string]string{}
	}
	if vars == nil {
		vars = map[string]any{}
	}
	method, path, url := r.Method, r.URL.Path, r.URL.RequestURI()
	return map[string]any{
		"request": map[string]any{
			"method": method,
			"path":   path,
			"url":    url,
			"params": params,
			"query":  query,
			"body":   r.Body,
		},
		"params": params,
		"query":  query,
		"body":   r.Body,
		"vars":   vars,
		"method": method,
		"path":   path,
		"url":    url,
		"seq": func(name string) int64 {
			return engine.Sequences().Next(name, 1)
		},
		"jsonPath": jsonPath,
	}
}

// sleep waits for d or until the client goes away. It reports whether the
// full delay elapsed.
func sleep(r *mock.Request, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-r.Context().Done():
		return false
	}
}
