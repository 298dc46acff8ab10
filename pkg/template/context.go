package template

import (
	"net/http"

	"github.com/getmockd/devmock/pkg/mock"
)

// Context holds all available data for template evaluation.
type Context struct {
	Request RequestContext
	// Vars are the module-level variables declared next to the handlers.
	Vars map[string]any
}

// RequestContext contains HTTP request data available to templates.
type RequestContext struct {
	Method  string
	Path    string
	URL     string            // request URI as received, path plus raw query
	Body    any               // body parsed by an upstream layer, or nil
	Query   map[string]string // last value wins
	Headers http.Header
	Params  map[string]string // path variables captured by the pattern
}

// NewContext creates a template context from a dispatched mock request.
func NewContext(r *mock.Request, vars map[string]any) *Context {
	ctx := &Context{Vars: vars}
	if r == nil || r.Request == nil {
		return ctx
	}
	ctx.Request = RequestContext{
		Method:  r.Method,
		Path:    r.URL.Path,
		URL:     r.URL.RequestURI(),
		Body:    r.Body,
		Query:   r.Query,
		Headers: r.Header,
		Params:  r.Params,
	}
	return ctx
}
