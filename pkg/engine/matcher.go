package engine

import (
	"github.com/getmockd/devmock/internal/matching"
	"github.com/getmockd/devmock/pkg/mock"
)

// MatchResult is the handler chosen for a request and the path variables
// its pattern captured.
type MatchResult struct {
	Module  string
	Index   int
	Handler *mock.Handler
	Vars    mock.PathVars
}

// SelectHandler returns the first handler, in module order and then
// declaration order, whose pattern matches path and whose method predicate
// accepts method. Returns nil if none does.
func SelectHandler(modules []*mock.Module, m *matching.Matcher, method, path string) *MatchResult {
	for _, mod := range modules {
		for i := range mod.Handlers {
			h := &mod.Handlers[i]
			if !h.Matches(method) {
				continue
			}
			ok, vars := m.Match(h.Pattern, path)
			if !ok {
				continue
			}
			return &MatchResult{Module: mod.Key, Index: i, Handler: h, Vars: mock.PathVars(vars)}
		}
	}
	return nil
}
