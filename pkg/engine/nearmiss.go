package engine

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/getmockd/devmock/internal/matching"
	"github.com/getmockd/devmock/pkg/mock"
)

// NearMiss is a handler that almost answered a request.
type NearMiss struct {
	Module  string `json:"module"`
	Index   int    `json:"index"`
	Pattern string `json:"pattern"`
	Method  string `json:"method,omitempty"`
	Reason  string `json:"reason"`
	Score   int    `json:"score"`
}

func (n NearMiss) String() string {
	method := n.Method
	if method == "" {
		method = "*"
	}
	return fmt.Sprintf("%s %s (%s#%d): %s", method, n.Pattern, n.Module, n.Index, n.Reason)
}

// methodMissScore ranks a handler whose pattern matched above any partial
// path match.
const methodMissScore = 1 << 16

// NearMisses ranks the handlers that came closest to answering a request
// nothing matched: first those whose pattern matched but whose method did
// not, then those sharing the most leading path segments. Ties keep
// dispatch order. At most limit results are returned.
func NearMisses(modules []*mock.Module, m *matching.Matcher, method, path string, limit int) []NearMiss {
	var misses []NearMiss
	for _, mod := range modules {
		for i := range mod.Handlers {
			h := &mod.Handlers[i]
			miss := NearMiss{Module: mod.Key, Index: i, Pattern: h.Pattern, Method: h.Method}
			if ok, _ := m.Match(h.Pattern, path); ok {
				if h.Matches(method) {
					continue
				}
				miss.Score = methodMissScore
				miss.Reason = "method " + method + " not accepted"
			} else {
				n := matching.SharedSegments(h.Pattern, path)
				if n == 0 {
					continue
				}
				miss.Score = n
				miss.Reason = fmt.Sprintf("path differs after %d segment(s)", n)
			}
			misses = append(misses, miss)
		}
	}
	slices.SortStableFunc(misses, func(a, b NearMiss) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if limit > 0 && len(misses) > limit {
		misses = misses[:limit]
	}
	return misses
}
