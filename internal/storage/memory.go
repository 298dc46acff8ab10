package storage

import (
	"os"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/getmockd/devmock/pkg/mock"
)

// Registry is an insertion-ordered, copy-on-write ModuleStore.
//
// Readers load an immutable snapshot without locking, so a dispatch running
// concurrently with a reload sees either the old module or the new one in
// full. Writers are serialised by mu.
type Registry struct {
	mu   sync.Mutex
	snap atomic.Pointer[snapshot]
	now  func() time.Time
}

type snapshot struct {
	order []*mock.Module
	byKey map[string]int
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	r := &Registry{now: time.Now}
	r.snap.Store(&snapshot{byKey: map[string]int{}})
	return r
}

// Upsert registers handlers under key. The handler slice is copied. An existing
// key keeps its position so re-registering after an edit does not change
// cross-module priority.
func (r *Registry) Upsert(key string, handlers []mock.Handler) {
	mod := &mock.Module{
		Key:      key,
		Handlers: slices.Clone(handlers),
		LoadedAt: r.now(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.snap.Load()
	next := &snapshot{
		order: slices.Clone(cur.order),
		byKey: cur.byKey,
	}
	if i, ok := cur.byKey[key]; ok {
		next.order[i] = mod
	} else {
		next.order = append(next.order, mod)
		next.byKey = indexOf(next.order)
	}
	r.snap.Store(next)
}

// Remove deletes key. Removing an absent key is a no-op.
func (r *Registry) Remove(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.snap.Load()
	i, ok := cur.byKey[key]
	if !ok {
		return false
	}
	order := slices.Delete(slices.Clone(cur.order), i, i+1)
	r.snap.Store(&snapshot{order: order, byKey: indexOf(order)})
	return true
}

// RemoveAllUnder deletes every module whose key equals dir or starts with dir
// followed by a path separator, and returns the removed keys in order.
func (r *Registry) RemoveAllUnder(dir string) []string {
	if dir == "" {
		return nil
	}
	if trimmed := strings.TrimRight(dir, `/\`); trimmed != "" {
		dir = trimmed
	} else {
		// Only separators: the filesystem root.
		dir = dir[:1]
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.snap.Load()
	var removed []string
	order := make([]*mock.Module, 0, len(cur.order))
	for _, m := range cur.order {
		if isUnder(m.Key, dir) {
			removed = append(removed, m.Key)
			continue
		}
		order = append(order, m)
	}
	if len(removed) > 0 {
		r.snap.Store(&snapshot{order: order, byKey: indexOf(order)})
	}
	return removed
}

// Get returns the module registered under key, or nil.
func (r *Registry) Get(key string) *mock.Module {
	cur := r.snap.Load()
	if i, ok := cur.byKey[key]; ok {
		return cur.order[i]
	}
	return nil
}

// ListOrdered returns the registered modules in registration order. The
// returned slice is owned by the caller; the modules must not be modified.
func (r *Registry) ListOrdered() []*mock.Module {
	return slices.Clone(r.snap.Load().order)
}

// Keys returns the registered keys in registration order.
func (r *Registry) Keys() []string {
	order := r.snap.Load().order
	keys := make([]string, len(order))
	for i, m := range order {
		keys[i] = m.Key
	}
	return keys
}

// Len returns the number of registered modules.
func (r *Registry) Len() int {
	return len(r.snap.Load().order)
}

// Routes flattens the registry into dispatch order.
func (r *Registry) Routes() []mock.Route {
	var routes []mock.Route
	for _, m := range r.snap.Load().order {
		for i, h := range m.Handlers {
			routes = append(routes, mock.Route{Module: m.Key, Index: i, Pattern: h.Pattern, Method: h.Method})
		}
	}
	return routes
}

func indexOf(order []*mock.Module) map[string]int {
	idx := make(map[string]int, len(order))
	for i, m := range order {
		idx[m.Key] = i
	}
	return idx
}

func isUnder(key, dir string) bool {
	if key == dir {
		return true
	}
	if !strings.HasPrefix(key, dir) {
		return false
	}
	if isSeparator(dir[len(dir)-1]) {
		return true
	}
	return isSeparator(key[len(dir)])
}

func isSeparator(c byte) bool {
	return c == '/' || c == os.PathSeparator
}

// Ensure Registry implements ModuleStore.
var _ ModuleStore = (*Registry)(nil)
