package engine

import (
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/getmockd/devmock/internal/matching"
	"github.com/getmockd/devmock/pkg/httputil"
	"github.com/getmockd/devmock/pkg/logging"
	"github.com/getmockd/devmock/pkg/mock"
)

// ModuleLister is the read side of the module registry.
type ModuleLister interface {
	ListOrdered() []*mock.Module
}

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	// URLPrefixes put a request in scope when its path starts with any of them.
	URLPrefixes []string

	// NoHandlerResponse404 answers unmatched in-scope requests with 404.
	// When false they go to the next handler.
	NoHandlerResponse404 bool

	// Matcher defaults to a matching.Matcher with the default cache size.
	Matcher *matching.Matcher

	Logger *slog.Logger

	// Observer, if set, is told the outcome of every in-scope request.
	Observer RequestObserver
}

// Outcomes reported to a RequestObserver.
const (
	OutcomeMatched     = "matched"
	OutcomeNotFound    = "not_found"
	OutcomeFallthrough = "fallthrough"
)

// RequestObserver receives the outcome of each in-scope request.
type RequestObserver interface {
	ObserveRequest(outcome string)
}

// Dispatcher routes in-scope requests to the first matching mock handler.
//
// It never reads the request body and does not recover panics raised by
// handlers.
type Dispatcher struct {
	modules  ModuleLister
	prefixes []string
	notFound bool
	matcher  *matching.Matcher
	logger   *slog.Logger
	obs      RequestObserver
}

// NewDispatcher creates a Dispatcher reading modules from ml.
func NewDispatcher(ml ModuleLister, opts DispatcherOptions) *Dispatcher {
	d := &Dispatcher{
		modules:  ml,
		prefixes: slices.Clone(opts.URLPrefixes),
		notFound: opts.NoHandlerResponse404,
		matcher:  opts.Matcher,
		logger:   opts.Logger,
		obs:      opts.Observer,
	}
	if d.matcher == nil {
		d.matcher = matching.NewMatcher(matching.DefaultCacheSize)
	}
	if d.logger == nil {
		d.logger = logging.Nop()
	}
	return d
}

// InScope reports whether path starts with one of the configured prefixes.
func (d *Dispatcher) InScope(path string) bool {
	for _, p := range d.prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// Middleware returns an http.Handler that dispatches in-scope requests and
// hands everything else to next.
func (d *Dispatcher) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d.ServeNext(w, r, next)
	})
}

// ServeNext dispatches r. Out-of-scope requests, and unmatched ones when
// 404 responses are disabled, are passed to next untouched. A nil next
// behaves like http.NotFoundHandler.
func (d *Dispatcher) ServeNext(w http.ResponseWriter, r *http.Request, next http.Handler) {
	if next == nil {
		next = http.NotFoundHandler()
	}
	path := r.URL.Path
	if !d.InScope(path) {
		next.ServeHTTP(w, r)
		return
	}

	match := SelectHandler(d.modules.ListOrdered(), d.matcher, r.Method, path)
	if match == nil {
		if d.logger.Enabled(r.Context(), slog.LevelDebug) {
			d.logger.Debug("no mock handler matched",
				"method", r.Method,
				"path", path,
				"nearMisses", nearMissStrings(NearMisses(d.modules.ListOrdered(), d.matcher, r.Method, path, maxNearMisses)),
			)
		}
		if d.notFound {
			d.observe(OutcomeNotFound)
			writeNoHandler(w, r)
			return
		}
		d.observe(OutcomeFallthrough)
		next.ServeHTTP(w, r)
		return
	}
	d.observe(OutcomeMatched)

	d.logger.Debug("mock handler matched",
		"method", r.Method,
		"path", path,
		"module", match.Module,
		"index", match.Index,
		"pattern", match.Handler.Pattern,
	)

	vars := match.Vars
	ctx := mock.WithPathVars(r.Context(), vars)
	body, _ := mock.BodyFromContext(ctx)
	req := &mock.Request{
		Request: r.WithContext(ctx),
		Params:  vars,
		Query:   parseQuery(r.URL.RawQuery),
		Body:    body,
	}
	match.Handler.Handle(w, req, vars)
}

func (d *Dispatcher) observe(outcome string) {
	if d.obs != nil {
		d.obs.ObserveRequest(outcome)
	}
}

// maxNearMisses bounds the near misses logged for an unmatched request.
const maxNearMisses = 3

func nearMissStrings(misses []NearMiss) []string {
	out := make([]string, len(misses))
	for i, m := range misses {
		out[i] = m.String()
	}
	return out
}

func writeNoHandler(w http.ResponseWriter, r *http.Request) {
	uri := r.RequestURI
	if uri == "" {
		uri = r.URL.RequestURI()
	}
	httputil.WriteText(w, http.StatusNotFound,
		fmt.Sprintf(`[devmock] no handler found, { url: "%s", method: "%s" }`, uri, r.Method))
}
