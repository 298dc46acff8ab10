package engine

import (
	"net/http"
	"strings"
	"time"

	"github.com/getmockd/devmock/pkg/httputil"
	"github.com/getmockd/devmock/pkg/mock"
)

// AdminPrefix is the path prefix of the built-in diagnostic routes.
const AdminPrefix = "/__devmock/"

// adminHandler serves the diagnostic routes and passes other requests on.
func (e *Engine) adminHandler(next http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+AdminPrefix+"health", e.handleHealth)
	mux.HandleFunc("GET "+AdminPrefix+"routes", e.handleRoutes)
	mux.Handle("GET "+AdminPrefix+"metrics", e.metrics.Handler())

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, AdminPrefix) {
			next.ServeHTTP(w, r)
			return
		}
		mux.ServeHTTP(w, r)
	})
}

func (e *Engine) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteOK(w, map[string]any{
		"status":    "healthy",
		"modules":   e.store.Len(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (e *Engine) handleRoutes(w http.ResponseWriter, _ *http.Request) {
	routes := e.Routes()
	if routes == nil {
		routes = []mock.Route{}
	}
	httputil.WriteOK(w, routes)
}
