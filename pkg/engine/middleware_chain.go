package engine

import (
	"net/http"
)

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// MiddlewareChain runs pass-through layers, such as a body parser, in front
// of the dispatcher. The layers only see in-scope requests; everything else
// goes straight to the host's next handler.
type MiddlewareChain struct {
	dispatcher *Dispatcher
	layers     []Middleware
}

// NewMiddlewareChain creates a chain ending in d. Layers run in the order
// given, the first one outermost.
func NewMiddlewareChain(d *Dispatcher, layers ...Middleware) *MiddlewareChain {
	return &MiddlewareChain{dispatcher: d, layers: layers}
}

// Wrap returns a handler that sends in-scope requests through the layers
// and the dispatcher, and all other requests to next.
func (mc *MiddlewareChain) Wrap(next http.Handler) http.Handler {
	if next == nil {
		next = http.NotFoundHandler()
	}

	var h http.Handler = mc.dispatcher.Middleware(next)
	for i := len(mc.layers) - 1; i >= 0; i-- {
		h = mc.layers[i](h)
	}
	scoped := h

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !mc.dispatcher.InScope(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		scoped.ServeHTTP(w, r)
	})
}
