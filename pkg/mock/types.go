// Package mock provides the handler, module, and request types shared by the
// module loader, the registry, and the request dispatcher.
package mock

import (
	"net/http"
	"time"
)

// PathVars holds the values captured by {name} placeholders in a pattern.
type PathVars map[string]string

// HandleFunc is the signature mock authors implement.
//
// pathVars is the same map as r.Params; it is kept as a separate argument for
// handlers written against the older three-argument contract.
type HandleFunc func(w http.ResponseWriter, r *Request, pathVars PathVars)

// Handler pairs a path pattern (and optional method) with a response function.
// A Handler is immutable once registered; its position within the owning
// module's slice defines its match precedence.
type Handler struct {
	// Pattern is a PathMatcher pattern, e.g. "/api/users/{id}".
	Pattern string

	// Method restricts the handler to one HTTP method. Empty matches any.
	// Comparison is exact and case-sensitive.
	Method string

	// Handle produces the response.
	Handle HandleFunc

	// Definition is the declarative source the handler was built from.
	// Nil for handlers registered programmatically.
	Definition *Definition
}

// Matches reports whether the handler accepts the given method.
func (h *Handler) Matches(method string) bool {
	return h.Method == "" || h.Method == method
}

// Module is the unit of hot reload: one source contributing zero or more handlers.
type Module struct {
	// Key identifies the module, normally its absolute source path.
	Key string

	// Handlers in declaration order.
	Handlers []Handler

	// LoadedAt is when this version of the module was registered.
	LoadedAt time.Time
}

// Request is the view of an intercepted request handed to a HandleFunc.
type Request struct {
	*http.Request

	// Params holds the extracted path variables. It is the same map passed
	// as the third HandleFunc argument and returned by PathVarsFromContext.
	Params PathVars

	// Query is the query string decoded into a flat map (last value wins).
	// It never contains path variables.
	Query map[string]string

	// Body is the parsed request body, populated only when a body parsing
	// middleware ran earlier in the chain. Nil otherwise.
	Body any
}

// Route describes one registered handler for listings and diagnostics.
type Route struct {
	Module  string `json:"module"`
	Index   int    `json:"index"`
	Pattern string `json:"pattern"`
	Method  string `json:"method,omitempty"`
}
