// Package engine intercepts HTTP requests whose path falls under a set of
// URL prefixes and answers them from hot-reloaded mock modules.
//
// An Engine owns the module registry, the loader and the watch coordinator.
// Its Handler sits in front of a host handler (a dev server, a reverse proxy,
// http.NotFoundHandler): requests outside the prefixes are passed through
// untouched, requests inside them are matched against every registered
// handler in module order and declaration order, and the first match
// answers. Unmatched in-scope requests get a plain-text 404 unless
// NoHandlerResponse404 is off, in which case they fall through as well.
package engine
