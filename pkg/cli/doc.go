// Package cli implements the devmock command line: serve, validate,
// routes and version.
package cli
