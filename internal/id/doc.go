// Package id provides unique identifier generation utilities.
//
//   - UUID: standard UUID v4 for {{uuid}} and general-purpose identifiers
//   - Short: 8 hex characters for {{uuid.short}} and temporary file names
package id
