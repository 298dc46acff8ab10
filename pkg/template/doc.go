// Package template provides response body templating for mock handlers.
// It supports variable substitution like {{now}}, {{uuid}}, {{request.url}}.
//
// # Built-in Variables
//
//   - {{now}} - Current time in RFC3339 format
//   - {{timestamp}} - Current Unix timestamp
//   - {{timestamp.iso}}, {{timestamp.unix_ms}}
//   - {{uuid}}, {{uuid.short}}
//   - {{random.int(min, max)}}, {{random.string(N)}}
//
// # Request Variables
//
//   - {{request.method}} - HTTP method
//   - {{request.path}} - Decoded request path
//   - {{request.url}} - Request URI as received
//   - {{request.query.name}} - Query parameter (last value wins)
//   - {{request.params.name}} - Path variable; {{request.pathParam.name}} is an alias
//   - {{request.header.name}} - Request header value
//   - {{request.body.field}} - Field of a body parsed upstream (dot paths, list indexes)
//
// # Module Variables
//
//   - {{vars.name}} - Value declared in the module's "vars" object
//
// # Functions
//
//   - {{upper(value)}}, {{lower(value)}}
//   - {{default(value, "fallback")}}
//   - {{jsonPath("$.items[0].id")}} - JSONPath over the parsed request body
//   - {{sequence("name")}} or {{sequence("name", start)}} - per-load counter
//
// Unknown expressions evaluate to the empty string.
package template
