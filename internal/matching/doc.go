// Package matching implements path pattern matching for mock handlers.
//
// Patterns use Ant-style syntax and are matched segment by segment against
// the whole request path:
//
//	/api/users/{id}        matches /api/users/42          (id=42)
//	/api/test1/*           matches /api/test1/2, not /api/test1/users/5
//	/api/files/**          matches /api/files and /api/files/a/b/c
//	/api/v{ver:\d+}/ping   matches /api/v2/ping           (ver=2)
//
// A pattern never matches a mere prefix of the path. Malformed patterns are
// reported by Validate and otherwise behave as "no match".
//
// Key types:
//
//   - Matcher: concurrency-safe matcher with a bounded cache of compiled patterns
//   - PatternError: describes why a pattern is malformed
//   - SharedSegments: how far a pattern gets into a path, for diagnostics
package matching
