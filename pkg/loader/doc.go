// Package loader turns mock module files into handler lists.
//
// A module is either native JSON (".mock.json") or a source that a Compiler
// turns into JSON first (".mock.yaml" by default). Compiled output is
// written to a temporary artifact named "<source>.<8 hex>.tmp.json" next to
// the source, loaded like a native module, and removed again whatever the
// outcome.
//
// A module exports either an array of handler definitions or an object:
//
//	{
//	  "vars": {"region": "eu"},
//	  "handlers": [
//	    {"pattern": "/api/users/{id}", "method": "GET", "json": "{id: params.id, n: seq('users')}"},
//	    {"pattern": "/api/**", "status": 503, "body": "down for {{vars.region}}"}
//	  ]
//	}
//
// Errors are reported as *LoadError wrapping one of ErrRead, ErrSyntax,
// ErrCompile, ErrExportShape or ErrUnsupported.
package loader
