package mock

import "context"

type contextKey int

const (
	pathVarsKey contextKey = iota
	bodyKey
)

// WithPathVars attaches path variables to ctx.
func WithPathVars(ctx context.Context, vars PathVars) context.Context {
	return context.WithValue(ctx, pathVarsKey, vars)
}

// PathVarsFromContext returns the path variables attached by the dispatcher,
// or nil when the request was not dispatched to a mock handler.
func PathVarsFromContext(ctx context.Context) PathVars {
	vars, _ := ctx.Value(pathVarsKey).(PathVars)
	return vars
}

// WithBody attaches a parsed request body to ctx. Body parsing middleware
// calls this; the dispatcher copies the value into Request.Body.
func WithBody(ctx context.Context, body any) context.Context {
	return context.WithValue(ctx, bodyKey, body)
}

// BodyFromContext returns the parsed body attached with WithBody.
func BodyFromContext(ctx context.Context) (any, bool) {
	v := ctx.Value(bodyKey)
	return v, v != nil
}
