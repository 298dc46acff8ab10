package mock

import (
	"fmt"
	"regexp"
	"strings"
)

// Definition is one declarative handler as written in a mock module file.
type Definition struct {
	Pattern string            `json:"pattern" yaml:"pattern"`
	Method  string            `json:"method,omitempty" yaml:"method,omitempty"`
	Status  int               `json:"status,omitempty" yaml:"status,omitempty"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`

	// Body is a response template, e.g. "Hello {{request.params.name}}".
	Body string `json:"body,omitempty" yaml:"body,omitempty"`

	// JSON is an expression whose result is encoded as the JSON response body.
	JSON string `json:"json,omitempty" yaml:"json,omitempty"`

	DelayMs int `json:"delayMs,omitempty" yaml:"delayMs,omitempty"`
}

// ValidationError represents a validation failure with context.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on %s: %s", e.Field, e.Message)
}

// headerNameRegex validates HTTP header names (RFC 7230).
var headerNameRegex = regexp.MustCompile(`^[A-Za-z0-9!#$%&'*+\-.^_\x60|~]+$`)

// Validate checks the structural rules of a definition. Pattern syntax is
// not checked here; a malformed pattern simply never matches.
func (d *Definition) Validate() error {
	if strings.TrimSpace(d.Pattern) == "" {
		return &ValidationError{Field: "pattern", Message: "pattern is required"}
	}
	if !strings.HasPrefix(d.Pattern, "/") {
		return &ValidationError{Field: "pattern", Message: "pattern must start with /"}
	}
	if d.Method != "" && strings.TrimSpace(d.Method) != d.Method {
		return &ValidationError{Field: "method", Message: "method must not contain surrounding whitespace"}
	}
	if d.Status != 0 && (d.Status < 100 || d.Status > 599) {
		return &ValidationError{Field: "status", Message: fmt.Sprintf("status %d out of range 100-599", d.Status)}
	}
	if d.Body != "" && d.JSON != "" {
		return &ValidationError{Field: "json", Message: "body and json are mutually exclusive"}
	}
	if d.DelayMs < 0 {
		return &ValidationError{Field: "delayMs", Message: "delayMs must not be negative"}
	}
	for name := range d.Headers {
		if !headerNameRegex.MatchString(name) {
			return &ValidationError{Field: "headers", Message: fmt.Sprintf("invalid header name %q", name)}
		}
	}
	return nil
}

// StatusCode returns the configured status, defaulting to 200.
func (d *Definition) StatusCode() int {
	if d.Status == 0 {
		return 200
	}
	return d.Status
}
