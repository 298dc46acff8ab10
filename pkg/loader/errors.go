package loader

import (
	"errors"
	"fmt"
)

// Sentinel errors for module loading, usable with errors.Is.
var (
	ErrRead        = errors.New("cannot read module")
	ErrSyntax      = errors.New("invalid JSON syntax")
	ErrCompile     = errors.New("module compilation failed")
	ErrExportShape = errors.New("invalid module export")
	ErrUnsupported = errors.New("unsupported module type")
)

// LoadError represents an error loading a specific module file.
type LoadError struct {
	Path    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Path, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

func newLoadError(path string, kind error, message string, cause error) *LoadError {
	err := kind
	if cause != nil {
		err = fmt.Errorf("%w: %w", kind, cause)
	}
	return &LoadError{Path: path, Message: message, Err: err}
}
