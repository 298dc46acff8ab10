package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Compiler turns a non-native module source into native JSON text.
type Compiler interface {
	Compile(ctx context.Context, path string) ([]byte, error)
}

// CompilerFunc adapts a function to the Compiler interface.
type CompilerFunc func(ctx context.Context, path string) ([]byte, error)

// Compile calls f.
func (f CompilerFunc) Compile(ctx context.Context, path string) ([]byte, error) {
	return f(ctx, path)
}

// YAMLCompiler compiles YAML module sources to JSON.
type YAMLCompiler struct{}

// Compile reads path as YAML and re-encodes the document as JSON.
func (YAMLCompiler) Compile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid YAML syntax: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("empty YAML document")
	}

	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("YAML document has no JSON form: %w", err)
	}
	return out, nil
}

var _ Compiler = YAMLCompiler{}
