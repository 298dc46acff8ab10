package loader

import (
	"bytes"
	_ "embed"
	"errors"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed module.schema.json
var moduleSchemaJSON []byte

const moduleSchemaURL = "module.schema.json"

var (
	moduleSchemaOnce sync.Once
	moduleSchema     *jsonschema.Schema
	moduleSchemaErr  error
)

// compiledModuleSchema returns the schema every decoded module must satisfy.
func compiledModuleSchema() (*jsonschema.Schema, error) {
	moduleSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		if err := compiler.AddResource(moduleSchemaURL, bytes.NewReader(moduleSchemaJSON)); err != nil {
			moduleSchemaErr = err
			return
		}
		moduleSchema, moduleSchemaErr = compiler.Compile(moduleSchemaURL)
	})
	return moduleSchema, moduleSchemaErr
}

// checkSchema validates a decoded module and flattens schema failures into
// one line per violated location, e.g. "/0/status: must be >= 100".
func checkSchema(v any) error {
	schema, err := compiledModuleSchema()
	if err != nil {
		return err
	}
	err = schema.Validate(v)
	if err == nil {
		return nil
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return err
	}
	var lines []string
	collectSchemaErrors(verr, &lines)
	if len(lines) == 0 {
		return err
	}
	return errors.New(strings.Join(lines, "; "))
}

func collectSchemaErrors(err *jsonschema.ValidationError, lines *[]string) {
	if len(err.Causes) == 0 {
		loc := err.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		*lines = append(*lines, loc+": "+err.Message)
		return
	}
	for _, cause := range err.Causes {
		collectSchemaErrors(cause, lines)
	}
}
