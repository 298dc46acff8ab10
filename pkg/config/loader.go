package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigError represents a configuration file error.
type ConfigError struct {
	Path    string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Path + ": " + e.Message
}

// ErrMockModulesIgnored is returned as a warning when a file sets
// mockModules, which the engine maintains itself.
var ErrMockModulesIgnored = errors.New("mockModules is managed automatically and was ignored")

// LoadFile merges the YAML file at path into o. Keys absent from the file
// keep their current values. Unknown keys are rejected.
//
// The returned warnings are not fatal.
func LoadFile(path string, o *Options) (warnings []error, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Message: err.Error()}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var present map[string]any
	if err := yaml.Unmarshal(data, &present); err != nil {
		return nil, &ConfigError{Path: path, Message: strings.TrimPrefix(err.Error(), "yaml: ")}
	}

	fromFile := o.Clone()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fromFile); err != nil && !errors.Is(err, io.EOF) {
		return nil, &ConfigError{Path: path, Message: strings.TrimPrefix(err.Error(), "yaml: ")}
	}

	if _, ok := present["mockModules"]; ok {
		warnings = append(warnings, fmt.Errorf("%s: %w", path, ErrMockModulesIgnored))
		fromFile.MockModules = o.MockModules
	}

	sources := o.Sources
	*o = fromFile
	o.Sources = sources
	for key := range present {
		o.SetSource(key, SourceFile)
	}
	return warnings, nil
}

// Load builds Options from defaults, the config file at path (skipped when
// path is empty or, for the default file name, missing) and the environment.
func Load(path string, lookup LookupFunc) (Options, []error, error) {
	o := Default()
	var warnings []error

	if path != "" {
		_, statErr := os.Stat(path)
		switch {
		case statErr == nil:
			w, err := LoadFile(path, &o)
			if err != nil {
				return Options{}, nil, err
			}
			warnings = append(warnings, w...)
		case path != DefaultFileName || !errors.Is(statErr, os.ErrNotExist):
			return Options{}, nil, &ConfigError{Path: path, Message: statErr.Error()}
		}
	}

	if err := ApplyEnv(&o, lookup); err != nil {
		return Options{}, nil, err
	}
	return o, warnings, nil
}
