package config

import (
	"slices"

	"github.com/getmockd/devmock/pkg/logging"
)

// Default values.
const (
	DefaultLogLevel    = "error"
	DefaultLogFormat   = "text"
	DefaultMockRootDir = "./mock"
	DefaultListen      = ":4280"
	DefaultFileName    = "devmock.yaml"
)

// Value sources, recorded in Options.Sources.
const (
	SourceDefault = "default"
	SourceFile    = "file"
	SourceEnv     = "env"
	SourceFlag    = "flag"
)

// Options configures a devmock engine and the CLI around it.
type Options struct {
	// LogLevel is one of debug, info, warn, error or off.
	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"`
	// LogFile additionally writes logs to a rotating file when set.
	LogFile string `yaml:"logFile,omitempty"`

	// URLPrefixes put a request in scope when its path starts with any of them.
	URLPrefixes []string `yaml:"urlPrefixes"`

	// MockRootDir holds the mock module files.
	MockRootDir      string   `yaml:"mockRootDir"`
	NativeSuffixes   []string `yaml:"nativeSuffixes"`
	CompiledSuffixes []string `yaml:"compiledSuffixes"`
	// Ignore holds doublestar globs relative to MockRootDir.
	Ignore []string `yaml:"ignore,omitempty"`

	// NoHandlerResponse404 answers in-scope requests without a matching
	// handler with 404 instead of passing them on.
	NoHandlerResponse404 bool `yaml:"noHandlerResponse404"`
	PrintStartupLog      bool `yaml:"printStartupLog"`
	AdminRoutes          bool `yaml:"adminRoutes"`

	// Listen and Upstream are only used by `devmock serve`.
	Listen   string `yaml:"listen"`
	Upstream string `yaml:"upstream,omitempty"`

	// MockModules is maintained by the engine and ignored when supplied.
	MockModules []string `yaml:"mockModules,omitempty"`

	// Sources maps option keys to the layer that set them.
	Sources map[string]string `yaml:"-"`
}

var optionKeys = []string{
	"logLevel", "logFormat", "logFile", "urlPrefixes", "mockRootDir",
	"nativeSuffixes", "compiledSuffixes", "ignore", "noHandlerResponse404",
	"printStartupLog", "adminRoutes", "listen", "upstream",
}

// Default returns Options with every field at its default value.
func Default() Options {
	o := Options{
		LogLevel:             DefaultLogLevel,
		LogFormat:            DefaultLogFormat,
		URLPrefixes:          []string{"/api/"},
		MockRootDir:          DefaultMockRootDir,
		NativeSuffixes:       []string{".mock.json"},
		CompiledSuffixes:     []string{".mock.yaml", ".mock.yml"},
		Ignore:               []string{},
		NoHandlerResponse404: true,
		PrintStartupLog:      true,
		Listen:               DefaultListen,
		Sources:              make(map[string]string, len(optionKeys)),
	}
	for _, k := range optionKeys {
		o.Sources[k] = SourceDefault
	}
	return o
}

// Clone returns a deep copy, so the result can be held as an immutable
// snapshot while the original keeps changing.
func (o Options) Clone() Options {
	c := o
	c.URLPrefixes = slices.Clone(o.URLPrefixes)
	c.NativeSuffixes = slices.Clone(o.NativeSuffixes)
	c.CompiledSuffixes = slices.Clone(o.CompiledSuffixes)
	c.Ignore = slices.Clone(o.Ignore)
	c.MockModules = slices.Clone(o.MockModules)
	if o.Sources != nil {
		c.Sources = make(map[string]string, len(o.Sources))
		for k, v := range o.Sources {
			c.Sources[k] = v
		}
	}
	return c
}

// Source returns the layer that set key, or SourceDefault.
func (o Options) Source(key string) string {
	if s, ok := o.Sources[key]; ok {
		return s
	}
	return SourceDefault
}

// SetSource records the layer that set key.
func (o *Options) SetSource(key, source string) {
	if o.Sources == nil {
		o.Sources = make(map[string]string)
	}
	o.Sources[key] = source
}

// Logging returns the logging configuration described by o.
func (o Options) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.ParseLevel(o.LogLevel)
	cfg.Format = logging.ParseFormat(o.LogFormat)
	if o.LogFile != "" {
		cfg.File = &logging.FileConfig{Path: o.LogFile, MaxSizeMB: 10, MaxBackups: 3}
	}
	return cfg
}
