package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ValidationError represents an invalid option value.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "warning": true, "error": true, "off": true,
}

// Validate checks o and returns every problem found, joined.
func (o Options) Validate() error {
	var errs []error
	add := func(field, format string, args ...any) {
		errs = append(errs, &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if !validLogLevels[strings.ToLower(o.LogLevel)] {
		add("logLevel", "%q is not one of debug, info, warn, error, off", o.LogLevel)
	}
	if f := strings.ToLower(o.LogFormat); f != "text" && f != "json" {
		add("logFormat", "%q is not one of text, json", o.LogFormat)
	}

	if len(o.URLPrefixes) == 0 {
		add("urlPrefixes", "at least one prefix is required")
	}
	for i, p := range o.URLPrefixes {
		if !strings.HasPrefix(p, "/") {
			add(fmt.Sprintf("urlPrefixes[%d]", i), "%q must start with /", p)
		}
	}

	if strings.TrimSpace(o.MockRootDir) == "" {
		add("mockRootDir", "must not be empty")
	}
	if len(o.NativeSuffixes) == 0 {
		add("nativeSuffixes", "at least one suffix is required")
	}
	checkSuffixes := func(field string, suffixes []string) {
		for i, s := range suffixes {
			if !strings.HasPrefix(s, ".") || len(s) < 2 {
				add(fmt.Sprintf("%s[%d]", field, i), "%q must start with . and name an extension", s)
			}
		}
	}
	checkSuffixes("nativeSuffixes", o.NativeSuffixes)
	checkSuffixes("compiledSuffixes", o.CompiledSuffixes)

	for i, g := range o.Ignore {
		if !doublestar.ValidatePattern(g) {
			add(fmt.Sprintf("ignore[%d]", i), "%q is not a valid glob", g)
		}
	}

	if o.Upstream != "" {
		u, err := url.Parse(o.Upstream)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			add("upstream", "%q must be an absolute http or https URL", o.Upstream)
		}
	}

	return errors.Join(errs...)
}
