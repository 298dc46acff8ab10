package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Environment variable names.
const (
	EnvConfig               = "DEVMOCK_CONFIG"
	EnvLogLevel             = "DEVMOCK_LOG_LEVEL"
	EnvLogFormat            = "DEVMOCK_LOG_FORMAT"
	EnvLogFile              = "DEVMOCK_LOG_FILE"
	EnvURLPrefixes          = "DEVMOCK_URL_PREFIXES"
	EnvMockRootDir          = "DEVMOCK_MOCK_ROOT_DIR"
	EnvNativeSuffixes       = "DEVMOCK_NATIVE_SUFFIXES"
	EnvCompiledSuffixes     = "DEVMOCK_COMPILED_SUFFIXES"
	EnvIgnore               = "DEVMOCK_IGNORE"
	EnvNoHandlerResponse404 = "DEVMOCK_NO_HANDLER_RESPONSE_404"
	EnvPrintStartupLog      = "DEVMOCK_PRINT_STARTUP_LOG"
	EnvAdminRoutes          = "DEVMOCK_ADMIN_ROUTES"
	EnvListen               = "DEVMOCK_LISTEN"
	EnvUpstream             = "DEVMOCK_UPSTREAM"
)

// LookupFunc looks up an environment variable, like os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides o with the DEVMOCK_* variables that are set. List
// values are comma separated. A nil lookup reads the process environment.
func ApplyEnv(o *Options, lookup LookupFunc) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	str := func(env, key string, dst *string) {
		if v, ok := lookup(env); ok {
			*dst = strings.TrimSpace(v)
			o.SetSource(key, SourceEnv)
		}
	}
	list := func(env, key string, dst *[]string) {
		if v, ok := lookup(env); ok {
			*dst = SplitList(v)
			o.SetSource(key, SourceEnv)
		}
	}
	var errs []string
	boolean := func(env, key string, dst *bool) {
		v, ok := lookup(env)
		if !ok {
			return
		}
		b, err := parseBool(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", env, err))
			return
		}
		*dst = b
		o.SetSource(key, SourceEnv)
	}

	str(EnvLogLevel, "logLevel", &o.LogLevel)
	str(EnvLogFormat, "logFormat", &o.LogFormat)
	str(EnvLogFile, "logFile", &o.LogFile)
	list(EnvURLPrefixes, "urlPrefixes", &o.URLPrefixes)
	str(EnvMockRootDir, "mockRootDir", &o.MockRootDir)
	list(EnvNativeSuffixes, "nativeSuffixes", &o.NativeSuffixes)
	list(EnvCompiledSuffixes, "compiledSuffixes", &o.CompiledSuffixes)
	list(EnvIgnore, "ignore", &o.Ignore)
	boolean(EnvNoHandlerResponse404, "noHandlerResponse404", &o.NoHandlerResponse404)
	boolean(EnvPrintStartupLog, "printStartupLog", &o.PrintStartupLog)
	boolean(EnvAdminRoutes, "adminRoutes", &o.AdminRoutes)
	str(EnvListen, "listen", &o.Listen)
	str(EnvUpstream, "upstream", &o.Upstream)

	if len(errs) > 0 {
		return &ConfigError{Path: "environment", Message: strings.Join(errs, "; ")}
	}
	return nil
}

// SplitList splits a comma-separated value, dropping empty items.
func SplitList(v string) []string {
	out := []string{}
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "on":
		return true, nil
	case "no", "off":
		return false, nil
	}
	return strconv.ParseBool(strings.TrimSpace(v))
}
