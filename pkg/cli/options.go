package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/getmockd/devmock/pkg/config"
)

// resolveOptions layers defaults, the config file, the dotenv file, the
// environment and finally any flag the user set. dir, when not empty,
// replaces the mock root.
func resolveOptions(cmd *cobra.Command, g *globalFlags, dir string) (config.Options, []error, error) {
	if err := loadEnvFile(cmd, g.envFile); err != nil {
		return config.Options{}, nil, err
	}

	path := g.configPath
	if path == "" {
		path = os.Getenv(config.EnvConfig)
	}
	if path == "" {
		path = config.DefaultFileName
	}

	opts, warnings, err := config.Load(path, nil)
	if err != nil {
		return config.Options{}, nil, err
	}

	flags := cmd.Flags()
	setString := func(name, key string, dst *string, v string) {
		if flags.Changed(name) {
			*dst = v
			opts.SetSource(key, config.SourceFlag)
		}
	}
	setList := func(name, key string, dst *[]string, v []string) {
		if flags.Changed(name) {
			*dst = v
			opts.SetSource(key, config.SourceFlag)
		}
	}
	setString("log-level", "logLevel", &opts.LogLevel, g.logLevel)
	setString("log-format", "logFormat", &opts.LogFormat, g.logFormat)
	setString("log-file", "logFile", &opts.LogFile, g.logFile)
	setString("root", "mockRootDir", &opts.MockRootDir, g.root)
	setList("prefix", "urlPrefixes", &opts.URLPrefixes, g.prefixes)
	setList("ignore", "ignore", &opts.Ignore, g.ignore)

	if dir != "" {
		opts.MockRootDir = dir
		opts.SetSource("mockRootDir", config.SourceFlag)
	}
	return opts, warnings, nil
}

// loadEnvFile loads a dotenv file without overriding variables that are
// already set. The default file may be absent; an explicit one may not.
func loadEnvFile(cmd *cobra.Command, path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("env-file") {
		return nil
	}
	return fmt.Errorf("loading env file %s: %w", path, err)
}
