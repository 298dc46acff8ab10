package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version is injected during build
	Version = "dev"
	// Commit is injected during build
	Commit = "none"
	// BuildDate is injected during build
	BuildDate = "unknown"
)

// globalFlags holds the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	envFile    string
	logLevel   string
	logFormat  string
	logFile    string
	root       string
	prefixes   []string
	ignore     []string
	jsonOutput bool
}

// NewRootCommand builds the devmock command tree.
func NewRootCommand() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "devmock",
		Short: "devmock serves hot-reloaded mock API handlers in front of a dev server",
		Long: `devmock intercepts requests under a set of URL prefixes and answers them from
mock modules kept in a directory. Modules are reloaded as soon as they change
on disk. Everything else is passed to an upstream dev server.

Configuration is layered: defaults, then devmock.yaml, then .env and DEVMOCK_*
environment variables, then flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&g.configPath, "config", "c", "", "Config file path (default: $DEVMOCK_CONFIG or ./devmock.yaml)")
	pf.StringVar(&g.envFile, "env-file", ".env", "Dotenv file loaded before reading DEVMOCK_* variables")
	pf.StringVar(&g.logLevel, "log-level", "", "Log level (debug, info, warn, error, off)")
	pf.StringVar(&g.logFormat, "log-format", "", "Log format (text, json)")
	pf.StringVar(&g.logFile, "log-file", "", "Also write logs to this file, rotated by size")
	pf.StringVarP(&g.root, "root", "r", "", "Mock module directory")
	pf.StringSliceVarP(&g.prefixes, "prefix", "p", nil, "URL prefix to intercept (repeatable)")
	pf.StringSliceVar(&g.ignore, "ignore", nil, "Glob, relative to the root, of files to skip (repeatable)")
	pf.BoolVar(&g.jsonOutput, "json", false, "Output command results in JSON format")

	root.AddCommand(
		newServeCommand(g),
		newValidateCommand(g),
		newRoutesCommand(g),
		newVersionCommand(),
	)
	return root
}

// Execute runs the command line and exits non-zero on error. With no
// arguments it runs serve.
func Execute() {
	root := NewRootCommand()
	if len(os.Args) < 2 {
		root.SetArgs([]string{"serve"})
	}
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
