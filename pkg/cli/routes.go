package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/getmockd/devmock/pkg/cli/internal/output"
	"github.com/getmockd/devmock/pkg/engine"
	"github.com/getmockd/devmock/pkg/logging"
	"github.com/getmockd/devmock/pkg/mock"
)

func newRoutesCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "routes [dir]",
		Short: "List mock handlers in dispatch order",
		Long: `Load the mock modules below the mock root (or dir) and print every handler in
the order requests are matched against them. Modules that fail to load are
logged and left out.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoutes(cmd, g, firstArg(args))
		},
	}
}

func runRoutes(cmd *cobra.Command, g *globalFlags, dir string) error {
	opts, warnings, err := resolveOptions(cmd, g, dir)
	if err != nil {
		return err
	}
	opts.PrintStartupLog = false
	for _, w := range warnings {
		output.Warn(cmd.ErrOrStderr(), "%v", w)
	}

	eng, err := engine.New(opts,
		engine.WithLogger(logging.New(opts.Logging())),
		engine.WithoutWatcher(),
		engine.WithStartupOutput(io.Discard),
	)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()
	if err := eng.Start(cmd.Context()); err != nil {
		return err
	}

	routes := eng.Routes()
	if routes == nil {
		routes = []mock.Route{}
	}
	out := cmd.OutOrStdout()
	if g.jsonOutput {
		return output.JSON(out, routes)
	}

	root := eng.Root()
	w := output.Table(out)
	_, _ = fmt.Fprintln(w, "METHOD\tPATTERN\tMODULE")
	for _, r := range routes {
		method := r.Method
		if method == "" {
			method = "*"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s#%d\n", method, r.Pattern, relativeTo(root, r.Module), r.Index)
	}
	return w.Flush()
}
