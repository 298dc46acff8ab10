package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/getmockd/devmock/internal/storage"
	"github.com/getmockd/devmock/pkg/cli/internal/output"
	"github.com/getmockd/devmock/pkg/loader"
	"github.com/getmockd/devmock/pkg/logging"
	"github.com/getmockd/devmock/pkg/watch"
)

// moduleReport is one line of validate output.
type moduleReport struct {
	Path     string `json:"path"`
	Handlers int    `json:"handlers"`
	Error    string `json:"error,omitempty"`
}

func newValidateCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [dir]",
		Short: "Load every mock module once and report errors",
		Long: `Load every mock module below the mock root (or dir) exactly as serve would,
without starting a server. Exits non-zero if any module fails to load.`,
		Example: `  devmock validate
  devmock validate ./mock --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, g, firstArg(args))
		},
	}
}

func runValidate(cmd *cobra.Command, g *globalFlags, dir string) error {
	opts, warnings, err := resolveOptions(cmd, g, dir)
	if err != nil {
		return err
	}
	if err := opts.Validate(); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	for _, w := range warnings {
		output.Warn(cmd.ErrOrStderr(), "%v", w)
	}

	logger := logging.New(opts.Logging())
	l := loader.New(loader.Options{
		NativeSuffixes:   opts.NativeSuffixes,
		CompiledSuffixes: opts.CompiledSuffixes,
		Logger:           logger,
	})
	coord, err := watch.NewCoordinator(watch.Options{
		Root:   opts.MockRootDir,
		Ignore: opts.Ignore,
		Logger: logger,
	}, l, storage.NewRegistry())
	if err != nil {
		return err
	}
	if _, err := os.Stat(coord.Root()); err != nil {
		return fmt.Errorf("mock root %s: %w", coord.Root(), err)
	}

	ctx := cmd.Context()
	files, err := coord.Files(ctx)
	if err != nil {
		return err
	}

	reports := make([]moduleReport, 0, len(files))
	failed := 0
	for _, path := range files {
		rep := moduleReport{Path: relativeTo(coord.Root(), path)}
		handlers, err := l.Load(ctx, path)
		if err != nil {
			rep.Error = err.Error()
			failed++
		} else {
			rep.Handlers = len(handlers)
		}
		reports = append(reports, rep)
	}

	out := cmd.OutOrStdout()
	if g.jsonOutput {
		if err := output.JSON(out, reports); err != nil {
			return err
		}
	} else {
		w := output.Table(out)
		_, _ = fmt.Fprintln(w, "STATUS\tMODULE\tHANDLERS")
		for _, r := range reports {
			if r.Error != "" {
				_, _ = fmt.Fprintf(w, "FAIL\t%s\t-\n", r.Path)
				continue
			}
			_, _ = fmt.Fprintf(w, "ok\t%s\t%d\n", r.Path, r.Handlers)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		for _, r := range reports {
			if r.Error != "" {
				_, _ = fmt.Fprintf(out, "\n%s:\n  %s\n", r.Path, r.Error)
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d mock modules failed to load", failed, len(files))
	}
	return nil
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func relativeTo(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}
