package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/getmockd/devmock/pkg/cli/internal/output"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			jsonOutput, _ := cmd.Flags().GetBool("json")
			if jsonOutput {
				return output.JSON(cmd.OutOrStdout(), map[string]string{
					"version":   Version,
					"commit":    Commit,
					"buildDate": BuildDate,
					"go":        runtime.Version(),
				})
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "devmock %s (commit %s, built %s, %s)\n", Version, Commit, BuildDate, runtime.Version())
			return err
		},
	}
}
