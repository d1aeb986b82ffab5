package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/vantagecompute/vantage-cli/internal/vantage"
)

// Version is set at build time with -ldflags "-X .../internal/cli.Version=..."
var Version = "dev"

func newVersionCommand(s *state) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the CLI version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if vantage.OutputOptions(cmd.Context()).JSON {
				return printJSON(map[string]string{
					"version": Version,
					"go":      runtime.Version(),
				}, cmd.OutOrStdout())
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "vantage %s (%s)\n", Version, runtime.Version())
			return err
		},
	}
}
