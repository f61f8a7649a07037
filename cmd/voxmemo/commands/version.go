package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haivivi/voxmemo/cmd/voxmemo/internal/build"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if formatOutput != "" {
			return output(build.Get(), "")
		}
		fmt.Fprintln(cmd.OutOrStdout(), build.String())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
