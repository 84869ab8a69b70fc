package version

import (
	"fmt"

	"github.com/spf13/cobra"
)

// AttachCobraVersionCommand attaches a `version` subcommand to the provided root command.
// With --short it prints only the semantic version, which scripts compare with releases.
func AttachCobraVersionCommand(root *cobra.Command) {
	var short bool

	command := &cobra.Command{
		Use:   "version",
		Short: "Print version information.",
		Long:  "Print the installed version with the commit hash and build timestamp injected at build time. The upgrader treats this version as installed unless installed_version is configured.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			if short {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), Short())

				return
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), Full())
		},
	}

	command.Flags().BoolVar(&short, "short", false, "print only the semantic version")
	root.AddCommand(command)
}
