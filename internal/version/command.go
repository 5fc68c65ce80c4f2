package version

import (
	"fmt"

	"github.com/spf13/cobra"
)

// AttachCobraVersionCommand attaches a `version` subcommand to the provided root command
// and sets root's --version output to the short version.
func AttachCobraVersionCommand(root *cobra.Command) {
	var short bool

	root.Version = Short()

	command := &cobra.Command{
		Use:   "version",
		Short: "Print version information.",
		Long: "Print version information including commit hash, build timestamp and Go toolchain. " +
			"Values are injected at build time or read from the VCS stamp embedded by the Go toolchain.",
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			if short {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), Short())

				return
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), Full())
		},
	}

	command.Flags().BoolVar(&short, "short", false, "print only the version number")
	root.AddCommand(command)
}
