package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Build information, set with -ldflags "-X".
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display version information for wikidumps",
		Args:  usageArgs(cobra.NoArgs),
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "wikidumps version %s\n", Version)
			_, _ = fmt.Fprintf(out, "Build date: %s\n", BuildDate)
			_, _ = fmt.Fprintf(out, "Git commit: %s\n", GitCommit)
		},
	}

	return cmd
}
