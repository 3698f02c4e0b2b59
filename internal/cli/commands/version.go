package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaperl/internal/hir"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display leaperl version and build information.`,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "leaperl v%s\n", version)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Erlang semantic analysis built with %s (default OTP release %d)\n",
				runtime.Version(), hir.DefaultOTPRelease)
		},
	}
}
