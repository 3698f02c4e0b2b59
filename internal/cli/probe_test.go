package cli

import (
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaperl/internal/config"
)

// newProbeCommand returns a command that captures the config the root
// command stored in its context.
func newProbeCommand(out **config.Config) *cobra.Command {
	return &cobra.Command{
		Use: "probe",
		RunE: func(cmd *cobra.Command, _ []string) error {
			*out = config.FromContext(cmd.Context())
			return nil
		},
	}
}
