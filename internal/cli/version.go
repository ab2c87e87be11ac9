package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Set with -ldflags "-X cnft-drop/go-backend/internal/cli.Version=...".
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "cnftdrop version=%s commit=%s build_date=%s\n", Version, Commit, BuildDate)
			return err
		},
	}
}
