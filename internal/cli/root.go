package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	rootPath   string
	outputJSON bool
)

// Execute runs the root cobra command.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "pocketup",
		Short:         "Install and update cores and their assets",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&rootPath, "path", "", "Install root (defaults to the current directory)")
	cmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output machine-readable JSON")

	cmd.AddCommand(newUpdateCmd())
	cmd.AddCommand(newAssetsCmd())
	cmd.AddCommand(newInstancesCmd())
	cmd.AddCommand(newUninstallCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}
