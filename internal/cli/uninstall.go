package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"pocketup/internal/paths"
	"pocketup/internal/updater"
)

var uninstallAssets bool

func newUninstallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "uninstall <core>",
		Short: "Remove an installed core",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openEnv(cmd.ErrOrStderr(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer env.Close()

			ok, err := paths.DirExists(env.fs, paths.CoreDir(args[0]))
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("core %s is not installed", args[0])
			}

			eng := updater.New(env.fs, env.store, env.client, env.client, nil, updater.Options{}, env.log)
			if err := eng.Uninstall(args[0], uninstallAssets); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Uninstalled %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&uninstallAssets, "assets", false, "Also remove the core's own asset directories")
	return cmd
}
