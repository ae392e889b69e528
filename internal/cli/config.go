package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pocketup/internal/config"
	"pocketup/internal/paths"
)

var configInitForce bool

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the updater configuration",
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigValidateCmd())
	cmd.AddCommand(newConfigInitCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration in YAML",
		RunE:  runConfigShow,
	}
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration for errors",
		RunE:  runConfigValidate,
	}
}

func newConfigInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration to the install root",
		RunE:  runConfigInit,
	}
	cmd.Flags().BoolVar(&configInitForce, "force", false, "Replace an existing configuration file")
	return cmd
}

func loadConfig() (paths.InstallPaths, config.Config, error) {
	pp, err := paths.Resolve(rootPath)
	if err != nil {
		return paths.InstallPaths{}, config.Config{}, err
	}
	cfg, err := config.Load(pp.ConfigFile)
	if err != nil {
		return pp, config.Config{}, err
	}
	if err := cfg.ApplyEnv(pp.Root); err != nil {
		return pp, config.Config{}, err
	}
	return pp, cfg, nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	_, cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if outputJSON {
		return writeJSON(cmd.OutOrStdout(), cfg)
	}

	data, err := cfg.Marshal()
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), string(data))
	if len(data) == 0 || data[len(data)-1] != '\n' {
		fmt.Fprintln(cmd.OutOrStdout())
	}
	return nil
}

func runConfigValidate(cmd *cobra.Command, _ []string) error {
	_, cfg, err := loadConfig()
	if err != nil {
		return err
	}

	results := cfg.Validate()
	if outputJSON {
		if results == nil {
			results = []config.ValidationResult{}
		}
		if err := writeJSON(cmd.OutOrStdout(), results); err != nil {
			return err
		}
	} else if len(results) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Configuration OK")
	} else {
		for _, r := range results {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", r.Level, r.Message)
		}
	}

	if n := len(config.Errors(results)); n > 0 {
		return fmt.Errorf("%d configuration error(s)", n)
	}
	return nil
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	pp, err := paths.Resolve(rootPath)
	if err != nil {
		return err
	}
	written, err := writeDefaultConfig(pp.ConfigFile, configInitForce)
	if err != nil {
		return err
	}
	if !written {
		return fmt.Errorf("%s already exists (use --force to replace it)", pp.ConfigFile)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", pp.ConfigFile)
	return nil
}

// writeDefaultConfig writes the default configuration to path. An existing
// file is only replaced with force; the boolean reports whether it wrote.
func writeDefaultConfig(path string, force bool) (bool, error) {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return false, fmt.Errorf("check %s: %w", config.FileName, err)
		}
	}

	data, err := config.Default().Marshal()
	if err != nil {
		return false, err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", config.FileName, err)
	}
	return true, nil
}
