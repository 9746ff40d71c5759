package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"panelctl/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect panelctl configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Long: `Prints the configuration serve would use, after layering the defaults,
the user config and the project config (or the file given with --config).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			out, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to encode configuration: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config files panelctl reads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if configPath != "" {
				_, err := fmt.Fprintf(out, "%s (--config)\n", configPath)
				return err
			}

			paths, err := config.LayeredConfigPaths()
			if err != nil {
				return err
			}
			for _, p := range paths {
				state := "missing"
				if _, statErr := os.Stat(p); statErr == nil {
					state = "found"
				}
				if _, err := fmt.Fprintf(out, "%s (%s)\n", p, state); err != nil {
					return err
				}
			}
			return nil
		},
	})

	return cmd
}
