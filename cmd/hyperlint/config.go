package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/steveyegge/hyperlint/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage hyperlint configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a default configuration file",
	Long: `Write the default configuration to path (default .hyperlint.yaml). The format
follows the extension: .yaml, .yml or .toml. An existing file is left alone.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.DefaultFileName
		if len(args) == 1 {
			path = args[0]
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Created configuration: %s\n", green("✓"), path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration after the config file and HYPERLINT_* environment
overrides are applied.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, used, err := config.Resolve(configPath)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		format := used
		if used == "" {
			format = config.DefaultFileName
			fmt.Fprintln(out, gray("# no configuration file found, showing defaults"))
		} else {
			fmt.Fprintln(out, gray("# "+used))
		}
		data, err := cfg.Marshal(format)
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	},
}

func init() {
	configCmd.AddCommand(configInitCmd, configShowCmd)
	rootCmd.AddCommand(configCmd)
}
