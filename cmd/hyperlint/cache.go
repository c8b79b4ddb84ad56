package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/steveyegge/hyperlint/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the cache of AI line fixes",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached fix",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		disk, err := cache.OpenDisk(cfg.CacheDir())
		if err != nil {
			return err
		}
		if err := disk.DropAll(); err != nil {
			return fmt.Errorf("clearing %s: %w", disk.Dir(), err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Cleared fix cache: %s\n", green("✓"), disk.Dir())
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
