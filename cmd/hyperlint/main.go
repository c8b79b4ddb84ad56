package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	verbose    bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "hyperlint",
	Short: "Edit and improve Markdown and MDX documents",
	Long: `Hyperlint finds problems in Markdown and MDX documents with Vale and
AI-checked house rules, proposes line-level fixes, and applies the ones you
approve.

Available commands:
  apply      Apply Vale or rules fixes to a file or directory
  rules      List, view and create rules
  config     Manage hyperlint configuration
  approvals  Inspect recorded approval decisions
  cache      Manage the cache of AI line fixes`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show debug logs")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: search hyperlint.yaml, .hyperlint.yaml, .hyperlint.toml)")
}

// setupLogging sends structured logs to stderr. Progress and results go to
// stdout through fmt.
func setupLogging(verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
