package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/steveyegge/hyperlint/internal/approval"
)

var approvalsLimit int

var approvalsCmd = &cobra.Command{
	Use:   "approvals",
	Short: "Inspect recorded approval decisions",
}

var approvalsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Show the most recent decisions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.LogBackend == approval.BackendNone {
			return fmt.Errorf("decision logging is disabled (log_backend: none)")
		}
		log, err := approval.OpenLog(approval.LogConfig{Backend: cfg.LogBackend, Dir: cfg.JudgeDir()})
		if err != nil {
			return err
		}
		defer log.Close()
		return tailDecisions(cmd.Context(), cmd.OutOrStdout(), log, approvalsLimit)
	},
}

func init() {
	approvalsTailCmd.Flags().IntVarP(&approvalsLimit, "lines", "n", 20, "Number of decisions to show")

	approvalsCmd.AddCommand(approvalsTailCmd)
	rootCmd.AddCommand(approvalsCmd)
}

func tailDecisions(ctx context.Context, w io.Writer, log approval.Log, limit int) error {
	reader, ok := log.(approval.Reader)
	if !ok {
		return fmt.Errorf("log backend cannot be read back")
	}
	records, err := reader.Recent(ctx, limit)
	if err != nil {
		return fmt.Errorf("reading %s: %w", log.Path(), err)
	}
	if len(records) == 0 {
		fmt.Fprintf(w, "No decisions recorded in %s\n", log.Path())
		return nil
	}
	for _, rec := range records {
		printRecord(w, rec)
	}
	return nil
}
