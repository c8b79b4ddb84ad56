package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/steveyegge/hyperlint/internal/approval"
	"github.com/steveyegge/hyperlint/internal/config"
)

var (
	applyDryRun          bool
	applyRequireApproval bool
	applyApprovalMode    string
	applyLogApprovals    bool
	applyLogBackend      string
	applyValeConfig      string
	applyIncludeRules    []string
	applyExcludeRules    []string
	applyParallel        int
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply fixes to a file or directory",
	Long: `Collect issues with an analyzer, fix each affected line, and write the
approved changes back.

A directory is processed recursively; files are picked by include_pattern and
skipped by exclude_patterns from the configuration.`,
}

var applyValeCmd = &cobra.Command{
	Use:   "vale <path>",
	Short: "Fix the issues Vale reports",
	Long: `Run Vale on each document and rewrite every flagged line.

Examples:
  hyperlint apply vale docs/guide.md
  hyperlint apply vale docs/ --vale-config styles/.vale.ini
  hyperlint apply vale README.md --dry-run
  hyperlint apply vale README.md --require-approval=false
  hyperlint apply vale README.md --log-approvals=false`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runApply(cmd, args[0], []string{config.EditorVale})
	},
}

var applyRulesCmd = &cobra.Command{
	Use:   "rules <path> [rules-directory]",
	Short: "Fix violations of AI-checked rules",
	Long: `Check each document against the markdown rules in a directory and fix or
delete the lines that break them. Lines needing judgment are only reported.

Examples:
  hyperlint apply rules docs/guide.md rules/
  hyperlint apply rules README.md rules/ --include-rules passive_voice,bullet_consistency
  hyperlint apply rules docs/ rules/ --exclude-rules deprecated_terms
  hyperlint apply rules docs/guide.md --dry-run`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 2 {
			rulesDirOverride = args[1]
		}
		return runApply(cmd, args[0], []string{config.EditorRules})
	},
}

var applyAllCmd = &cobra.Command{
	Use:   "all <path>",
	Short: "Run every enabled analyzer",
	Long:  `Run the analyzers listed in enabled_editors together, in one pass per file.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runApply(cmd, args[0], nil)
	},
}

// rulesDirOverride is the positional rules directory of `apply rules`
var rulesDirOverride string

func init() {
	for _, c := range []*cobra.Command{applyValeCmd, applyRulesCmd, applyAllCmd} {
		f := c.Flags()
		f.BoolVar(&applyDryRun, "dry-run", false, "Show the changes as a diff without writing or logging")
		f.BoolVar(&applyRequireApproval, "require-approval", true, "Ask before applying each change")
		f.StringVar(&applyApprovalMode, "approval-mode", "", fmt.Sprintf("Approval policy %v", approval.Modes))
		f.BoolVar(&applyLogApprovals, "log-approvals", true, "Record every approval decision")
		f.StringVar(&applyLogBackend, "log-backend", "", "Decision log backend (jsonl, sqlite, none)")
		f.IntVarP(&applyParallel, "parallel", "p", 0, "Files processed at once (default from config)")
	}
	for _, c := range []*cobra.Command{applyValeCmd, applyAllCmd} {
		c.Flags().StringVar(&applyValeConfig, "vale-config", "", "Path to .vale.ini")
	}
	for _, c := range []*cobra.Command{applyRulesCmd, applyAllCmd} {
		c.Flags().StringSliceVar(&applyIncludeRules, "include-rules", nil, "Only run these rules (comma-separated)")
		c.Flags().StringSliceVar(&applyExcludeRules, "exclude-rules", nil, "Skip these rules (comma-separated)")
	}

	applyCmd.AddCommand(applyValeCmd, applyRulesCmd, applyAllCmd)
	rootCmd.AddCommand(applyCmd)
}

// applyFlags copies the flags the user set over cfg. Unset flags keep the
// configured values.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	if applyDryRun {
		cfg.DryRun = true
	}
	if f.Changed("require-approval") {
		cfg.RequireApproval = applyRequireApproval
	}
	if applyApprovalMode != "" {
		cfg.ApprovalMode = approval.Mode(strings.ToLower(applyApprovalMode))
	}
	if f.Changed("log-approvals") {
		cfg.LogApprovals = applyLogApprovals
	}
	if applyLogBackend != "" {
		cfg.LogBackend = approval.Backend(strings.ToLower(applyLogBackend))
	}
	if applyParallel > 0 {
		cfg.MaxParallelFiles = applyParallel
	}
	if applyValeConfig != "" {
		cfg.Vale.ConfigPath = applyValeConfig
	}
	if rulesDirOverride != "" {
		cfg.CustomRules.RulesDirectory = rulesDirOverride
	}
	if len(applyIncludeRules) > 0 {
		cfg.CustomRules.IncludeRules = applyIncludeRules
	}
	if len(applyExcludeRules) > 0 {
		cfg.CustomRules.ExcludeRules = applyExcludeRules
	}
	return cfg.Validate()
}

func runApply(cmd *cobra.Command, path string, names []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return err
	}
	if names == nil {
		names = cfg.EnabledEditors
	}
	if len(names) == 0 {
		return fmt.Errorf("no analyzers enabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp(cfg)
	defer a.Close()
	return a.apply(ctx, path, names)
}

func (a *app) apply(ctx context.Context, path string, names []string) error {
	proc, err := a.processor(names)
	if err != nil {
		return err
	}

	report, err := proc.Run(ctx, path)
	if report != nil {
		for _, fr := range report.Files {
			printFileResult(a.out, fr, a.cfg.DryRun)
		}
		if len(report.Files) == 0 {
			fmt.Fprintf(a.out, "\n%s No matching files under %s\n\n", yellow("✨"), path)
			return nil
		}
		if len(report.Files) > 1 {
			fmt.Fprintf(a.out, "\n%s\n", report.Summary())
		}
	}
	if err != nil {
		return err
	}
	if failed := report.Failed(); len(failed) > 0 {
		return fmt.Errorf("%d of %d files failed", len(failed), len(report.Files))
	}
	return nil
}
