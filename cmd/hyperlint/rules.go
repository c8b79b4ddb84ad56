package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/steveyegge/hyperlint/internal/analyzers"
)

var ruleDescription string

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List, view and create rules",
	Long: `Rules are markdown files of editorial instructions checked by the AI.
The directory defaults to custom_rules.rules_directory from the configuration.`,
}

var rulesListCmd = &cobra.Command{
	Use:   "list [rules-directory]",
	Short: "List the available rules",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := rulesDir(args, 0)
		if err != nil {
			return err
		}
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			return fmt.Errorf("rules directory does not exist or is not a directory: %s", dir)
		}
		rules, err := analyzers.ListRules(dir)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(rules) == 0 {
			fmt.Fprintf(out, "No rules found in directory: %s\n", dir)
			return nil
		}
		fmt.Fprintf(out, "Found %d rules in directory: %s\n\n", len(rules), dir)
		for _, r := range rules {
			if r.Description != "" {
				fmt.Fprintf(out, "- %s %s\n", cyan(r.Name), gray(r.Description))
				continue
			}
			fmt.Fprintf(out, "- %s\n", cyan(r.Name))
		}
		return nil
	},
}

var rulesViewCmd = &cobra.Command{
	Use:   "view <rule-name> [rules-directory]",
	Short: "Show the content of a rule",
	Long: `Show a rule by name, with or without the .md extension.

Examples:
  hyperlint rules view passive_voice
  hyperlint rules view bullet_consistency.md custom-rules/`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := rulesDir(args, 1)
		if err != nil {
			return err
		}
		rule, err := analyzers.LoadRule(dir, args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "--- Rule: %s ---\n\n", rule.Name)
		if rule.Description != "" {
			fmt.Fprintf(out, "%s\n\n", gray(rule.Description))
		}
		fmt.Fprintln(out, rule.Content)
		return nil
	},
}

var rulesCreateCmd = &cobra.Command{
	Use:   "create <rule-name> [rules-directory]",
	Short: "Create a rule from a template",
	Long: `Create a new rule file with a starter template. The directory is created
when missing; an existing rule is never overwritten.

Examples:
  hyperlint rules create passive_voice
  hyperlint rules create bullet_consistency custom-rules/ --description "Bullets end without periods"`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := rulesDir(args, 1)
		if err != nil {
			return err
		}
		path, err := analyzers.CreateRule(dir, args[0], ruleDescription, ruleTemplate(args[0]))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Created rule: %s\n", green("✓"), path)
		return nil
	},
}

func init() {
	rulesCreateCmd.Flags().StringVarP(&ruleDescription, "description", "d", "", "One-line description stored in front matter")

	rulesCmd.AddCommand(rulesListCmd, rulesViewCmd, rulesCreateCmd)
	rootCmd.AddCommand(rulesCmd)
}

// rulesDir returns args[i] when given, else the configured directory
func rulesDir(args []string, i int) (string, error) {
	if len(args) > i && args[i] != "" {
		return args[i], nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	if cfg.CustomRules.RulesDirectory == "" {
		return "", errors.New("no rules directory given or configured")
	}
	return cfg.CustomRules.RulesDirectory, nil
}

func ruleTemplate(name string) string {
	return fmt.Sprintf(`# Rule: %s

Instructions for the rule go here. Describe the changes to make to the document.

Example:
- Find instances of passive voice and convert to active voice
- Ensure bullet points are consistently formatted
- Replace deprecated terminology with approved terms
`, strings.TrimSuffix(name, analyzers.RuleExt))
}
