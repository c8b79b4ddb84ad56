package analyzers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/steveyegge/hyperlint/internal/ai"
	"github.com/steveyegge/hyperlint/internal/types"
)

// RulesName is the registry name of the rules analyzer
const RulesName = "rules"

// ViolationFinder reports the lines of a document breaking one rule.
// ai.RuleChecker is the production implementation.
type ViolationFinder interface {
	FindViolations(ctx context.Context, textWithLineNumbers, ruleName, ruleContent string) ([]ai.Violation, error)
}

// RulesConfig configures the rules analyzer
type RulesConfig struct {
	Dir     string
	Include []string // when set, only these rules run
	Exclude []string // ignored when Include is set
	Finder  ViolationFinder
	Logger  *slog.Logger
}

// Rules checks a document against every selected rule in a directory
type Rules struct {
	dir     string
	include []string
	exclude map[string]bool
	finder  ViolationFinder
	logger  *slog.Logger
}

// NewRules creates the analyzer
func NewRules(cfg RulesConfig) *Rules {
	r := &Rules{
		dir:     cfg.Dir,
		include: cfg.Include,
		exclude: make(map[string]bool, len(cfg.Exclude)),
		finder:  cfg.Finder,
		logger:  cfg.Logger,
	}
	for _, name := range cfg.Exclude {
		r.exclude[name] = true
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

func (r *Rules) Name() string { return RulesName }

// PrerunChecks verifies the directory exists and holds at least one rule,
// and that the finder is reachable when it can tell
func (r *Rules) PrerunChecks(ctx context.Context) error {
	info, err := os.Stat(r.dir)
	if err != nil {
		return fmt.Errorf("rules directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("rules directory %s is not a directory", r.dir)
	}
	if r.finder == nil {
		return errors.New("rules analyzer has no violation finder")
	}
	if hc, ok := r.finder.(interface{ HealthCheck(context.Context) error }); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return err
		}
	}
	rules, err := r.Selected()
	if err != nil {
		return err
	}
	r.logger.Info("found rules", "dir", r.dir, "count", len(rules))
	return nil
}

// Selected returns the rules that will run, in name order
func (r *Rules) Selected() ([]Rule, error) {
	all, err := ListRules(r.dir)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoRules, r.dir)
	}

	byName := make(map[string]Rule, len(all))
	for _, rule := range all {
		byName[rule.Name] = rule
	}

	var selected []Rule
	if len(r.include) > 0 {
		wanted := make(map[string]bool, len(r.include))
		for _, name := range r.include {
			if _, ok := byName[name]; !ok {
				r.logger.Warn("included rule not found", "rule", name)
				continue
			}
			wanted[name] = true
		}
		for _, rule := range all {
			if wanted[rule.Name] {
				selected = append(selected, rule)
			}
		}
	} else {
		for name := range r.exclude {
			if _, ok := byName[name]; !ok {
				r.logger.Warn("excluded rule not found", "rule", name)
			}
		}
		for _, rule := range all {
			if r.exclude[rule.Name] {
				r.logger.Info("excluding rule", "rule", rule.Name)
				continue
			}
			selected = append(selected, rule)
		}
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("%w after filtering %s", ErrNoRules, r.dir)
	}
	return selected, nil
}

// Analyze asks the finder about each selected rule in turn. A rule that
// fails is logged and skipped; the analyzer fails only when every rule does.
func (r *Rules) Analyze(ctx context.Context, doc *types.Document, issues *types.IssueSet) error {
	rules, err := r.Selected()
	if err != nil {
		return err
	}
	text := doc.TextWithLineNumbers()

	var errs []error
	for _, rule := range rules {
		if err := ctx.Err(); err != nil {
			return err
		}
		violations, err := r.finder.FindViolations(ctx, text, rule.Name, rule.Content)
		if err != nil {
			r.logger.Warn("rule check failed", "rule", rule.Name, "file", doc.Path, "error", err)
			errs = append(errs, fmt.Errorf("rule %s: %w", rule.Name, err))
			continue
		}
		r.apply(doc, rule, violations, issues)
	}
	if len(errs) == len(rules) {
		return errors.Join(errs...)
	}
	return nil
}

func (r *Rules) apply(doc *types.Document, rule Rule, violations []ai.Violation, issues *types.IssueSet) {
	if len(violations) == 0 {
		r.logger.Info("no issues found for rule", "rule", rule.Name, "file", doc.Path)
		return
	}
	proposed := 0
	for _, v := range violations {
		content, ok := doc.Line(v.LineNumber)
		if !ok {
			r.logger.Warn("skipping violation outside the document",
				"rule", rule.Name, "file", doc.Path, "line", v.LineNumber)
			continue
		}
		message := fmt.Sprintf("Rule '%s': %s", rule.Name, v.IssueMessage)
		switch v.Resolution {
		case ai.ResolutionEditLine:
			issues.AddReplacement(types.ReplaceIssue{Line: v.LineNumber, Messages: []string{message}, ExistingContent: content})
			proposed++
		case ai.ResolutionDeleteLine:
			issues.AddDeletion(types.DeleteIssue{Line: v.LineNumber, Messages: []string{message}, ExistingContent: content})
			proposed++
		case ai.ResolutionFlagLine:
			r.logger.Warn("rule flagged line for manual review",
				"rule", rule.Name, "file", doc.Path, "line", v.LineNumber, "message", v.IssueMessage)
		}
	}
	r.logger.Info("applied rule", "rule", rule.Name, "file", doc.Path, "proposed_changes", proposed)
}
