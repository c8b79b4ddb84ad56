package ai

import (
	"context"
	"fmt"
	"strings"
)

// Resolution is how a rule violation should be handled
type Resolution string

const (
	ResolutionEditLine   Resolution = "edit_line"
	ResolutionDeleteLine Resolution = "delete_line"
	ResolutionFlagLine   Resolution = "flag_line"
)

// Violation is one line breaking a rule
type Violation struct {
	LineNumber   int        `json:"line_number"`
	IssueMessage string     `json:"issue_message"`
	Resolution   Resolution `json:"resolution"`
}

type violationsResponse struct {
	Violations []Violation `json:"rules_violations"`
}

const rulesSystemPrompt = `You review documents against a single editorial rule and report every line that violates it.

If a line can simply be edited to be correct, use the resolution "edit_line".
If a line can be deleted entirely, use the resolution "delete_line".
If a line has a more nuanced problem that isn't straightforward to fix without guidance, use the resolution "flag_line".`

// BuildRulesPrompt renders the violation-finding prompt
func BuildRulesPrompt(textWithLineNumbers, ruleName, ruleContent string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<rule name=%q>\n%s\n</rule>\n\n", ruleName, strings.TrimSpace(ruleContent))
	sb.WriteString("<document>\n")
	sb.WriteString(textWithLineNumbers)
	sb.WriteString("\n</document>\n\n")
	sb.WriteString("Each document line is prefixed with its line number. Respond with only a JSON object of the form ")
	sb.WriteString(`{"rules_violations": [{"line_number": 3, "issue_message": "...", "resolution": "edit_line"}]}`)
	sb.WriteString(". Use an empty list when the document follows the rule.\n")
	return sb.String()
}

// RuleChecker finds rule violations in a document through a model
type RuleChecker struct {
	completer Completer
	model     string

	MaxTokens int // 0 uses the completer's default
}

// NewRuleChecker creates a checker. An empty model uses the completer's default.
func NewRuleChecker(completer Completer, model string) *RuleChecker {
	return &RuleChecker{completer: completer, model: model}
}

// HealthCheck reports whether the completer can take calls. Completers
// without a health check are assumed ready.
func (r *RuleChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := r.completer.(interface{ HealthCheck(context.Context) error }); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

// FindViolations asks the model for every line of the document breaking the
// rule. Violations with an unknown resolution are dropped.
func (r *RuleChecker) FindViolations(ctx context.Context, textWithLineNumbers, ruleName, ruleContent string) ([]Violation, error) {
	text, err := r.completer.Complete(ctx, BuildRulesPrompt(textWithLineNumbers, ruleName, ruleContent), CallOptions{
		Operation: "rule " + ruleName,
		Model:     r.model,
		MaxTokens: r.MaxTokens,
		System:    rulesSystemPrompt,
	})
	if err != nil {
		return nil, err
	}

	resp, err := Parse[violationsResponse](text, "rule "+ruleName)
	if err != nil {
		// Some responses skip the wrapper object
		list, listErr := Parse[[]Violation](text, "rule "+ruleName)
		if listErr != nil {
			return nil, err
		}
		resp.Violations = list
	}

	out := make([]Violation, 0, len(resp.Violations))
	for _, v := range resp.Violations {
		switch v.Resolution {
		case ResolutionEditLine, ResolutionDeleteLine, ResolutionFlagLine:
			out = append(out, v)
		}
	}
	return out, nil
}
