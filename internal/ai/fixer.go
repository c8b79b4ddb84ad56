package ai

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/steveyegge/hyperlint/internal/types"
)

const fixTemperature = 0.25

var fixPromptTemplate = template.Must(template.New("fix").Parse(`Act as if you are a professional editor with 3 years of experience.
{{if .Context}}
Here is some context around the line in question
<context>
{{.Context}}
</context>
{{end}}
Rewrite the following line:

<line number={{.Line}}>
{{.Existing}}
</line>

To fix the following issue:

<issue>
{{.Issues}}
</issue>

Rewrite the entire line resolving the issue description. It is imperative to rewrite the entire line, even if the issue appears in a single word or part of the line. We are going to replace the entire above line so you must maintain the original line except for the fixes to the issues.

Respond with only a JSON object of the form {"replacement_content": "<the rewritten line>"}.
`))

type fixedLine struct {
	ReplacementContent *string `json:"replacement_content"`
}

// LineFixer rewrites one line through a model
type LineFixer struct {
	completer Completer
	model     string

	Temperature float64 // default 0.25
	MaxTokens   int     // 0 uses the completer's default
}

// NewLineFixer creates a fixer. An empty model uses the completer's default.
func NewLineFixer(completer Completer, model string) *LineFixer {
	return &LineFixer{completer: completer, model: model, Temperature: fixTemperature}
}

// Namespace identifies the fixer in cache keys
func (f *LineFixer) Namespace() string { return "line-fixer:" + f.model }

// BuildFixPrompt renders the prompt for issue with an optional context window
func BuildFixPrompt(issue types.ReplaceIssue, window string) (string, error) {
	var sb strings.Builder
	err := fixPromptTemplate.Execute(&sb, struct {
		Context  string
		Line     int
		Existing string
		Issues   string
	}{window, issue.Line, issue.ExistingContent, strings.Join(issue.Messages, "\n")})
	if err != nil {
		return "", fmt.Errorf("rendering fix prompt: %w", err)
	}
	return sb.String(), nil
}

// Fix returns the rewritten line with the original indentation. Errors are
// returned as is; callers decide whether to fall back to the original.
func (f *LineFixer) Fix(ctx context.Context, issue types.ReplaceIssue, window string) (string, error) {
	prompt, err := BuildFixPrompt(issue, window)
	if err != nil {
		return "", err
	}
	text, err := f.completer.Complete(ctx, prompt, CallOptions{
		Operation:   "fix line",
		Model:       f.model,
		MaxTokens:   f.MaxTokens,
		Temperature: f.Temperature,
	})
	if err != nil {
		return "", err
	}

	fixed, err := Parse[fixedLine](text, fmt.Sprintf("fix line %d", issue.Line))
	if err != nil {
		return "", err
	}
	if fixed.ReplacementContent == nil {
		return "", fmt.Errorf("fix line %d: response has no replacement_content", issue.Line)
	}
	return matchIndent(issue.ExistingContent, *fixed.ReplacementContent), nil
}

// matchIndent gives replacement exactly the leading spaces of original, and
// keeps it on one line.
func matchIndent(original, replacement string) string {
	replacement = strings.TrimRight(replacement, "\r\n")
	if i := strings.IndexByte(replacement, '\n'); i >= 0 {
		replacement = replacement[:i]
	}
	indent := original[:len(original)-len(strings.TrimLeft(original, " \t"))]
	return indent + strings.TrimLeft(replacement, " \t")
}
