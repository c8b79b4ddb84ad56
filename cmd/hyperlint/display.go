package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/steveyegge/hyperlint/internal/approval"
	"github.com/steveyegge/hyperlint/internal/folder"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
)

// printFileResult writes the outcome of one file: a status line, the diff on
// dry runs, and every failure the engine recorded along the way
func printFileResult(w io.Writer, fr folder.FileResult, dryRun bool) {
	res := fr.Result
	switch {
	case fr.Err != nil && res == nil:
		fmt.Fprintf(w, "%s %s: %v\n", red("✗"), fr.Path, fr.Err)
		return
	case res == nil:
		return
	case dryRun && res.Changed():
		fmt.Fprintf(w, "%s %s would change (%d edits)\n", cyan("~"), fr.Path, len(res.Changes))
		fmt.Fprintln(w, colorDiff(res.Diff()))
	case res.Written:
		fmt.Fprintf(w, "%s %s updated (%d edits)\n", green("✓"), fr.Path, len(res.Changes))
	case res.Stats.IssuesSeen == 0:
		fmt.Fprintf(w, "%s %s no issues\n", green("✓"), fr.Path)
	default:
		fmt.Fprintf(w, "%s %s unchanged\n", yellow("-"), fr.Path)
	}

	s := res.Stats
	fmt.Fprintf(w, "  %s\n", gray(fmt.Sprintf("%d issues, %d approved, %d rejected, %d unchanged, %d dropped",
		s.IssuesSeen, s.Approved, s.Rejected, s.Unchanged, s.Dropped)))
	for _, v := range res.Violations {
		fmt.Fprintf(w, "  %s %v\n", yellow("protected:"), v)
	}
	for _, f := range res.AnalyzerFailures {
		fmt.Fprintf(w, "  %s %v\n", red("analyzer:"), f)
	}
	for _, f := range res.ResolverFailures {
		fmt.Fprintf(w, "  %s %v\n", red("fix:"), f)
	}
	for _, f := range res.LogErrors {
		fmt.Fprintf(w, "  %s %v\n", yellow("log:"), f)
	}
	if fr.Err != nil {
		fmt.Fprintf(w, "  %s %v\n", red("error:"), fr.Err)
	}
}

// colorDiff colors the lines of a unified diff
func colorDiff(diff string) string {
	lines := strings.Split(strings.TrimRight(diff, "\n"), "\n")
	for i, l := range lines {
		switch {
		case strings.HasPrefix(l, "+++"), strings.HasPrefix(l, "---"):
			lines[i] = gray(l)
		case strings.HasPrefix(l, "@@"):
			lines[i] = cyan(l)
		case strings.HasPrefix(l, "+"):
			lines[i] = green(l)
		case strings.HasPrefix(l, "-"):
			lines[i] = red(l)
		}
	}
	return strings.Join(lines, "\n")
}

// printRecord writes one decision log entry on a single line
func printRecord(w io.Writer, rec approval.Record) {
	verdict := green("approved")
	if !rec.Approved {
		verdict = red("rejected")
	}
	reason := ""
	if rec.Reason != "" {
		reason = " " + gray("("+rec.Reason+")")
	}
	fmt.Fprintf(w, "%s %s %s:%d %s%s\n",
		gray(rec.Date.Local().Format("2006-01-02 15:04:05")),
		verdict, rec.FilePath, rec.Line, rec.IssueType, reason)
	if len(rec.Messages) > 0 {
		fmt.Fprintf(w, "    %s\n", strings.Join(rec.Messages, "; "))
	}
}
