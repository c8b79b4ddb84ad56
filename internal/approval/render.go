package approval

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/steveyegge/hyperlint/internal/types"
)

const defaultWidth = 100

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	beforeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	afterStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	noteStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
)

func panelStyle(kind types.IssueKind) lipgloss.Style {
	border := lipgloss.Color("2")
	switch kind {
	case types.KindDelete:
		border = lipgloss.Color("1")
	case types.KindInsert:
		border = lipgloss.Color("4")
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(0, 1)
}

func panelTitle(kind types.IssueKind) string {
	switch kind {
	case types.KindDelete:
		return "Deletion Needed"
	case types.KindInsert:
		return "Insertion Needed"
	default:
		return "Replacement Needed"
	}
}

func terminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 20 {
		return w
	}
	return defaultWidth
}

// RenderRequest draws a request as a bordered panel with a side-by-side diff
func RenderRequest(w io.Writer, req Request) {
	width := terminalWidth()
	var body strings.Builder

	fmt.Fprintf(&body, "%s\n", titleStyle.Render(fmt.Sprintf("%s  %s:%d", panelTitle(req.Kind), req.FilePath, req.Line)))
	for _, msg := range req.Messages {
		fmt.Fprintf(&body, "%s\n", noteStyle.Render("• "+msg))
	}

	after := req.After
	if req.Kind == types.KindDelete {
		after = "(line removed)"
	}
	body.WriteString(sideBySide(req.Before, after, width-6))

	fmt.Fprintln(w, panelStyle(req.Kind).Render(body.String()))
}

// sideBySide lays out before and after in two columns fitting width cells
func sideBySide(before, after string, width int) string {
	col := (width - 3) / 2
	if col < 10 {
		col = 10
	}
	left := runewidth.FillRight(runewidth.Truncate("- "+before, col, "…"), col)
	right := runewidth.Truncate("+ "+after, col, "…")
	return beforeStyle.Render(left) + " │ " + afterStyle.Render(right)
}

// RenderLineDiff prints every line that differs between before and after,
// side by side. Returns the number of differing lines.
func RenderLineDiff(w io.Writer, before, after string) int {
	oldLines := strings.Split(before, "\n")
	newLines := strings.Split(after, "\n")
	n := len(oldLines)
	if len(newLines) > n {
		n = len(newLines)
	}

	col := (terminalWidth() - 12) / 2
	if col < 10 {
		col = 10
	}
	red := color.New(color.FgRed).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()

	changed := 0
	for i := 0; i < n; i++ {
		var o, nw string
		if i < len(oldLines) {
			o = oldLines[i]
		}
		if i < len(newLines) {
			nw = newLines[i]
		}
		if o == nw {
			continue
		}
		changed++
		left := runewidth.FillRight(runewidth.Truncate(o, col, "…"), col)
		fmt.Fprintf(w, "%5d  %s │ %s\n", i+1, red(left), green(runewidth.Truncate(nw, col, "…")))
	}
	if changed == 0 {
		fmt.Fprintln(w, "No changes.")
	}
	return changed
}
