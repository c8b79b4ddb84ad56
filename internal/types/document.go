package types

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Document is an ordered, 1-indexed view of a text file's lines
type Document struct {
	Path  string
	lines []string
}

// NewDocument splits text on newlines. An empty text is a one-line document
// whose only line is empty, matching how the text round-trips through Join.
func NewDocument(path, text string) *Document {
	return &Document{Path: path, lines: strings.Split(text, "\n")}
}

// Len returns the number of lines
func (d *Document) Len() int { return len(d.lines) }

// Line returns the content of line n (1-indexed)
func (d *Document) Line(n int) (string, bool) {
	if n < 1 || n > len(d.lines) {
		return "", false
	}
	return d.lines[n-1], true
}

// Lines returns a copy of all lines
func (d *Document) Lines() []string {
	out := make([]string, len(d.lines))
	copy(out, d.lines)
	return out
}

// Text rejoins the lines
func (d *Document) Text() string { return strings.Join(d.lines, "\n") }

// Ext returns the lower-cased file extension, e.g. ".mdx"
func (d *Document) Ext() string { return strings.ToLower(filepath.Ext(d.Path)) }

// TextWithLineNumbers renders every line as "N: content"
func (d *Document) TextWithLineNumbers() string {
	var sb strings.Builder
	for i, line := range d.lines {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%d: %s", i+1, line)
	}
	return sb.String()
}

// Lookup returns a mutable line lookup seeded from the document. The line
// numbering of the lookup never changes: edits replace content in place and
// deletions only mark lines.
func (d *Document) Lookup() *LineLookup {
	return &LineLookup{
		lines:   d.Lines(),
		deleted: make([]bool, len(d.lines)),
	}
}

// LineLookup is the coordinate-stable working copy used by one reconciliation pass
type LineLookup struct {
	lines   []string
	deleted []bool
}

// Len returns the number of lines in the coordinate space
func (l *LineLookup) Len() int { return len(l.lines) }

// Get returns the current content of line n
func (l *LineLookup) Get(n int) (string, bool) {
	if n < 1 || n > len(l.lines) {
		return "", false
	}
	return l.lines[n-1], true
}

// Set replaces the content of line n
func (l *LineLookup) Set(n int, content string) {
	if n < 1 || n > len(l.lines) {
		return
	}
	l.lines[n-1] = content
}

// MarkDeleted flags line n for removal during assembly
func (l *LineLookup) MarkDeleted(n int) {
	if n < 1 || n > len(l.lines) {
		return
	}
	l.deleted[n-1] = true
}

// IsDeleted reports whether line n is marked for removal
func (l *LineLookup) IsDeleted(n int) bool {
	if n < 1 || n > len(l.lines) {
		return false
	}
	return l.deleted[n-1]
}

// Window renders up to radius lines on either side of n as "N: content",
// reflecting any edits already applied. Deleted lines show the sentinel.
func (l *LineLookup) Window(n, radius int) string {
	start := n - radius
	if start < 1 {
		start = 1
	}
	end := n + radius
	if end > len(l.lines) {
		end = len(l.lines)
	}

	var rows []string
	for i := start; i <= end; i++ {
		content := l.lines[i-1]
		if l.deleted[i-1] {
			content = DeleteSentinel
		}
		rows = append(rows, fmt.Sprintf("%d: %s", i, content))
	}
	return strings.Join(rows, "\n")
}
