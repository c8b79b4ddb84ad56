package types

import (
	"fmt"
	"sort"
)

// DeleteSentinel is the proposed text shown for a deletion. It is never
// computed by a resolver and never appears in reconciled output.
const DeleteSentinel = ">>>>>>>>>>>>>>DELETE<<<<<<<<<<<<<<<"

// IssueKind identifies which variant an issue is
type IssueKind string

const (
	KindReplace IssueKind = "replacement"
	KindInsert  IssueKind = "insertion"
	KindDelete  IssueKind = "deletion"
)

// IsValid checks if the kind value is valid
func (k IssueKind) IsValid() bool {
	switch k {
	case KindReplace, KindInsert, KindDelete:
		return true
	}
	return false
}

// Issue is a proposed, localized change to one line of a document.
// The set of implementations is closed: ReplaceIssue, InsertIssue, DeleteIssue.
type Issue interface {
	Kind() IssueKind
	LineNumber() int
	IssueMessages() []string
	sealed()
}

// ReplaceIssue proposes rewriting a whole line
type ReplaceIssue struct {
	Line            int      `json:"line"`
	Messages        []string `json:"issue_message"`
	ExistingContent string   `json:"existing_content"`
}

func (i ReplaceIssue) Kind() IssueKind         { return KindReplace }
func (i ReplaceIssue) LineNumber() int         { return i.Line }
func (i ReplaceIssue) IssueMessages() []string { return i.Messages }
func (ReplaceIssue) sealed()                   {}

// InsertIssue proposes a new line immediately before Line. A Line past the end
// of the document appends after the last line.
type InsertIssue struct {
	Line    int    `json:"line"`
	Content string `json:"insert_content"`
}

func (i InsertIssue) Kind() IssueKind         { return KindInsert }
func (i InsertIssue) LineNumber() int         { return i.Line }
func (i InsertIssue) IssueMessages() []string { return nil }
func (InsertIssue) sealed()                   {}

// DeleteIssue proposes removing a line
type DeleteIssue struct {
	Line            int      `json:"line"`
	Messages        []string `json:"issue_message"`
	ExistingContent string   `json:"existing_content"`
}

func (i DeleteIssue) Kind() IssueKind         { return KindDelete }
func (i DeleteIssue) LineNumber() int         { return i.Line }
func (i DeleteIssue) IssueMessages() []string { return i.Messages }
func (DeleteIssue) sealed()                   {}

// Fix always returns DeleteSentinel.
func (DeleteIssue) Fix() string { return DeleteSentinel }

// ValidateLine checks an issue's line against a document of lineCount lines.
// Insertions may target any line >= 1; past-the-end means append.
func ValidateLine(issue Issue, lineCount int) error {
	line := issue.LineNumber()
	if line < 1 {
		return fmt.Errorf("%s line must be >= 1 (got %d)", issue.Kind(), line)
	}
	if issue.Kind() != KindInsert && line > lineCount {
		return fmt.Errorf("%s line %d is out of range (document has %d lines)", issue.Kind(), line, lineCount)
	}
	return nil
}

// IssueSet collects the issues one or more analyzers produced against a
// single document snapshot. Issues are consumed by exactly one reconciliation pass.
type IssueSet struct {
	Replacements []ReplaceIssue
	Insertions   []InsertIssue
	Deletions    []DeleteIssue
}

// AddReplacement registers a replace issue
func (s *IssueSet) AddReplacement(issue ReplaceIssue) {
	s.Replacements = append(s.Replacements, issue)
}

// AddInsertion registers an insert issue
func (s *IssueSet) AddInsertion(issue InsertIssue) {
	s.Insertions = append(s.Insertions, issue)
}

// AddDeletion registers a delete issue
func (s *IssueSet) AddDeletion(issue DeleteIssue) {
	s.Deletions = append(s.Deletions, issue)
}

// Merge appends all of other's issues, keeping registration order.
func (s *IssueSet) Merge(other *IssueSet) {
	if other == nil {
		return
	}
	s.Replacements = append(s.Replacements, other.Replacements...)
	s.Insertions = append(s.Insertions, other.Insertions...)
	s.Deletions = append(s.Deletions, other.Deletions...)
}

// Len returns the total number of issues
func (s *IssueSet) Len() int {
	return len(s.Replacements) + len(s.Insertions) + len(s.Deletions)
}

// Compress groups replacements by line number in ascending order. Messages
// within a group are unioned and deduplicated in first-seen order; the first
// issue's ExistingContent wins. Divergent ExistingContent values are not detected.
func (s *IssueSet) Compress() []ReplaceIssue {
	byLine := make(map[int]*ReplaceIssue)
	seen := make(map[int]map[string]bool)
	var lines []int

	for _, issue := range s.Replacements {
		group, ok := byLine[issue.Line]
		if !ok {
			group = &ReplaceIssue{Line: issue.Line, ExistingContent: issue.ExistingContent}
			byLine[issue.Line] = group
			seen[issue.Line] = make(map[string]bool)
			lines = append(lines, issue.Line)
		}
		for _, msg := range issue.Messages {
			if seen[issue.Line][msg] {
				continue
			}
			seen[issue.Line][msg] = true
			group.Messages = append(group.Messages, msg)
		}
	}

	sort.Ints(lines)
	compressed := make([]ReplaceIssue, 0, len(lines))
	for _, line := range lines {
		compressed = append(compressed, *byLine[line])
	}
	return compressed
}
