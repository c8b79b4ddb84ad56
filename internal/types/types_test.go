package types

import (
	"reflect"
	"testing"
)

func TestIssueKindIsValid(t *testing.T) {
	tests := []struct {
		kind IssueKind
		want bool
	}{
		{KindReplace, true},
		{KindInsert, true},
		{KindDelete, true},
		{IssueKind("rewrite"), false},
		{IssueKind(""), false},
	}
	for _, tt := range tests {
		if got := tt.kind.IsValid(); got != tt.want {
			t.Errorf("IssueKind(%q).IsValid() = %v, want %v", tt.kind, got, tt.want)
		}
	}
}

func TestIssueVariants(t *testing.T) {
	issues := []Issue{
		ReplaceIssue{Line: 1, Messages: []string{"a"}},
		InsertIssue{Line: 2, Content: "x"},
		DeleteIssue{Line: 3, Messages: []string{"b"}},
	}
	wantKinds := []IssueKind{KindReplace, KindInsert, KindDelete}
	for i, issue := range issues {
		if issue.Kind() != wantKinds[i] {
			t.Errorf("issue %d kind = %s, want %s", i, issue.Kind(), wantKinds[i])
		}
		if issue.LineNumber() != i+1 {
			t.Errorf("issue %d line = %d, want %d", i, issue.LineNumber(), i+1)
		}
	}
	if issues[1].IssueMessages() != nil {
		t.Error("insertions carry no messages")
	}
	if got := (DeleteIssue{Line: 1}).Fix(); got != DeleteSentinel {
		t.Errorf("DeleteIssue.Fix() = %q, want sentinel", got)
	}
}

func TestValidateLine(t *testing.T) {
	tests := []struct {
		name    string
		issue   Issue
		wantErr bool
	}{
		{"replace in range", ReplaceIssue{Line: 3}, false},
		{"replace past end", ReplaceIssue{Line: 4}, true},
		{"replace zero", ReplaceIssue{Line: 0}, true},
		{"delete past end", DeleteIssue{Line: 9}, true},
		{"insert past end is append", InsertIssue{Line: 10}, false},
		{"insert negative", InsertIssue{Line: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLine(tt.issue, 3)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateLine() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCompressMergesByLine(t *testing.T) {
	var set IssueSet
	set.AddReplacement(ReplaceIssue{Line: 3, Messages: []string{"passive voice"}, ExistingContent: "It was done."})
	set.AddReplacement(ReplaceIssue{Line: 1, Messages: []string{"title case"}, ExistingContent: "# title"})
	set.AddReplacement(ReplaceIssue{Line: 3, Messages: []string{"weasel word", "passive voice"}, ExistingContent: "ignored"})

	got := set.Compress()
	want := []ReplaceIssue{
		{Line: 1, Messages: []string{"title case"}, ExistingContent: "# title"},
		{Line: 3, Messages: []string{"passive voice", "weasel word"}, ExistingContent: "It was done."},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Compress() = %#v\nwant %#v", got, want)
	}
	if len(set.Replacements) != 3 {
		t.Errorf("Compress must not mutate the set, got %d replacements", len(set.Replacements))
	}
}

func TestCompressLeavesInsertionsAndDeletions(t *testing.T) {
	var set IssueSet
	set.AddInsertion(InsertIssue{Line: 1, Content: "a"})
	set.AddInsertion(InsertIssue{Line: 1, Content: "a"})
	set.AddDeletion(DeleteIssue{Line: 2})
	set.AddDeletion(DeleteIssue{Line: 2})

	if got := set.Compress(); len(got) != 0 {
		t.Errorf("expected no compressed replacements, got %d", len(got))
	}
	if len(set.Insertions) != 2 || len(set.Deletions) != 2 {
		t.Error("duplicate insertions and deletions must be kept")
	}
	if set.Len() != 4 {
		t.Errorf("Len() = %d, want 4", set.Len())
	}
}

func TestMergeKeepsOrder(t *testing.T) {
	a := &IssueSet{}
	a.AddInsertion(InsertIssue{Line: 2, Content: "first"})
	b := &IssueSet{}
	b.AddInsertion(InsertIssue{Line: 2, Content: "second"})
	b.AddReplacement(ReplaceIssue{Line: 1})

	a.Merge(b)
	a.Merge(nil)

	if len(a.Insertions) != 2 || a.Insertions[0].Content != "first" || a.Insertions[1].Content != "second" {
		t.Errorf("unexpected insertion order: %#v", a.Insertions)
	}
	if len(a.Replacements) != 1 {
		t.Errorf("expected 1 replacement, got %d", len(a.Replacements))
	}
}
