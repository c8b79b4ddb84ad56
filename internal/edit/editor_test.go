package edit

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/hyperlint/internal/approval"
	"github.com/steveyegge/hyperlint/internal/types"
)

func writeDoc(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "guide.md")
	require.NoError(t, os.WriteFile(path, []byte(text), 0o640))
	return path
}

func titleAnalyzer() *fakeAnalyzer {
	return &fakeAnalyzer{name: "title", analyze: func(doc *types.Document, issues *types.IssueSet) error {
		line, _ := doc.Line(1)
		issues.AddReplacement(types.ReplaceIssue{Line: 1, Messages: []string{"exclaim"}, ExistingContent: line})
		return nil
	}}
}

func newEditor(t *testing.T, path string, policy approval.Policy, confirm ConfirmFunc) *Editor {
	t.Helper()
	r := &fixes{table: map[string]string{"# Title": "# Title!"}}
	ed, err := NewEditor(&EditorConfig{
		Path:      path,
		Engine:    newEngine(t, r, policy, nil),
		Analyzers: []Analyzer{titleAnalyzer()},
		Confirm:   confirm,
	})
	require.NoError(t, err)
	return ed
}

func TestNewEditorValidation(t *testing.T) {
	e, err := NewEngine(Options{})
	require.NoError(t, err)

	_, err = NewEditor(&EditorConfig{Engine: e, Analyzers: []Analyzer{titleAnalyzer()}})
	assert.Error(t, err)
	_, err = NewEditor(&EditorConfig{Path: "a.md", Analyzers: []Analyzer{titleAnalyzer()}})
	assert.Error(t, err)
	_, err = NewEditor(&EditorConfig{Path: "a.md", Engine: e})
	assert.Error(t, err)
}

func TestEditorUpdateFileWritesBack(t *testing.T) {
	path := writeDoc(t, "# Title\n\nBody\n")
	ed := newEditor(t, path, approval.Silent{}, nil)

	require.NoError(t, ed.PrerunChecks(context.Background()))
	res, err := ed.UpdateFile(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Written)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# Title!\n\nBody\n", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())
}

func TestEditorPreviewNeverWritesOrBlocks(t *testing.T) {
	path := writeDoc(t, "# Title\n\nBody")
	// RejectAll would block every change; preview must ignore the configured policy
	ed := newEditor(t, path, approval.RejectAll{}, nil)

	res, err := ed.Preview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "# Title!\n\nBody", res.Text)
	assert.Contains(t, res.Diff(), "-# Title")
	assert.False(t, res.Written)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# Title\n\nBody", string(data))
}

func TestEditorConfirmHook(t *testing.T) {
	path := writeDoc(t, "# Title")

	declined := newEditor(t, path, approval.Silent{}, func(context.Context, *Result) (bool, error) { return false, nil })
	res, err := declined.UpdateFile(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Written)
	data, _ := os.ReadFile(path)
	assert.Equal(t, "# Title", string(data))

	broken := newEditor(t, path, approval.Silent{}, func(context.Context, *Result) (bool, error) {
		return false, errors.New("tty closed")
	})
	_, err = broken.UpdateFile(context.Background())
	assert.Error(t, err)
}

func TestEditorNoChangesNoWrite(t *testing.T) {
	path := writeDoc(t, "# Other")
	before, err := os.Stat(path)
	require.NoError(t, err)

	ed := newEditor(t, path, approval.Silent{}, nil)
	res, err := ed.UpdateFile(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Written)
	assert.False(t, res.Changed())

	after, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime())
}

func TestEditorMissingFile(t *testing.T) {
	ed := newEditor(t, filepath.Join(t.TempDir(), "missing.md"), approval.Silent{}, nil)
	_, err := ed.Reconcile(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestEditorSecondPassStartsFromWrittenText(t *testing.T) {
	path := writeDoc(t, "# Title")
	ed := newEditor(t, path, approval.Silent{}, nil)

	_, err := ed.UpdateFile(context.Background())
	require.NoError(t, err)
	res, err := ed.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "# Title!", res.Original)
	assert.False(t, res.Changed())
}

func TestWriteFileCreatesNewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "new.md")
	require.NoError(t, WriteFile(path, "hello"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
