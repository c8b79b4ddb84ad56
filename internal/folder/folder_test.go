package folder

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/hyperlint/internal/approval"
	"github.com/steveyegge/hyperlint/internal/edit"
	"github.com/steveyegge/hyperlint/internal/types"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// todoAnalyzer flags every line containing "todo"
type todoAnalyzer struct {
	prerunErr error
}

func (todoAnalyzer) Name() string { return "todo" }

func (a todoAnalyzer) PrerunChecks(context.Context) error { return a.prerunErr }

func (todoAnalyzer) Analyze(_ context.Context, doc *types.Document, issues *types.IssueSet) error {
	for i, line := range doc.Lines() {
		if strings.Contains(line, "todo") {
			issues.AddReplacement(types.ReplaceIssue{Line: i + 1, Messages: []string{"shout"}, ExistingContent: line})
		}
	}
	return nil
}

var upper = edit.ResolverFunc(func(_ context.Context, issue types.ReplaceIssue, _ string) (string, error) {
	return strings.ReplaceAll(issue.ExistingContent, "todo", "TODO"), nil
})

func factory(t *testing.T, analyzer edit.Analyzer) EditorFactory {
	t.Helper()
	gate, err := approval.NewGate(&approval.GateConfig{Policy: approval.Silent{}, Logger: quietLogger()})
	require.NoError(t, err)
	engine, err := edit.NewEngine(edit.Options{Resolver: upper, Gate: gate, Logger: quietLogger()})
	require.NoError(t, err)
	return func(path string) (*edit.Editor, error) {
		return edit.NewEditor(&edit.EditorConfig{
			Path:      path,
			Engine:    engine,
			Analyzers: []edit.Analyzer{analyzer},
			Logger:    quietLogger(),
		})
	}
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func read(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestDiscover(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.md":                    "",
		"b.mdx":                   "",
		"notes.txt":               "",
		"docs/c.md":               "",
		"docs/drafts/d.md":        "",
		"node_modules/pkg/e.md":   "",
		"docs/generated/skip.md":  "",
		"docs/generated/keep.txt": "",
	})
	p, err := NewProcessor(Options{
		ExcludePatterns: []string{"node_modules", "drafts", "docs/generated/*"},
		NewEditor:       factory(t, todoAnalyzer{}),
		Logger:          quietLogger(),
	})
	require.NoError(t, err)

	files, err := p.Discover(root)
	require.NoError(t, err)
	var rel []string
	for _, f := range files {
		r, err := filepath.Rel(root, f)
		require.NoError(t, err)
		rel = append(rel, filepath.ToSlash(r))
	}
	assert.Equal(t, []string{"a.md", "b.mdx", "docs/c.md"}, rel)

	single := filepath.Join(root, "notes.txt")
	files, err = p.Discover(single)
	require.NoError(t, err)
	assert.Equal(t, []string{single}, files, "an explicit file bypasses the filters")

	_, err = p.Discover(filepath.Join(root, "missing"))
	assert.Error(t, err)
}

func TestNewProcessorValidation(t *testing.T) {
	_, err := NewProcessor(Options{})
	assert.Error(t, err)

	_, err = NewProcessor(Options{NewEditor: factory(t, todoAnalyzer{}), IncludePattern: "["})
	assert.ErrorContains(t, err, "include pattern")

	_, err = NewProcessor(Options{NewEditor: factory(t, todoAnalyzer{}), ExcludePatterns: []string{"["}})
	assert.ErrorContains(t, err, "exclude pattern")
}

func TestRunUpdatesFiles(t *testing.T) {
	root := writeTree(t, map[string]string{
		"one.md":       "a todo here\nclean",
		"two.md":       "clean",
		"sub/three.md": "todo\ntodo",
	})
	p, err := NewProcessor(Options{NewEditor: factory(t, todoAnalyzer{}), MaxParallel: 2, Logger: quietLogger()})
	require.NoError(t, err)

	report, err := p.Run(context.Background(), root)
	require.NoError(t, err)
	require.NoError(t, report.Err())
	require.Len(t, report.Files, 3)
	assert.Equal(t, "3 files, 2 changed, 2 written, 0 failed", report.Summary())

	assert.Equal(t, "a TODO here\nclean", read(t, filepath.Join(root, "one.md")))
	assert.Equal(t, "clean", read(t, filepath.Join(root, "two.md")))
	assert.Equal(t, "TODO\nTODO", read(t, filepath.Join(root, "sub", "three.md")))
}

func TestRunDryRunWritesNothing(t *testing.T) {
	root := writeTree(t, map[string]string{"one.md": "todo"})
	p, err := NewProcessor(Options{NewEditor: factory(t, todoAnalyzer{}), DryRun: true, Logger: quietLogger()})
	require.NoError(t, err)

	report, err := p.Run(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, report.Files, 1)
	assert.True(t, report.Files[0].Result.Changed())
	assert.False(t, report.Files[0].Result.Written)
	assert.Equal(t, "todo", read(t, filepath.Join(root, "one.md")))
}

func TestRunIsolatesFailures(t *testing.T) {
	root := writeTree(t, map[string]string{"bad.md": "todo", "good.md": "todo"})
	base := factory(t, todoAnalyzer{})
	failing := factory(t, todoAnalyzer{prerunErr: errors.New("vale missing")})
	p, err := NewProcessor(Options{
		NewEditor: func(path string) (*edit.Editor, error) {
			if filepath.Base(path) == "bad.md" {
				return failing(path)
			}
			return base(path)
		},
		Logger: quietLogger(),
	})
	require.NoError(t, err)

	report, err := p.Run(context.Background(), root)
	require.NoError(t, err)
	failed := report.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "bad.md", filepath.Base(failed[0].Path))
	assert.ErrorContains(t, report.Err(), "vale missing")
	assert.Equal(t, "todo", read(t, filepath.Join(root, "bad.md")), "prerun failure blocks the file")
	assert.Equal(t, "TODO", read(t, filepath.Join(root, "good.md")))
}

func TestRunRespectsPoolLimit(t *testing.T) {
	files := map[string]string{}
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		files[name+".md"] = "x"
	}
	root := writeTree(t, files)

	var running, peak int32
	base := factory(t, todoAnalyzer{})
	p, err := NewProcessor(Options{
		MaxParallel: 2,
		NewEditor: func(path string) (*edit.Editor, error) {
			n := atomic.AddInt32(&running, 1)
			for {
				old := atomic.LoadInt32(&peak)
				if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
					break
				}
			}
			defer atomic.AddInt32(&running, -1)
			return base(path)
		},
		Logger: quietLogger(),
	})
	require.NoError(t, err)

	report, err := p.Run(context.Background(), root)
	require.NoError(t, err)
	assert.Len(t, report.Files, 6)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestRunCanceled(t *testing.T) {
	root := writeTree(t, map[string]string{"a.md": "todo"})
	p, err := NewProcessor(Options{NewEditor: factory(t, todoAnalyzer{}), Logger: quietLogger()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Run(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLockSharesMutexAcrossSymlinks(t *testing.T) {
	root := writeTree(t, map[string]string{"real.md": "x"})
	link := filepath.Join(root, "link.md")
	if err := os.Symlink(filepath.Join(root, "real.md"), link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	p, err := NewProcessor(Options{NewEditor: factory(t, todoAnalyzer{}), Logger: quietLogger()})
	require.NoError(t, err)

	unlock := p.lock(filepath.Join(root, "real.md"))
	n := 0
	p.locks.Range(func(_, _ any) bool { n++; return true })
	unlock()
	unlock = p.lock(link)
	unlock()
	m := 0
	p.locks.Range(func(_, _ any) bool { m++; return true })
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, m)
}
