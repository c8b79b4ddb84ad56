package edit

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/steveyegge/hyperlint/internal/approval"
	"github.com/steveyegge/hyperlint/internal/types"
)

// ConfirmFunc is asked before a reconciled file is written. Returning false
// discards the pass.
type ConfirmFunc func(ctx context.Context, res *Result) (bool, error)

// Editor drives one document through prerun checks, issue collection,
// reconciliation, and write-back.
type Editor struct {
	path      string
	engine    *Engine
	analyzers []Analyzer
	confirm   ConfirmFunc
	logger    *slog.Logger

	doc      *types.Document
	issues   *types.IssueSet
	failures []*AnalyzerFailure
}

// EditorConfig holds editor configuration
type EditorConfig struct {
	Path      string     // Required
	Engine    *Engine    // Required
	Analyzers []Analyzer // Required
	Confirm   ConfirmFunc
	Logger    *slog.Logger
}

// NewEditor creates a new editor
func NewEditor(cfg *EditorConfig) (*Editor, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	if cfg.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if len(cfg.Analyzers) == 0 {
		return nil, fmt.Errorf("at least one analyzer is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Editor{
		path:      cfg.Path,
		engine:    cfg.Engine,
		analyzers: cfg.Analyzers,
		confirm:   cfg.Confirm,
		logger:    logger,
	}, nil
}

// Path returns the document path
func (ed *Editor) Path() string { return ed.path }

// PrerunChecks verifies every analyzer can run. Nothing else may proceed
// when it fails.
func (ed *Editor) PrerunChecks(ctx context.Context) error {
	return PrerunChecks(ctx, ed.analyzers)
}

// Load reads the document from disk
func (ed *Editor) Load() (*types.Document, error) {
	data, err := os.ReadFile(ed.path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", ed.path, err)
	}
	ed.doc = types.NewDocument(ed.path, string(data))
	ed.issues = nil
	return ed.doc, nil
}

// CollectIssues loads the document if needed and runs the analyzers
func (ed *Editor) CollectIssues(ctx context.Context) (*types.IssueSet, error) {
	if ed.doc == nil {
		if _, err := ed.Load(); err != nil {
			return nil, err
		}
	}
	ed.issues, ed.failures = CollectIssues(ctx, ed.doc, ed.analyzers, ed.engine.maxParallel, ed.logger)
	return ed.issues, nil
}

// Reconcile applies the collected issues (collecting them first if needed)
// and returns the result without writing anything.
func (ed *Editor) Reconcile(ctx context.Context) (*Result, error) {
	return ed.reconcileWith(ctx, ed.engine)
}

// Preview reconciles with every change auto-approved and nothing logged or
// written.
func (ed *Editor) Preview(ctx context.Context) (*Result, error) {
	gate, err := approval.NewGate(&approval.GateConfig{
		Policy: &approval.AutoApprove{Logger: ed.logger},
		Logger: ed.logger,
	})
	if err != nil {
		return nil, err
	}
	return ed.reconcileWith(ctx, ed.engine.WithGate(gate))
}

// UpdateFile reconciles and writes the result back when the text changed and
// the confirm hook, if any, agrees.
func (ed *Editor) UpdateFile(ctx context.Context) (*Result, error) {
	res, err := ed.Reconcile(ctx)
	if err != nil {
		return nil, err
	}
	if !res.Changed() {
		return res, nil
	}
	if ed.confirm != nil {
		ok, err := ed.confirm(ctx, res)
		if err != nil {
			return res, fmt.Errorf("confirming %s: %w", ed.path, err)
		}
		if !ok {
			ed.logger.Info("changes discarded", "file", ed.path)
			return res, nil
		}
	}
	if err := WriteFile(ed.path, res.Text); err != nil {
		return res, err
	}
	res.Written = true
	// The file changed: later passes must start from the new text.
	ed.doc = types.NewDocument(ed.path, res.Text)
	ed.issues = nil
	return res, nil
}

func (ed *Editor) reconcileWith(ctx context.Context, engine *Engine) (*Result, error) {
	if ed.issues == nil {
		if _, err := ed.CollectIssues(ctx); err != nil {
			return nil, err
		}
	}
	res, err := engine.Apply(ctx, ed.doc, ed.issues)
	if err != nil {
		return nil, err
	}
	res.AnalyzerFailures = ed.failures
	return res, nil
}

// WriteFile replaces path with text through a temp file and rename, keeping
// the original permissions.
func WriteFile(path, text string) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	if _, err := f.WriteString(text); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Chmod(mode); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
