// Package edit reconciles independently produced line issues into a new
// document text, one sequential pass per document.
package edit

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"

	"github.com/steveyegge/hyperlint/internal/approval"
	"github.com/steveyegge/hyperlint/internal/mdx"
	"github.com/steveyegge/hyperlint/internal/types"
)

// DefaultContextLines is how many lines before and after an issue the
// resolver sees
const DefaultContextLines = 5

// ProtectionFunc computes the protected regions of a document
type ProtectionFunc func(path, text string) *mdx.Regions

// Options configures an Engine
type Options struct {
	Resolver             Resolver       // default: Identity
	Gate                 *approval.Gate // default: auto-approve, nothing logged
	ContextLines         int            // default: DefaultContextLines
	MaxParallelAnalyzers int            // default: DefaultMaxParallelAnalyzers
	Protection           ProtectionFunc // default: mdx.ForPath
	Logger               *slog.Logger
}

// Engine applies issues to documents. An Engine holds no per-document state
// and may serve many documents concurrently.
type Engine struct {
	resolver     Resolver
	gate         *approval.Gate
	contextLines int
	maxParallel  int
	protection   ProtectionFunc
	logger       *slog.Logger
}

// NewEngine creates an engine, filling defaults for unset options
func NewEngine(opts Options) (*Engine, error) {
	e := &Engine{
		resolver:     opts.Resolver,
		gate:         opts.Gate,
		contextLines: opts.ContextLines,
		maxParallel:  opts.MaxParallelAnalyzers,
		protection:   opts.Protection,
		logger:       opts.Logger,
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.resolver == nil {
		e.resolver = Identity
	}
	if e.gate == nil {
		g, err := approval.NewGate(&approval.GateConfig{Policy: &approval.AutoApprove{Logger: e.logger}, Logger: e.logger})
		if err != nil {
			return nil, err
		}
		e.gate = g
	}
	if e.contextLines <= 0 {
		e.contextLines = DefaultContextLines
	}
	if e.maxParallel <= 0 {
		e.maxParallel = DefaultMaxParallelAnalyzers
	}
	if e.protection == nil {
		e.protection = mdx.ForPath
	}
	return e, nil
}

// WithGate returns a copy of the engine deciding through g
func (e *Engine) WithGate(g *approval.Gate) *Engine {
	cp := *e
	cp.gate = g
	return &cp
}

// Gate returns the engine's approval gate
func (e *Engine) Gate() *approval.Gate { return e.gate }

// Change is one edit that made it into the output
type Change struct {
	Kind     types.IssueKind
	Line     int
	Messages []string
	Before   string
	After    string
}

// Stats counts what happened to the issues of one pass
type Stats struct {
	IssuesSeen          int
	Dropped             int // out of range
	Approved            int
	Rejected            int
	ProtectedRejections int
	Unchanged           int // fixes identical to the current line
	ResolverFailures    int
}

// Result is the outcome of one reconciliation pass
type Result struct {
	Path             string
	RunID            string
	Original         string
	Text             string
	Changes          []Change
	Stats            Stats
	AnalyzerFailures []*AnalyzerFailure
	ResolverFailures []*ResolverFailure
	Violations       []*ProtectedRegionViolation
	LogErrors        []*LogWriteFailure
	Written          bool
}

// Changed reports whether the pass produced different text
func (r *Result) Changed() bool { return r.Text != r.Original }

// Diff renders a unified diff from the original to the reconciled text
func (r *Result) Diff() string {
	if !r.Changed() {
		return ""
	}
	edits := myers.ComputeEdits(span.URIFromPath(r.Path), r.Original, r.Text)
	return fmt.Sprint(gotextdiff.ToUnified("a/"+r.Path, "b/"+r.Path, r.Original, edits))
}

// Summary returns a one-line human-readable account of the pass
func (r *Result) Summary() string {
	return fmt.Sprintf("%s: %d issues, %d applied, %d rejected, %d protected, %d unchanged, %d dropped",
		r.Path, r.Stats.IssuesSeen, len(r.Changes), r.Stats.Rejected,
		r.Stats.ProtectedRejections, r.Stats.Unchanged, r.Stats.Dropped)
}

// Reconcile runs analyzers against doc and applies what they report
func (e *Engine) Reconcile(ctx context.Context, doc *types.Document, analyzers ...Analyzer) (*Result, error) {
	if doc == nil {
		return nil, fmt.Errorf("document is required")
	}
	issues, failures := CollectIssues(ctx, doc, analyzers, e.maxParallel, e.logger)
	res, err := e.Apply(ctx, doc, issues)
	if err != nil {
		return nil, err
	}
	res.AnalyzerFailures = failures
	return res, nil
}

// pass holds the mutable state of one Apply call
type pass struct {
	e       *Engine
	doc     *types.Document
	lookup  *types.LineLookup
	regions *mdx.Regions
	res     *Result
}

// Apply reconciles issues into doc's text. Replacements are resolved and
// applied in ascending line order, each seeing the edits before it; deletions
// and insertions follow. doc itself is never modified.
func (e *Engine) Apply(ctx context.Context, doc *types.Document, issues *types.IssueSet) (*Result, error) {
	if doc == nil {
		return nil, fmt.Errorf("document is required")
	}
	if issues == nil {
		issues = &types.IssueSet{}
	}

	original := doc.Text()
	p := &pass{
		e:       e,
		doc:     doc,
		lookup:  doc.Lookup(),
		regions: e.protection(doc.Path, original),
		res: &Result{
			Path:     doc.Path,
			RunID:    uuid.NewString(),
			Original: original,
		},
	}
	p.res.Stats.IssuesSeen = issues.Len()

	valid := p.dropOutOfRange(issues)
	p.applyReplacements(ctx, valid.Compress())
	p.applyDeletions(ctx, valid.Deletions)
	p.res.Text = p.assemble(ctx, valid.Insertions)

	e.logger.Debug("reconciliation pass finished",
		"file", doc.Path, "run_id", p.res.RunID, "changes", len(p.res.Changes),
		"rejected", p.res.Stats.Rejected, "protected", p.res.Stats.ProtectedRejections)
	return p.res, nil
}

func (p *pass) dropOutOfRange(issues *types.IssueSet) *types.IssueSet {
	n := p.lookup.Len()
	valid := &types.IssueSet{}
	drop := func(issue types.Issue, err error) {
		p.res.Stats.Dropped++
		p.e.logger.Warn("dropping issue", "file", p.doc.Path, "kind", issue.Kind(), "error", err)
	}
	for _, issue := range issues.Replacements {
		if err := types.ValidateLine(issue, n); err != nil {
			drop(issue, err)
			continue
		}
		valid.AddReplacement(issue)
	}
	for _, issue := range issues.Deletions {
		if err := types.ValidateLine(issue, n); err != nil {
			drop(issue, err)
			continue
		}
		valid.AddDeletion(issue)
	}
	for _, issue := range issues.Insertions {
		if err := types.ValidateLine(issue, n); err != nil {
			drop(issue, err)
			continue
		}
		valid.AddInsertion(issue)
	}
	return valid
}

func (p *pass) applyReplacements(ctx context.Context, replacements []types.ReplaceIssue) {
	resolver := &FailSoftResolver{
		next:   p.e.resolver,
		logger: p.e.logger,
		OnFailure: func(f *ResolverFailure) {
			p.res.ResolverFailures = append(p.res.ResolverFailures, f)
			p.res.Stats.ResolverFailures++
		},
	}

	for _, issue := range replacements {
		current, _ := p.lookup.Get(issue.Line)
		window := p.lookup.Window(issue.Line, p.e.contextLines)
		fixed, _ := resolver.Fix(ctx, issue, window)

		req := p.request(types.KindReplace, issue.Line, issue.Messages, current, fixed)
		if p.regions.IsProtected(issue.Line) {
			p.rejectProtected(ctx, req)
			continue
		}
		if fixed == current {
			p.res.Stats.Unchanged++
			continue
		}
		if !p.decide(ctx, req) {
			continue
		}
		p.lookup.Set(issue.Line, fixed)
		p.res.Changes = append(p.res.Changes, Change{
			Kind: types.KindReplace, Line: issue.Line, Messages: issue.Messages, Before: current, After: fixed,
		})
	}
}

func (p *pass) applyDeletions(ctx context.Context, deletions []types.DeleteIssue) {
	for _, issue := range deletions {
		current, _ := p.lookup.Get(issue.Line)
		req := p.request(types.KindDelete, issue.Line, issue.Messages, current, issue.Fix())
		if p.regions.IsProtected(issue.Line) {
			p.rejectProtected(ctx, req)
			continue
		}
		if !p.decide(ctx, req) {
			continue
		}
		if p.lookup.IsDeleted(issue.Line) {
			continue
		}
		p.lookup.MarkDeleted(issue.Line)
		p.res.Changes = append(p.res.Changes, Change{
			Kind: types.KindDelete, Line: issue.Line, Messages: issue.Messages, Before: current,
		})
	}
}

// assemble walks the original coordinates, emitting approved insertions
// before their anchor line and skipping deleted lines. Insertions past the
// last line are appended in registration order.
func (p *pass) assemble(ctx context.Context, insertions []types.InsertIssue) string {
	sorted := make([]types.InsertIssue, len(insertions))
	copy(sorted, insertions)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Line < sorted[j].Line })

	n := p.lookup.Len()
	out := make([]string, 0, n+len(sorted))
	next := 0
	for line := 1; line <= n; line++ {
		for ; next < len(sorted) && sorted[next].Line == line; next++ {
			if p.approveInsertion(ctx, sorted[next], true) {
				out = append(out, sorted[next].Content)
			}
		}
		if p.lookup.IsDeleted(line) {
			continue
		}
		content, _ := p.lookup.Get(line)
		out = append(out, content)
	}
	for ; next < len(sorted); next++ {
		if p.approveInsertion(ctx, sorted[next], false) {
			out = append(out, sorted[next].Content)
		}
	}
	return strings.Join(out, "\n")
}

func (p *pass) approveInsertion(ctx context.Context, issue types.InsertIssue, anchored bool) bool {
	req := p.request(types.KindInsert, issue.Line, nil, "", issue.Content)
	if anchored && p.regions.IsProtected(issue.Line) {
		p.rejectProtected(ctx, req)
		return false
	}
	if !p.decide(ctx, req) {
		return false
	}
	p.res.Changes = append(p.res.Changes, Change{Kind: types.KindInsert, Line: issue.Line, After: issue.Content})
	return true
}

func (p *pass) request(kind types.IssueKind, line int, messages []string, before, after string) approval.Request {
	return approval.Request{
		Kind:     kind,
		FilePath: p.doc.Path,
		Line:     line,
		Messages: messages,
		Before:   before,
		After:    after,
		RunID:    p.res.RunID,
	}
}

func (p *pass) decide(ctx context.Context, req approval.Request) bool {
	approved, err := p.e.gate.Decide(ctx, req)
	if err != nil {
		p.logFailure(req, err)
	}
	if approved {
		p.res.Stats.Approved++
	} else {
		p.res.Stats.Rejected++
	}
	return approved
}

func (p *pass) rejectProtected(ctx context.Context, req approval.Request) {
	p.res.Stats.ProtectedRejections++
	p.res.Violations = append(p.res.Violations, &ProtectedRegionViolation{Kind: req.Kind, Line: req.Line})
	p.e.logger.Debug("rejecting edit to protected line", "file", req.FilePath, "line", req.Line, "kind", req.Kind)
	if err := p.e.gate.Reject(ctx, req, approval.ReasonProtected); err != nil {
		p.logFailure(req, err)
	}
}

func (p *pass) logFailure(req approval.Request, err error) {
	p.e.logger.Error("failed to log approval decision", "file", req.FilePath, "line", req.Line, "error", err)
	p.res.LogErrors = append(p.res.LogErrors, &LogWriteFailure{Kind: req.Kind, Line: req.Line, Err: err})
}
