package edit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/steveyegge/hyperlint/internal/types"
)

// Analyzer inspects a document and reports issues into its own set.
// The document must be treated as read-only.
type Analyzer interface {
	Name() string
	PrerunChecks(ctx context.Context) error
	Analyze(ctx context.Context, doc *types.Document, issues *types.IssueSet) error
}

// DefaultMaxParallelAnalyzers bounds the analyzer pool when unset
const DefaultMaxParallelAnalyzers = 4

// CollectIssues runs every analyzer against doc through a pool of at most
// limit goroutines. Each analyzer fills a private set; the sets merge in
// registration order, so the result does not depend on scheduling. Failing
// or panicking analyzers are reported and contribute nothing.
func CollectIssues(ctx context.Context, doc *types.Document, analyzers []Analyzer, limit int, logger *slog.Logger) (*types.IssueSet, []*AnalyzerFailure) {
	if logger == nil {
		logger = slog.Default()
	}
	if limit <= 0 {
		limit = DefaultMaxParallelAnalyzers
	}

	sets := make([]*types.IssueSet, len(analyzers))
	failures := make([]*AnalyzerFailure, len(analyzers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, a := range analyzers {
		g.Go(func() error {
			set, err := runAnalyzer(gctx, a, doc, logger)
			if err != nil {
				failures[i] = &AnalyzerFailure{Analyzer: a.Name(), Err: err}
				logger.Warn("analyzer failed", "analyzer", a.Name(), "file", doc.Path, "error", err)
				return nil
			}
			sets[i] = set
			return nil
		})
	}
	_ = g.Wait() // workers never return errors

	merged := &types.IssueSet{}
	var failed []*AnalyzerFailure
	for i := range analyzers {
		if failures[i] != nil {
			failed = append(failed, failures[i])
			continue
		}
		merged.Merge(sets[i])
	}
	return merged, failed
}

func runAnalyzer(ctx context.Context, a Analyzer, doc *types.Document, logger *slog.Logger) (set *types.IssueSet, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			set, err = nil, fmt.Errorf("panic: %v", rec)
		}
	}()

	start := time.Now()
	set = &types.IssueSet{}
	if err := a.Analyze(ctx, doc, set); err != nil {
		return nil, err
	}
	logger.Debug("analyzer finished", "analyzer", a.Name(), "issues", set.Len(), "duration", time.Since(start))
	return set, nil
}

// PrerunChecks runs every analyzer's checks and returns the first failure
func PrerunChecks(ctx context.Context, analyzers []Analyzer) error {
	for _, a := range analyzers {
		if err := a.PrerunChecks(ctx); err != nil {
			return fmt.Errorf("prerun checks for %s: %w", a.Name(), err)
		}
	}
	return nil
}
