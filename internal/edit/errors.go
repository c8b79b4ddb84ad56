package edit

import (
	"fmt"

	"github.com/steveyegge/hyperlint/internal/types"
)

// AnalyzerFailure reports one analyzer that errored or panicked. Other
// analyzers still contribute their issues.
type AnalyzerFailure struct {
	Analyzer string
	Err      error
}

func (e *AnalyzerFailure) Error() string {
	return fmt.Sprintf("analyzer %s failed: %v", e.Analyzer, e.Err)
}

func (e *AnalyzerFailure) Unwrap() error { return e.Err }

// ResolverFailure reports a fix call that failed; the line is left unchanged
type ResolverFailure struct {
	Line int
	Err  error
}

func (e *ResolverFailure) Error() string {
	return fmt.Sprintf("resolving line %d: %v", e.Line, e.Err)
}

func (e *ResolverFailure) Unwrap() error { return e.Err }

// ProtectedRegionViolation describes an edit that targeted a protected line.
// It is counted and logged, never applied.
type ProtectedRegionViolation struct {
	Kind types.IssueKind
	Line int
}

func (e *ProtectedRegionViolation) Error() string {
	return fmt.Sprintf("%s at line %d targets a protected region", e.Kind, e.Line)
}

// LogWriteFailure reports a decision that could not be appended to the log.
// The decision itself still took effect.
type LogWriteFailure struct {
	Kind types.IssueKind
	Line int
	Err  error
}

func (e *LogWriteFailure) Error() string {
	return fmt.Sprintf("logging %s decision for line %d: %v", e.Kind, e.Line, e.Err)
}

func (e *LogWriteFailure) Unwrap() error { return e.Err }
