package edit

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/steveyegge/hyperlint/internal/cache"
	"github.com/steveyegge/hyperlint/internal/types"
)

// Resolver turns a replacement issue into the complete replacement line.
// window is the numbered window of surrounding lines; it may be empty.
type Resolver interface {
	Fix(ctx context.Context, issue types.ReplaceIssue, window string) (string, error)
}

// ResolverFunc adapts a function to Resolver
type ResolverFunc func(ctx context.Context, issue types.ReplaceIssue, window string) (string, error)

func (f ResolverFunc) Fix(ctx context.Context, issue types.ReplaceIssue, window string) (string, error) {
	return f(ctx, issue, window)
}

// Identity returns every line unchanged
var Identity Resolver = ResolverFunc(func(_ context.Context, issue types.ReplaceIssue, _ string) (string, error) {
	return issue.ExistingContent, nil
})

// FailSoftResolver never fails: errors and panics from the wrapped resolver
// yield the original content. Successful fixes get the original line's
// leading indentation back when the resolver dropped it.
type FailSoftResolver struct {
	next      Resolver
	logger    *slog.Logger
	OnFailure func(*ResolverFailure)
}

// FailSoft wraps r
func FailSoft(r Resolver, logger *slog.Logger) *FailSoftResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &FailSoftResolver{next: r, logger: logger}
}

func (f *FailSoftResolver) Fix(ctx context.Context, issue types.ReplaceIssue, window string) (fixed string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			f.fail(issue, fmt.Errorf("panic: %v", rec))
			fixed, err = issue.ExistingContent, nil
		}
	}()

	out, ferr := f.next.Fix(ctx, issue, window)
	if ferr != nil {
		f.fail(issue, ferr)
		return issue.ExistingContent, nil
	}
	return ReapplyIndent(issue.ExistingContent, out), nil
}

func (f *FailSoftResolver) fail(issue types.ReplaceIssue, err error) {
	failure := &ResolverFailure{Line: issue.Line, Err: err}
	f.logger.Warn("resolver failed, keeping original line", "line", issue.Line, "error", err)
	if f.OnFailure != nil {
		f.OnFailure(failure)
	}
}

// ReapplyIndent replaces the leading whitespace of fixed with exactly that
// of original
func ReapplyIndent(original, fixed string) string {
	indent := original[:len(original)-len(strings.TrimLeft(original, " \t"))]
	return indent + strings.TrimLeft(fixed, " \t")
}

// CachedResolver memoizes fixes in a content-addressed store
type CachedResolver struct {
	next      Resolver
	store     cache.Store
	namespace string
	logger    *slog.Logger
}

// Cached wraps r with store. namespace separates resolvers (e.g. by model)
// sharing one store.
func Cached(r Resolver, store cache.Store, namespace string, logger *slog.Logger) *CachedResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedResolver{next: r, store: store, namespace: namespace, logger: logger}
}

func (c *CachedResolver) Fix(ctx context.Context, issue types.ReplaceIssue, window string) (string, error) {
	key := cache.KeyFor(c.namespace, issue, window)
	if v, ok, err := c.store.Get(ctx, key); err != nil {
		c.logger.Warn("fix cache read failed", "key", key.String(), "error", err)
	} else if ok {
		c.logger.Debug("fix cache hit", "line", issue.Line)
		return v, nil
	}

	out, err := c.next.Fix(ctx, issue, window)
	if err != nil {
		return "", err
	}
	if err := c.store.Put(ctx, key, out); err != nil {
		c.logger.Warn("fix cache write failed", "key", key.String(), "error", err)
	}
	return out, nil
}
