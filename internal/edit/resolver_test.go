package edit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/hyperlint/internal/cache"
	"github.com/steveyegge/hyperlint/internal/types"
)

func TestFailSoft(t *testing.T) {
	issue := types.ReplaceIssue{Line: 7, ExistingContent: "  - teh item"}

	tests := []struct {
		name     string
		resolver Resolver
		want     string
		failed   bool
	}{
		{
			name: "error keeps original",
			resolver: ResolverFunc(func(context.Context, types.ReplaceIssue, string) (string, error) {
				return "", errors.New("boom")
			}),
			want:   "  - teh item",
			failed: true,
		},
		{
			name: "panic keeps original",
			resolver: ResolverFunc(func(context.Context, types.ReplaceIssue, string) (string, error) {
				panic("nil map")
			}),
			want:   "  - teh item",
			failed: true,
		},
		{
			name: "indentation reapplied",
			resolver: ResolverFunc(func(context.Context, types.ReplaceIssue, string) (string, error) {
				return "- the item", nil
			}),
			want: "  - the item",
		},
		{
			name: "different indentation replaced",
			resolver: ResolverFunc(func(context.Context, types.ReplaceIssue, string) (string, error) {
				return "    - the item", nil
			}),
			want: "  - the item",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var failures []*ResolverFailure
			fs := FailSoft(tt.resolver, nil)
			fs.OnFailure = func(f *ResolverFailure) { failures = append(failures, f) }

			got, err := fs.Fix(context.Background(), issue, "")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			if tt.failed {
				require.Len(t, failures, 1)
				assert.Equal(t, 7, failures[0].Line)
			} else {
				assert.Empty(t, failures)
			}
		})
	}
}

func TestReapplyIndent(t *testing.T) {
	assert.Equal(t, "fixed", ReapplyIndent("orig", "fixed"))
	assert.Equal(t, "\tfixed", ReapplyIndent("\torig", "fixed"))
	assert.Equal(t, "", ReapplyIndent("", ""))
	assert.Equal(t, "    fixed", ReapplyIndent("    orig", "  fixed"))
	assert.Equal(t, "fixed", ReapplyIndent("orig", "\t  fixed"))
}

type countingResolver struct{ calls int }

func (c *countingResolver) Fix(_ context.Context, issue types.ReplaceIssue, _ string) (string, error) {
	c.calls++
	return issue.ExistingContent + "!", nil
}

func TestCachedResolver(t *testing.T) {
	ctx := context.Background()
	inner := &countingResolver{}
	r := Cached(inner, cache.NewMemory(10), "test-model", nil)
	issue := types.ReplaceIssue{Line: 1, ExistingContent: "hello", Messages: []string{"m"}}

	first, err := r.Fix(ctx, issue, "1: hello")
	require.NoError(t, err)
	second, err := r.Fix(ctx, issue, "1: hello")
	require.NoError(t, err)
	assert.Equal(t, "hello!", first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)

	_, err = r.Fix(ctx, issue, "1: hello\n2: new context")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls, "different context is a different key")
}

func TestCachedResolverDoesNotStoreFailures(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemory(10)
	failing := ResolverFunc(func(context.Context, types.ReplaceIssue, string) (string, error) {
		return "", errors.New("rate limited")
	})
	_, err := Cached(failing, store, "m", nil).Fix(ctx, types.ReplaceIssue{Line: 1}, "")
	assert.Error(t, err)
	assert.Zero(t, store.Len())
}
