package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/hyperlint/internal/types"
)

func issue(content string, messages ...string) types.ReplaceIssue {
	return types.ReplaceIssue{Line: 1, ExistingContent: content, Messages: messages}
}

func TestKeyForIsDeterministic(t *testing.T) {
	a := KeyFor("claude", issue("teh cat", "spelling"), "1: teh cat")
	b := KeyFor("claude", issue("teh cat", "spelling"), "1: teh cat")
	assert.Equal(t, a, b)
	assert.Len(t, a.String(), 64)
}

func TestKeyForSeparatesInputs(t *testing.T) {
	base := KeyFor("claude", issue("teh cat", "spelling"), "ctx")
	variants := []Key{
		KeyFor("other-model", issue("teh cat", "spelling"), "ctx"),
		KeyFor("claude", issue("teh dog", "spelling"), "ctx"),
		KeyFor("claude", issue("teh cat", "grammar"), "ctx"),
		KeyFor("claude", issue("teh cat", "spelling"), "other ctx"),
		// field boundaries matter
		KeyFor("claude", issue("teh ca", "tspelling"), "ctx"),
	}
	for i, k := range variants {
		assert.NotEqual(t, base, k, "variant %d", i)
	}
	// line number does not participate
	moved := issue("teh cat", "spelling")
	moved.Line = 40
	assert.Equal(t, base, KeyFor("claude", moved, "ctx"))
}

func TestMemoryLRUEviction(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(2)
	k1, k2, k3 := Key{1}, Key{2}, Key{3}

	require.NoError(t, c.Put(ctx, k1, "one"))
	require.NoError(t, c.Put(ctx, k2, "two"))
	_, ok, _ := c.Get(ctx, k1) // k1 now most recent
	assert.True(t, ok)
	require.NoError(t, c.Put(ctx, k3, "three"))

	_, ok, _ = c.Get(ctx, k2)
	assert.False(t, ok, "k2 should be evicted")
	v, ok, _ := c.Get(ctx, k1)
	assert.True(t, ok)
	assert.Equal(t, "one", v)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Evictions)
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 2, stats.Size)
}

func TestMemoryOverwrite(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(0)
	require.NoError(t, c.Put(ctx, Key{9}, "a"))
	require.NoError(t, c.Put(ctx, Key{9}, "b"))
	v, ok, err := c.Get(ctx, Key{9})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "b", v)
	assert.Equal(t, 1, c.Len())
}

func TestDiskRoundTrip(t *testing.T) {
	ctx := context.Background()
	d, err := OpenDisk(filepath.Join(t.TempDir(), "fixes"))
	require.NoError(t, err)

	key := KeyFor("m", issue("x"), "")
	_, ok, err := d.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, d.Put(ctx, key, "fixed line"))
	v, ok, err := d.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "fixed line", v)

	_, err = os.Stat(filepath.Join(d.Dir(), key.String()[:2], key.String()+".mp"))
	assert.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(d.Dir(), key.String()[:2]))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")

	require.NoError(t, d.DropAll())
	_, ok, err = d.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDiskCorruptEntry(t *testing.T) {
	ctx := context.Background()
	d, err := OpenDisk(t.TempDir())
	require.NoError(t, err)

	key := Key{0xab}
	require.NoError(t, os.MkdirAll(filepath.Dir(d.pathFor(key)), 0o755))
	require.NoError(t, os.WriteFile(d.pathFor(key), []byte{0xc1}, 0o644))

	_, _, err = d.Get(ctx, key)
	assert.Error(t, err)
}

func TestLayeredPromotesSlowHits(t *testing.T) {
	ctx := context.Background()
	fast := NewMemory(10)
	slow := NewMemory(10)
	l := NewLayered(fast, slow)

	require.NoError(t, slow.Put(ctx, Key{7}, "from disk"))
	v, ok, err := l.Get(ctx, Key{7})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "from disk", v)
	assert.Equal(t, 1, fast.Len())

	require.NoError(t, l.Put(ctx, Key{8}, "both"))
	assert.Equal(t, 2, slow.Len())
}

func TestOpen(t *testing.T) {
	s, err := Open("", 5)
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	s, err = Open(t.TempDir(), 5)
	require.NoError(t, err)
	assert.IsType(t, &Layered{}, s)
}
