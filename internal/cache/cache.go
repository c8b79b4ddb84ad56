// Package cache memoizes resolver output keyed by the content a fix was
// computed from, so repeated runs over unchanged lines skip the model call.
package cache

import (
	"container/list"
	"context"
	"encoding/hex"
	"strings"
	"sync"

	"github.com/zeebo/blake3"

	"github.com/steveyegge/hyperlint/internal/types"
)

// keyVersion is mixed into every key; bump it when the fix prompt changes
// meaning so stale entries stop matching.
const keyVersion = "hyperlint-fix-v1"

// Key identifies one resolver input
type Key [32]byte

// String returns the hex form of the key
func (k Key) String() string { return hex.EncodeToString(k[:]) }

// KeyFor hashes everything that determines a fix: the namespace (resolver
// and model), the line content, its messages, and the surrounding context.
func KeyFor(namespace string, issue types.ReplaceIssue, window string) Key {
	h := blake3.New()
	for _, part := range []string{
		keyVersion,
		namespace,
		issue.ExistingContent,
		strings.Join(issue.Messages, "\x1f"),
		window,
	} {
		_, _ = h.Write([]byte(part))
		_, _ = h.Write([]byte{0})
	}
	var k Key
	copy(k[:], h.Sum(nil))
	return k
}

// Store maps keys to previously computed fixes
type Store interface {
	Get(ctx context.Context, key Key) (string, bool, error)
	Put(ctx context.Context, key Key, value string) error
}

// Stats contains cache statistics.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Size      int
	MaxSize   int
}

// Memory is a thread-safe LRU store
type Memory struct {
	mu        sync.Mutex
	maxSize   int
	entries   map[Key]*list.Element
	evictList *list.List
	stats     Stats
}

type memoryEntry struct {
	key   Key
	value string
}

// NewMemory creates an LRU store holding at most maxSize entries (0 = unlimited)
func NewMemory(maxSize int) *Memory {
	if maxSize < 0 {
		maxSize = 0
	}
	return &Memory{
		maxSize:   maxSize,
		entries:   make(map[Key]*list.Element),
		evictList: list.New(),
	}
}

func (c *Memory) Get(_ context.Context, key Key) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ent, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		return "", false, nil
	}
	c.evictList.MoveToFront(ent)
	c.stats.Hits++
	return ent.Value.(*memoryEntry).value, true, nil
}

func (c *Memory) Put(_ context.Context, key Key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.entries[key]; ok {
		c.evictList.MoveToFront(ent)
		ent.Value.(*memoryEntry).value = value
		return nil
	}

	c.entries[key] = c.evictList.PushFront(&memoryEntry{key: key, value: value})
	if c.maxSize > 0 && c.evictList.Len() > c.maxSize {
		oldest := c.evictList.Back()
		c.evictList.Remove(oldest)
		delete(c.entries, oldest.Value.(*memoryEntry).key)
		c.stats.Evictions++
	}
	return nil
}

// Len returns the number of entries
func (c *Memory) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictList.Len()
}

// Stats returns cache statistics.
func (c *Memory) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Size = c.evictList.Len()
	s.MaxSize = c.maxSize
	return s
}

// Layered reads through a fast store to a slow one and fills the fast store
// on slow hits. Writes go to both.
type Layered struct {
	fast Store
	slow Store
}

// NewLayered combines two stores
func NewLayered(fast, slow Store) *Layered {
	return &Layered{fast: fast, slow: slow}
}

func (l *Layered) Get(ctx context.Context, key Key) (string, bool, error) {
	if v, ok, err := l.fast.Get(ctx, key); err != nil || ok {
		return v, ok, err
	}
	v, ok, err := l.slow.Get(ctx, key)
	if err != nil || !ok {
		return "", false, err
	}
	return v, true, l.fast.Put(ctx, key, v)
}

func (l *Layered) Put(ctx context.Context, key Key, value string) error {
	if err := l.fast.Put(ctx, key, value); err != nil {
		return err
	}
	return l.slow.Put(ctx, key, value)
}
