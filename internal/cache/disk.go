package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Current schema version - increment when diskEntry format changes
const diskSchemaVersion uint16 = 1

// Disk stores one msgpack file per key under a two-character fan-out directory.
// Writes go through a temp file and rename, so readers never see partial entries.
type Disk struct {
	mu  sync.RWMutex
	dir string
}

type diskEntry struct {
	Schema    uint16
	Value     string
	CreatedAt int64
}

// OpenDisk opens (creating if needed) a disk store rooted at dir
func OpenDisk(dir string) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}
	return &Disk{dir: dir}, nil
}

// Dir returns the store's root directory
func (c *Disk) Dir() string { return c.dir }

func (c *Disk) pathFor(key Key) string {
	hexKey := key.String()
	return filepath.Join(c.dir, hexKey[:2], hexKey+".mp")
}

func (c *Disk) Put(_ context.Context, key Key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	err = msgpack.NewEncoder(f).Encode(&diskEntry{
		Schema:    diskSchemaVersion,
		Value:     value,
		CreatedAt: time.Now().Unix(),
	})
	if err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, p)
}

// Get returns a miss for absent entries and for entries written by another schema
func (c *Disk) Get(_ context.Context, key Key) (string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, err := os.ReadFile(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, err
	}
	var entry diskEntry
	if err := msgpack.Unmarshal(data, &entry); err != nil {
		return "", false, fmt.Errorf("corrupt cache entry %s: %w", key, err)
	}
	if entry.Schema != diskSchemaVersion {
		return "", false, nil
	}
	return entry.Value, true, nil
}

// DropAll removes every entry
func (c *Disk) DropAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.dir + ".old-" + time.Now().Format("20060102150405")
	if err := os.Rename(c.dir, old); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return os.MkdirAll(c.dir, 0o755)
		}
		return err
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}
	return os.RemoveAll(old)
}

// Open builds the standard store: an in-memory LRU in front of a disk store
// in dir. An empty dir gives a memory-only store.
func Open(dir string, maxEntries int) (Store, error) {
	mem := NewMemory(maxEntries)
	if dir == "" {
		return mem, nil
	}
	disk, err := OpenDisk(dir)
	if err != nil {
		return nil, err
	}
	return NewLayered(mem, disk), nil
}
