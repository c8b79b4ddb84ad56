package analyzers

import (
	"fmt"
	"sort"
	"sync"

	"github.com/steveyegge/hyperlint/internal/edit"
)

// Registry maps analyzer names to analyzers
type Registry struct {
	mu        sync.RWMutex
	analyzers map[string]edit.Analyzer
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{analyzers: make(map[string]edit.Analyzer)}
}

// Register adds an analyzer. Names must be unique.
func (r *Registry) Register(a edit.Analyzer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := a.Name()
	if _, exists := r.analyzers[name]; exists {
		return fmt.Errorf("analyzer %q already registered", name)
	}
	r.analyzers[name] = a
	return nil
}

// Get returns a registered analyzer by name
func (r *Registry) Get(name string) (edit.Analyzer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.analyzers[name]
	return a, ok
}

// List returns the registered names, sorted
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.analyzers))
	for name := range r.analyzers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve returns the analyzers for names in the given order, skipping
// duplicates. Unknown names are an error.
func (r *Registry) Resolve(names []string) ([]edit.Analyzer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool, len(names))
	out := make([]edit.Analyzer, 0, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		a, ok := r.analyzers[name]
		if !ok {
			return nil, fmt.Errorf("analyzer %q not registered", name)
		}
		seen[name] = true
		out = append(out, a)
	}
	return out, nil
}
