package kernel

import (
	"sync"

	"github.com/cwbudde/algo-tfprep/internal/cpu"
)

// Entry is a registered float64 kernel implementation.
type Entry struct {
	Name      string
	SIMDLevel cpu.SIMDLevel

	// Priority orders compatible entries; higher wins. Scalar is 0.
	Priority int

	Ops Ops[float64]
}

// Registry keeps the float64 kernel implementations known to the process.
type Registry struct {
	mu      sync.RWMutex
	entries []Entry
	sorted  bool
}

// Global is the registry used by For. Implementations register from init.
var Global = &Registry{}

// Register adds an implementation. All registrations should happen before
// the first Lookup.
func (r *Registry) Register(entry Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, entry)
	r.sorted = false
}

// Lookup returns the highest-priority entry runnable with features, or nil.
func (r *Registry) Lookup(features cpu.Features) *Entry {
	r.sortOnce()

	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := range r.entries {
		if cpu.Supports(features, r.entries[i].SIMDLevel) {
			e := r.entries[i]
			return &e
		}
	}
	return nil
}

// Find returns the best supported entry with the given name, or nil.
func (r *Registry) Find(name string, features cpu.Features) *Entry {
	r.sortOnce()

	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := range r.entries {
		if r.entries[i].Name == name && cpu.Supports(features, r.entries[i].SIMDLevel) {
			e := r.entries[i]
			return &e
		}
	}
	return nil
}

// ListEntries returns a copy of the entries sorted by priority.
func (r *Registry) ListEntries() []Entry {
	r.sortOnce()

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

func (r *Registry) sortOnce() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sorted {
		return
	}
	// insertion sort, the registry holds a handful of entries
	for i := 1; i < len(r.entries); i++ {
		key := r.entries[i]
		j := i - 1
		for j >= 0 && r.entries[j].Priority < key.Priority {
			r.entries[j+1] = r.entries[j]
			j--
		}
		r.entries[j+1] = key
	}
	r.sorted = true
}
