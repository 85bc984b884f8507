// Package registry provides a reference-counted cache for shared objects
// identified by name.
package registry

import (
	"log"
	"sort"
	"sync"
)

// A Factory creates the object for an id on the first acquisition.
type Factory func(id string) any

type entry struct {
	object   any
	refCount int
}

// A Registry hands out shared objects by id. Repeated GetOrCreate calls for
// the same id return the same object, and the object lives until every
// acquisition has been matched by a Release.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	r := &Registry{
		entries: make(map[string]*entry),
	}

	return r
}

// GetOrCreate returns the object registered under id, creating it with
// factory if no entry exists. The factory is invoked at most once per cold
// id, even when multiple goroutines race on the same id.
func (r *Registry) GetOrCreate(id string, factory Factory) any {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if ok {
		e.refCount++
		return e.object
	}

	e = &entry{
		object:   factory(id),
		refCount: 1,
	}
	r.entries[id] = e

	return e.object
}

// Release drops one reference to the entry registered under id. When the
// last reference is dropped, the entry is removed. Releasing an id that is
// not registered is reported and otherwise ignored.
func (r *Registry) Release(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		log.Printf("registry: releasing unregistered id %s", id)
		return
	}

	e.refCount--
	if e.refCount == 0 {
		delete(r.entries, id)
	}
}

// Peek returns the object registered under id without taking a reference.
// The second return value reports whether the entry exists.
func (r *Registry) Peek(id string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}

	return e.object, true
}

// IDs returns the ids of all the live entries, sorted.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return ids
}

// NumEntries returns the number of live entries.
func (r *Registry) NumEntries() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.entries)
}
