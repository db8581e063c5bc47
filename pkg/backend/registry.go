package backend

import (
	"fmt"
	"sort"
	"sync"

	"github.com/boristopalov/gymkit/pkg/core"
)

// Constructor builds a registry environment
type Constructor func(opts MakeOptions) (core.Env, error)

// MapRegistry is a Registry backed by a map of constructors
type MapRegistry struct {
	constructors map[string]Constructor
	mu           sync.RWMutex
}

// NewRegistry creates an empty registry
func NewRegistry() *MapRegistry {
	return &MapRegistry{
		constructors: make(map[string]Constructor),
	}
}

// Register adds a constructor under id
func (r *MapRegistry) Register(id string, c Constructor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.constructors[id]; exists {
		return fmt.Errorf("environment %s is already registered", id)
	}
	r.constructors[id] = c
	return nil
}

// Deregister removes id from the registry
func (r *MapRegistry) Deregister(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.constructors[id]; !exists {
		return fmt.Errorf("environment %s is not registered: %w", id, core.ErrUnknownIdentifier)
	}
	delete(r.constructors, id)
	return nil
}

func (r *MapRegistry) Registered(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.constructors[id]
	return ok
}

// IDs returns the registered ids in sorted order
func (r *MapRegistry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.constructors))
	for id := range r.constructors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *MapRegistry) Make(id string, opts MakeOptions) (core.Env, error) {
	r.mu.RLock()
	c, ok := r.constructors[id]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("environment %s: %w", id, core.ErrUnknownIdentifier)
	}
	return c(opts)
}
