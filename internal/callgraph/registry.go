package callgraph

import (
	"sort"
	"sync"
)

// FunctionRegistry indexes top-level function definitions by qualified id
// and by plain name for call resolution.
type FunctionRegistry struct {
	mu sync.RWMutex
	// exact holds every registered qualified id
	exact map[string]struct{}
	// byName maps plain name -> []qualified id
	byName map[string][]string
}

// NewFunctionRegistry creates an empty registry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{
		exact:  make(map[string]struct{}),
		byName: make(map[string][]string),
	}
}

// Register adds a definition. Registering the same qualified id twice is a no-op.
func (r *FunctionRegistry) Register(name, qualifiedName string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.exact[qualifiedName]; ok {
		return
	}
	r.exact[qualifiedName] = struct{}{}
	r.byName[name] = append(r.byName[name], qualifiedName)
}

// Exists reports whether qualifiedName is registered.
func (r *FunctionRegistry) Exists(qualifiedName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.exact[qualifiedName]
	return ok
}

// FindByName returns every qualified id registered under name, sorted.
// The slice is a copy and safe to keep.
func (r *FunctionRegistry) FindByName(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	qns := r.byName[name]
	if len(qns) == 0 {
		return nil
	}
	out := make([]string, len(qns))
	copy(out, qns)
	sort.Strings(out)
	return out
}

// Size returns the number of registered definitions.
func (r *FunctionRegistry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.exact)
}
