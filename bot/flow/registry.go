package flow

import (
	"sort"
	"sync"

	"botflow/entity"
)

// Registry maps block types to their handlers. Safe for concurrent use;
// registration normally happens once at startup.
type Registry struct {
	mu       sync.RWMutex
	handlers map[entity.BlockType]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[entity.BlockType]Handler)}
}

// Register binds a handler to every block type it serves. Later
// registrations of the same type overwrite earlier ones.
func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range h.Types() {
		r.handlers[t] = h
	}
}

// Get returns the handler for a block type.
func (r *Registry) Get(t entity.BlockType) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[t]
	return h, ok
}

// Types returns all registered block types, sorted.
func (r *Registry) Types() []entity.BlockType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]entity.BlockType, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
