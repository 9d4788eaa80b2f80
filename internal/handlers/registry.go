// Package handlers holds the job-kind registry and the concrete handlers
// the worker binary registers into it.
package handlers

import (
	"fmt"
	"sync"

	"github.com/corvid-labs/capsule/internal/jobqueue"
)

// Registry maps a job kind to the factory that builds its handler. It is
// built once at startup and never mutated after the worker begins polling.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]jobqueue.Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]jobqueue.Factory)}
}

// Register adds a factory for the given kind, overwriting any prior
// registration for the same kind.
func (r *Registry) Register(kind string, factory jobqueue.Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[kind] = factory
}

// Create builds a handler instance for kind, or an error if nothing is
// registered for it.
func (r *Registry) Create(kind string) (jobqueue.Handler, error) {
	r.mu.RLock()
	factory, ok := r.handlers[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("handlers: no handler registered for job kind %q", kind)
	}
	return factory(), nil
}

// Kinds returns every registered job kind, in no particular order.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		kinds = append(kinds, k)
	}
	return kinds
}
