// Package handler contains the Handler Registry: a mapping from message type
// to a single core.Handler. The last registration for a type wins.
package handler

import (
	"sort"
	"sync"

	"github.com/hupe1980/agentshim/core"
)

// Registry is safe for concurrent registration and lookup, so handlers can be
// added while messages are being dispatched.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]core.Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]core.Handler)}
}

// Register sets (or replaces) the handler for messageType. A nil handler
// removes the entry.
func (r *Registry) Register(messageType string, h core.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h == nil {
		delete(r.handlers, messageType)
		return
	}
	r.handlers[messageType] = h
}

// Unregister removes the handler for messageType and reports whether one existed.
func (r *Registry) Unregister(messageType string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.handlers[messageType]
	delete(r.handlers, messageType)
	return ok
}

// Lookup returns the handler registered for messageType.
func (r *Registry) Lookup(messageType string) (core.Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[messageType]
	return h, ok
}

// Types returns the registered message types in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Len returns the number of registered types.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}
