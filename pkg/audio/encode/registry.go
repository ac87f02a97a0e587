// ABOUTME: Registry of encoder factories keyed by type string
// ABOUTME: Recorders look encoders up here; DefaultRegistry preloads the built-ins
package encode

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownType is returned when no encoder is registered for a type
var ErrUnknownType = errors.New("unknown encoder type")

// Factory creates a fresh encoder for one take
type Factory func() Encoder

// Registry maps type strings to encoder factories
type Registry struct {
	factories map[string]Factory

	mtx sync.Mutex
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// DefaultRegistry returns a registry holding every built-in encoder
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("wav", NewWAV)
	r.Register("pcm", NewPCM)
	r.Register("opus", NewOpus)
	return r
}

// Register adds or replaces the factory for typ
func (r *Registry) Register(typ string, f Factory) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	r.factories[typ] = f
}

// Unregister removes the factory for typ
func (r *Registry) Unregister(typ string) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	delete(r.factories, typ)
}

// Get returns the factory for typ
func (r *Registry) Get(typ string) (Factory, bool) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	f, ok := r.factories[typ]
	return f, ok
}

// New creates an encoder for typ
func (r *Registry) New(typ string) (Encoder, error) {
	f, ok := r.Get(typ)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, typ)
	}
	return f(), nil
}

// Types lists the registered type strings in sorted order
func (r *Registry) Types() []string {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	types := make([]string, 0, len(r.factories))
	for typ := range r.factories {
		types = append(types, typ)
	}
	sort.Strings(types)
	return types
}
