package extractor

import (
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Registry maps provenance-type names to extractor factories and caches
// the instance each factory produces.
//
// Registration happens once at process start; lookups and instantiation
// are safe for concurrent use. Registry uses singleflight to
// deduplicate concurrent first requests for the same type, so a factory
// never runs twice even under contention.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	instances map[string]Extractor
	create    singleflight.Group
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		instances: make(map[string]Extractor),
	}
}

// Register binds a factory to a provenance-type name. Registering the
// same name again replaces the factory; an already-built instance for
// that name is kept, preserving the one-instance-per-type invariant.
func (r *Registry) Register(typeName string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[typeName] = factory
}

// Factory returns the factory registered for typeName.
func (r *Registry) Factory(typeName string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	factory, ok := r.factories[typeName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, typeName)
	}
	return factory, nil
}

// Instance returns the extractor for typeName, constructing it via the
// registered factory on first use and reusing it afterwards.
func (r *Registry) Instance(typeName string) (Extractor, error) {
	r.mu.RLock()
	instance, ok := r.instances[typeName]
	r.mu.RUnlock()
	if ok {
		return instance, nil
	}

	v, err, _ := r.create.Do(typeName, func() (any, error) {
		// Re-check under the write path: another goroutine may have
		// completed a Do for this key before we entered.
		r.mu.RLock()
		instance, ok := r.instances[typeName]
		r.mu.RUnlock()
		if ok {
			return instance, nil
		}

		factory, err := r.Factory(typeName)
		if err != nil {
			return nil, err
		}
		instance = factory()

		r.mu.Lock()
		r.instances[typeName] = instance
		r.mu.Unlock()
		return instance, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Extractor), nil
}

// Types returns the registered provenance-type names in unspecified
// order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.factories))
	for name := range r.factories {
		types = append(types, name)
	}
	return types
}
