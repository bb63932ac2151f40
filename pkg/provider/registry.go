package provider

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Factory constructs a Provider from its identity. Factories resolve
// credentials and must fail with *api.ConfigurationError before any network
// activity when a mandatory credential is missing.
type Factory func(opts Options) (Provider, error)

// Registry maps backend identifiers to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under name. Registering the same name twice
// replaces the earlier factory.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[strings.ToLower(name)] = f
}

// New constructs a provider for the named backend.
func (r *Registry) New(name string, opts Options) (Provider, error) {
	r.mu.RLock()
	f, ok := r.factories[strings.ToLower(name)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown backend %q (available: %s)", name, strings.Join(r.Names(), ", "))
	}
	return f(opts)
}

// Names returns the registered backend names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ParseModel splits a "backend/model" reference. The model part may itself
// contain slashes.
func ParseModel(ref string) (backend, model string, err error) {
	backend, model, ok := strings.Cut(ref, "/")
	if !ok || backend == "" || model == "" {
		return "", "", fmt.Errorf("model %q must have the form backend/model", ref)
	}
	return backend, model, nil
}
