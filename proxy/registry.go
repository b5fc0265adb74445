package proxy

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds the backend for a named environment. It runs at most
// once per Registry and name.
type Factory func() (Backend, error)

// Registry is process-scoped environment state. Environments are created
// on first lookup and are never torn down.
type Registry struct {
	mu        sync.Mutex
	factories map[string]Factory
	envs      map[string]*Environment
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		envs:      make(map[string]*Environment),
	}
}

// Default is the process registry. Packages that provide a backend
// register it here.
var Default = NewRegistry()

// RegisterFactory records how to build the named environment. Registering
// a name that has already been instantiated has no effect on the existing
// environment.
func (r *Registry) RegisterFactory(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Find returns the environment for name, creating it on first use.
// Repeated calls return the identical *Environment.
func (r *Registry) Find(name string) (*Environment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if env, ok := r.envs[name]; ok {
		return env, nil
	}
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEnvironment, name)
	}
	b, err := f()
	if err != nil {
		return nil, fmt.Errorf("proxy: create environment %q: %w", name, err)
	}
	env := newEnvironment(name, b)
	r.envs[name] = env
	return env, nil
}

// Names lists the registered environment names in sorted order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Register records a factory in the Default registry.
func Register(name string, f Factory) {
	Default.RegisterFactory(name, f)
}

// Find looks up an environment in the Default registry.
func Find(name string) (*Environment, error) {
	return Default.Find(name)
}
