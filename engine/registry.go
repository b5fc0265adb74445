package engine

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/chazu/blockbridge/block"
	"github.com/chazu/blockbridge/buffer"
	"github.com/chazu/blockbridge/proxy"
)

// Factory builds a block bound to native. It must call block.New with
// native before returning.
type Factory func(native proxy.Proxy, args ...any) (block.Worker, error)

// Registration describes one block factory.
type Registration struct {
	Path        string
	Description string
	Factory     Factory
}

// Registry maps factory paths such as "/blocks/forwarder" to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Registration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Registration)}
}

// DefaultRegistry holds the factories registered at init time.
var DefaultRegistry = NewRegistry()

// Register adds a factory to DefaultRegistry and panics on a bad or
// duplicate path. It is meant for init functions.
func Register(path, description string, f Factory) {
	if err := DefaultRegistry.Register(Registration{Path: path, Description: description, Factory: f}); err != nil {
		panic(err)
	}
}

// Register adds a factory.
func (r *Registry) Register(reg Registration) error {
	if !strings.HasPrefix(reg.Path, "/") || len(reg.Path) < 2 {
		return fmt.Errorf("factory path %q must start with /", reg.Path)
	}
	if reg.Factory == nil {
		return fmt.Errorf("factory %s: nil factory", reg.Path)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[reg.Path]; ok {
		return fmt.Errorf("factory %s is already registered", reg.Path)
	}
	r.factories[reg.Path] = reg
	return nil
}

// Lookup returns the registration for path.
func (r *Registry) Lookup(path string) (Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.factories[path]
	return reg, ok
}

// Paths lists the registered paths in order.
func (r *Registry) Paths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.factories))
}

// Make creates a node allocating from pool and runs the factory on it.
// A block the factory bound before failing is destroyed.
func (r *Registry) Make(pool *buffer.Pool, path string, args ...any) (*Node, error) {
	reg, ok := r.Lookup(path)
	if !ok {
		return nil, fmt.Errorf("no factory for %s", path)
	}
	n := NewNode(pool)
	n.path = path
	np, err := n.Proxy()
	if err != nil {
		return nil, err
	}
	if _, err := reg.Factory(np, args...); err != nil {
		if b, rerr := n.Block(); rerr == nil {
			b.Destroy()
		}
		return nil, fmt.Errorf("make %s: %w", path, err)
	}
	if n.Bridge() == 0 {
		return nil, fmt.Errorf("make %s: factory did not bind a block", path)
	}
	log.Debugf("made %s from %s", n.Name(), path)
	return n, nil
}
