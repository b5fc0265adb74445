// Package managed is the environment for native Go objects.
//
// Values of any Go type can be proxied. Dispatch resolves a selector
// against the class table first and the value's method set second, so a
// native type needs no registration to be callable; registration adds a
// class name, explicit methods, statics and a constructor.
package managed

import (
	"fmt"
	"hash/maphash"
	"reflect"
	"sync"

	"github.com/chazu/blockbridge/proxy"
)

// Name is the registry name of the managed environment.
const Name = "managed"

func init() {
	proxy.Register(Name, func() (proxy.Backend, error) {
		return NewBackend(DefaultClasses), nil
	})
}

// Env returns the process-wide managed environment.
func Env() *proxy.Environment {
	env, err := proxy.Find(Name)
	if err != nil {
		panic(fmt.Sprintf("managed: %v", err))
	}
	return env
}

// Backend implements proxy.Backend for Go values.
type Backend struct {
	classes *ClassTable
	seed    maphash.Seed

	// methods caches selector resolution per receiver type
	methods sync.Map
}

type methodKey struct {
	t        reflect.Type
	selector string
}

// NewBackend creates a backend over the given class table.
func NewBackend(classes *ClassTable) *Backend {
	return &Backend{
		classes: classes,
		seed:    maphash.MakeSeed(),
	}
}

// Classes returns the backend's class table.
func (b *Backend) Classes() *ClassTable {
	return b.classes
}

// MakeHandle wraps any Go value. nil becomes the "proxy of nothing".
func (b *Backend) MakeHandle(env *proxy.Environment, v any) (proxy.Handle, error) {
	o := &object{b: b, env: env}
	if v == nil {
		return o, nil
	}
	o.v = reflect.ValueOf(v)
	o.class = b.classes.LookupByType(o.v.Type())
	return o, nil
}

// FindHandle resolves a registered class name to a class proxy.
func (b *Backend) FindHandle(env *proxy.Environment, name string) (proxy.Handle, error) {
	c := b.classes.Lookup(name)
	if c == nil {
		return nil, fmt.Errorf("managed: unknown class %q", name)
	}
	return &classObject{b: b, env: env, class: c}, nil
}

// ToGo unwraps a managed handle.
func (b *Backend) ToGo(h proxy.Handle) (any, error) {
	switch o := h.(type) {
	case *object:
		return o.value(), nil
	case *classObject:
		return o.class, nil
	}
	return nil, fmt.Errorf("managed: foreign handle %T", h)
}

// wrap converts a dispatch result into a proxy. Results that are already
// proxies are passed through.
func (b *Backend) wrap(env *proxy.Environment, r any) (proxy.Proxy, error) {
	if p, ok := r.(proxy.Proxy); ok && !p.IsNull() {
		return p, nil
	}
	h, err := b.MakeHandle(env, r)
	if err != nil {
		return proxy.Proxy{}, err
	}
	return proxy.New(env, h), nil
}

// method finds the exported method of v answering selector.
func (b *Backend) method(v reflect.Value, selector string) (reflect.Value, bool) {
	key := methodKey{t: v.Type(), selector: selector}
	if idx, ok := b.methods.Load(key); ok {
		if idx.(int) < 0 {
			return reflect.Value{}, false
		}
		return v.Method(idx.(int)), true
	}
	idx := -1
	t := v.Type()
	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		if exported(m.Name) && matchSelector(m.Name, selector) {
			idx = i
			break
		}
	}
	b.methods.Store(key, idx)
	if idx < 0 {
		return reflect.Value{}, false
	}
	return v.Method(idx), true
}
