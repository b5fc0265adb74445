package proxy

import (
	"fmt"

	"github.com/tliron/commonlog"
)

// Backend holds the conversion rules between Go values and the native
// objects of one runtime.
type Backend interface {
	// MakeHandle wraps v. It must return a non-nil handle for every value
	// it accepts, including nil, which is the "proxy of nothing".
	MakeHandle(env *Environment, v any) (Handle, error)

	// FindHandle looks up a named native entity (a class, a module, a
	// service target).
	FindHandle(env *Environment, name string) (Handle, error)

	// ToGo converts a handle created by this backend back to a Go value.
	ToGo(h Handle) (any, error)
}

// Environment creates, converts and resolves proxies for one runtime.
// Environments are obtained from a Registry and live for the life of the
// process.
type Environment struct {
	name    string
	backend Backend
	log     commonlog.Logger
}

func newEnvironment(name string, b Backend) *Environment {
	return &Environment{
		name:    name,
		backend: b,
		log:     commonlog.GetLogger("blockbridge.proxy." + name),
	}
}

// NewEnvironment builds an environment outside any registry. Tests and
// servers that need an isolated environment use it; everything else should
// go through Find.
func NewEnvironment(name string, b Backend) *Environment {
	return newEnvironment(name, b)
}

// Name returns the registry name of the environment.
func (e *Environment) Name() string {
	return e.name
}

// Backend returns the environment's backend.
func (e *Environment) Backend() Backend {
	return e.backend
}

// Convert wraps v as a Proxy of this environment. Proxies already owned by
// e are returned unchanged; proxies of other environments are translated by
// way of their Go value. Converting nil yields a non-null proxy of nothing.
func (e *Environment) Convert(v any) (Proxy, error) {
	if p, ok := v.(Proxy); ok {
		if p.IsNull() {
			return Proxy{}, &NullProxyError{Op: "convert"}
		}
		if p.env == e {
			return p, nil
		}
		gv, err := p.ToGo()
		if err != nil {
			return Proxy{}, fmt.Errorf("proxy: translate %s from %s to %s: %w", p.ClassName(), p.env.name, e.name, err)
		}
		e.log.Debugf("translating %s from %s", p.ClassName(), p.env.name)
		v = gv
	}
	h, err := e.backend.MakeHandle(e, v)
	if err != nil {
		return Proxy{}, err
	}
	if h == nil {
		return Proxy{}, &NullConversionAmbiguity{Env: e.name, Value: v}
	}
	return Proxy{env: e, h: h}, nil
}

// MakeProxy is Convert for callers that know v is a plain Go value.
func (e *Environment) MakeProxy(v any) (Proxy, error) {
	return e.Convert(v)
}

// FindProxy resolves a named native entity.
func (e *Environment) FindProxy(name string) (Proxy, error) {
	h, err := e.backend.FindHandle(e, name)
	if err != nil {
		return Proxy{}, err
	}
	if h == nil {
		return Proxy{}, &NullConversionAmbiguity{Env: e.name, Value: name}
	}
	return Proxy{env: e, h: h}, nil
}

// ToGo converts p back into a Go value. p must belong to e.
func (e *Environment) ToGo(p Proxy) (any, error) {
	if p.IsNull() {
		return nil, &NullProxyError{Op: "convert"}
	}
	if p.env != e {
		return p.env.ToGo(p)
	}
	return e.backend.ToGo(p.h)
}

func (e *Environment) String() string {
	return "Environment(" + e.name + ")"
}
