// Package proxy implements generic dynamic dispatch to native objects.
//
// A Proxy references exactly one object owned by some runtime. Every
// higher-level operation on a native object is expressed as a Call with a
// method name and arguments; the bridge never enumerates the native
// object's method surface.
package proxy

import (
	"fmt"
	"reflect"
)

// Handle is a backend's reference to one native object.
type Handle interface {
	// Call invokes the named method. Arguments have already been converted
	// into the handle's environment.
	Call(name string, args []Proxy) (Proxy, error)

	// CompareTo returns <0, 0 or >0. other belongs to the same environment.
	CompareTo(other Proxy) (int, error)

	// HashCode must agree with Identity: equal identities hash equally.
	HashCode() uint64

	// ClassName is the native class name of the referenced object.
	ClassName() string

	// Identity is a comparable key for the referenced native object.
	Identity() any

	String() string
}

// Proxy is an opaque handle to a native object. The zero value is the null
// Proxy, which references nothing; only IsNull may be called on it.
//
// A Proxy does not own the object it references. Proxies may be copied and
// used from several goroutines; serialization of concurrent calls on the
// same object is the native object's concern.
type Proxy struct {
	env *Environment
	h   Handle
}

// New binds a backend handle to its environment. Backends use it to return
// results from Call.
func New(env *Environment, h Handle) Proxy {
	if env == nil || h == nil {
		return Proxy{}
	}
	return Proxy{env: env, h: h}
}

// IsNull reports whether p is the null Proxy.
func (p Proxy) IsNull() bool {
	return p.h == nil
}

// Env returns the environment that owns p, or nil for the null Proxy.
func (p Proxy) Env() *Environment {
	return p.env
}

// Handle returns the backend handle, or nil for the null Proxy.
func (p Proxy) Handle() Handle {
	return p.h
}

// Call dispatches name on the native object. Each argument is converted
// through p's environment first, so raw Go values and proxies from other
// environments are both accepted.
func (p Proxy) Call(name string, args ...any) (Proxy, error) {
	if p.IsNull() {
		return Proxy{}, &NullProxyError{Op: "call " + name}
	}
	converted := make([]Proxy, len(args))
	for i, a := range args {
		c, err := p.env.Convert(a)
		if err != nil {
			return Proxy{}, fmt.Errorf("proxy: argument %d of %s: %w", i, name, err)
		}
		converted[i] = c
	}
	return p.h.Call(name, converted)
}

// Get reads a native field.
func (p Proxy) Get(field string) (Proxy, error) {
	return p.Call("get:" + field)
}

// Set writes a native field.
func (p Proxy) Set(field string, value any) error {
	_, err := p.Call("set:"+field, value)
	return err
}

// ToGo converts p back into a Go value.
func (p Proxy) ToGo() (any, error) {
	if p.IsNull() {
		return nil, &NullProxyError{Op: "convert"}
	}
	return p.env.ToGo(p)
}

// Equal reports whether p and other reference the same native object.
// Structurally equal values held by distinct objects are not Equal.
// Two null proxies are Equal.
func (p Proxy) Equal(other Proxy) bool {
	if p.IsNull() || other.IsNull() {
		return p.IsNull() && other.IsNull()
	}
	return p.env == other.env && p.h.Identity() == other.h.Identity()
}

// Hash is consistent with Equal.
func (p Proxy) Hash() uint64 {
	if p.IsNull() {
		return 0
	}
	return p.h.HashCode()
}

// CompareTo delegates to the native comparison. A raw value is converted
// into p's environment before comparing.
func (p Proxy) CompareTo(other any) (int, error) {
	if p.IsNull() {
		return 0, &NullProxyError{Op: "compareTo"}
	}
	o, err := p.env.Convert(other)
	if err != nil {
		return 0, err
	}
	return p.h.CompareTo(o)
}

// Less reports p < other under the native comparison.
func (p Proxy) Less(other any) (bool, error) {
	c, err := p.CompareTo(other)
	return c < 0, err
}

// ClassName returns the native class name, or "" for the null Proxy.
func (p Proxy) ClassName() string {
	if p.IsNull() {
		return ""
	}
	return p.h.ClassName()
}

func (p Proxy) String() string {
	if p.IsNull() {
		return "<null proxy>"
	}
	return p.h.String()
}

// To converts p into a T, applying numeric conversions where the native
// value is a different numeric kind.
func To[T any](p Proxy) (T, error) {
	var zero T
	v, err := p.ToGo()
	if err != nil {
		return zero, err
	}
	if t, ok := v.(T); ok {
		return t, nil
	}
	target := reflect.TypeOf((*T)(nil)).Elem()
	if v == nil {
		switch target.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Slice, reflect.Map:
			return zero, nil
		}
		return zero, fmt.Errorf("proxy: cannot convert none to %s", target)
	}
	rv := reflect.ValueOf(v)
	if rv.CanConvert(target) && convertible(rv.Kind(), target.Kind()) {
		return rv.Convert(target).Interface().(T), nil
	}
	return zero, fmt.Errorf("proxy: cannot convert %s to %s", rv.Type(), target)
}

// CallAs is Call followed by To.
func CallAs[T any](p Proxy, name string, args ...any) (T, error) {
	r, err := p.Call(name, args...)
	if err != nil {
		var zero T
		return zero, err
	}
	return To[T](r)
}

// convertible restricts reflect conversions to the numeric, string and
// bool kinds so that, say, an int is never turned into a string rune.
func convertible(from, to reflect.Kind) bool {
	return kindClass(from) != 0 && kindClass(from) == kindClass(to)
}

func kindClass(k reflect.Kind) int {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return 1
	case reflect.Complex64, reflect.Complex128:
		return 2
	case reflect.String:
		return 3
	case reflect.Bool:
		return 4
	case reflect.Slice:
		return 5
	case reflect.Map:
		return 6
	}
	return 0
}
