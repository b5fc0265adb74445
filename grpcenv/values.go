package grpcenv

import (
	"cmp"
	"fmt"
	"hash/maphash"
	"maps"
	"reflect"
	"slices"
	"strings"

	"github.com/chazu/blockbridge/proxy"
)

// value is the handle of a request, a response or any part of one.
type value struct {
	b   *Backend
	env *proxy.Environment
	v   any
}

// Call answers get:field and keys on maps, at on lists, and len on
// both.
func (o *value) Call(name string, args []proxy.Proxy) (proxy.Proxy, error) {
	r, err := o.dispatch(name, args)
	if err != nil {
		return proxy.Proxy{}, err
	}
	return proxy.New(o.env, &value{b: o.b, env: o.env, v: r}), nil
}

func (o *value) dispatch(name string, args []proxy.Proxy) (any, error) {
	fail := func(err error) (any, error) {
		return nil, &proxy.DispatchError{Class: o.ClassName(), Method: name, Err: err}
	}
	if field, ok := strings.CutPrefix(name, "get:"); ok {
		m, isMap := asStringMap(o.v)
		if !isMap {
			return fail(fmt.Errorf("%s has no fields", o.ClassName()))
		}
		v, ok := m[field]
		if !ok {
			return fail(fmt.Errorf("%w %q", proxy.ErrNoField, field))
		}
		return v, nil
	}

	rv := reflect.ValueOf(o.v)
	switch name {
	case "toString":
		return o.String(), nil
	case "getClassName":
		return o.ClassName(), nil
	case "len", "size":
		switch rv.Kind() {
		case reflect.Map, reflect.Slice, reflect.Array, reflect.String:
			return rv.Len(), nil
		}
	case "keys":
		if m, ok := asStringMap(o.v); ok {
			return slices.Sorted(maps.Keys(m)), nil
		}
	case "at":
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			break
		}
		if len(args) != 1 {
			return fail(fmt.Errorf("at takes one argument"))
		}
		i, err := proxy.To[int](args[0])
		if err != nil {
			return fail(err)
		}
		if i < 0 || i >= rv.Len() {
			return fail(fmt.Errorf("index %d out of range [0,%d)", i, rv.Len()))
		}
		return rv.Index(i).Interface(), nil
	}
	return nil, &proxy.DispatchError{Class: o.ClassName(), Method: name}
}

func (o *value) CompareTo(other proxy.Proxy) (int, error) {
	b, err := other.ToGo()
	if err != nil {
		return 0, err
	}
	if x, ok := asFloat(o.v); ok {
		if y, ok := asFloat(b); ok {
			return cmp.Compare(x, y), nil
		}
	}
	if x, ok := o.v.(string); ok {
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), nil
		}
	}
	return 0, &proxy.DispatchError{
		Class:  o.ClassName(),
		Method: "compareTo",
		Err:    fmt.Errorf("cannot compare %T with %T", o.v, b),
	}
}

// Identity makes every value proxy distinct, like a fresh message.
func (o *value) Identity() any { return o }

func (o *value) HashCode() uint64 { return maphash.Comparable(o.b.seed, o) }

func (o *value) ClassName() string {
	switch o.v.(type) {
	case nil:
		return "None"
	case map[string]any:
		return "Message"
	case []any:
		return "List"
	}
	return fmt.Sprintf("%T", o.v)
}

func (o *value) String() string {
	if o.v == nil {
		return "None"
	}
	return fmt.Sprint(o.v)
}
