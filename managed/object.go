package managed

import (
	"cmp"
	"fmt"
	"hash/maphash"
	"math"
	"reflect"
	"sort"
	"strings"

	"github.com/chazu/blockbridge/proxy"
)

// Comparer lets a native type define its own ordering for compareTo.
type Comparer interface {
	CompareTo(other any) (int, error)
}

// object is the handle for one native Go value. An invalid v is the
// "proxy of nothing".
type object struct {
	b     *Backend
	env   *proxy.Environment
	v     reflect.Value
	class *Class
}

type pointerKey struct {
	t reflect.Type
	p uintptr
}

// Identity is the pointer for reference kinds. Every other value is its
// own identity, so each conversion of a plain value is a distinct object.
func (o *object) Identity() any {
	if o.v.IsValid() {
		switch o.v.Kind() {
		case reflect.Pointer, reflect.Map, reflect.Chan, reflect.UnsafePointer:
			if !o.v.IsNil() {
				return pointerKey{t: o.v.Type(), p: o.v.Pointer()}
			}
		}
	}
	return o
}

func (o *object) HashCode() uint64 {
	id := o.Identity()
	if id == any(o) && o.v.IsValid() && o.v.Comparable() {
		return maphash.Comparable(o.b.seed, o.v.Interface())
	}
	return maphash.Comparable(o.b.seed, id)
}

func (o *object) ClassName() string {
	switch {
	case o.class != nil:
		return o.class.Name
	case !o.v.IsValid():
		return "None"
	}
	return o.v.Type().String()
}

func (o *object) String() string {
	if !o.v.IsValid() {
		return "None"
	}
	if s, ok := o.v.Interface().(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprint(o.v.Interface())
}

func (o *object) value() any {
	if !o.v.IsValid() {
		return nil
	}
	return o.v.Interface()
}

// Call resolves name in this order: explicitly registered class methods,
// field accessors, the Go method set, then container and builtin selectors.
func (o *object) Call(name string, args []proxy.Proxy) (proxy.Proxy, error) {
	r, err := o.dispatch(name, args)
	if err != nil {
		return proxy.Proxy{}, err
	}
	return o.b.wrap(o.env, r)
}

func (o *object) dispatch(name string, args []proxy.Proxy) (any, error) {
	if !o.v.IsValid() {
		if name == "toString" {
			return "None", nil
		}
		return nil, o.unknown(name)
	}

	if o.class != nil {
		if fn, ok := o.class.lookupMethod(name); ok {
			r, err := invoke(fn, []reflect.Value{o.v}, args)
			return o.failed(name, r, err)
		}
	}

	if kind, field, ok := splitAccessor(name); ok {
		r, err := o.access(kind, field, args)
		return o.failed(name, r, err)
	}

	if m, ok := o.b.method(o.v, name); ok {
		r, err := invoke(m, nil, args)
		return o.failed(name, r, err)
	}

	if r, ok, err := o.builtin(name, args); ok {
		return o.failed(name, r, err)
	}
	return nil, o.unknown(name)
}

func (o *object) unknown(name string) error {
	return &proxy.DispatchError{Class: o.ClassName(), Method: name}
}

func (o *object) failed(name string, r any, err error) (any, error) {
	if err != nil {
		return nil, &proxy.DispatchError{Class: o.ClassName(), Method: name, Err: err}
	}
	return r, nil
}

// access implements "get:field" and "set:field" on structs and pointers
// to structs.
func (o *object) access(kind, field string, args []proxy.Proxy) (any, error) {
	sv := o.v
	if sv.Kind() == reflect.Pointer {
		if sv.IsNil() {
			return nil, fmt.Errorf("nil receiver")
		}
		sv = sv.Elem()
	}
	if sv.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%s has no fields", o.v.Type())
	}
	var fv reflect.Value
	for i := 0; i < sv.NumField(); i++ {
		f := sv.Type().Field(i)
		if f.IsExported() && matchSelector(f.Name, field) {
			fv = sv.Field(i)
			break
		}
	}
	if !fv.IsValid() {
		return nil, fmt.Errorf("%w %q", proxy.ErrNoField, field)
	}
	if kind == "get" {
		if len(args) != 0 {
			return nil, fmt.Errorf("get takes no arguments")
		}
		return fv.Interface(), nil
	}
	if len(args) != 1 {
		return nil, fmt.Errorf("set takes one argument")
	}
	if !fv.CanSet() {
		return nil, fmt.Errorf("field %q is not settable on a value receiver", field)
	}
	nv, err := convertArg(args[0], fv.Type())
	if err != nil {
		return nil, err
	}
	fv.Set(nv)
	return nil, nil
}

// builtin answers selectors every value supports and the container
// selectors len, at, get and keys.
func (o *object) builtin(name string, args []proxy.Proxy) (any, bool, error) {
	v := o.v
	switch name {
	case "toString":
		return o.String(), true, nil
	case "getClassName":
		return o.ClassName(), true, nil
	case "len", "size":
		switch v.Kind() {
		case reflect.Slice, reflect.Array, reflect.Map, reflect.String, reflect.Chan:
			return v.Len(), true, nil
		}
	case "at":
		if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
			return nil, false, nil
		}
		if len(args) != 1 {
			return nil, true, fmt.Errorf("at takes one argument")
		}
		idx, err := proxy.To[int](args[0])
		if err != nil {
			return nil, true, err
		}
		if idx < 0 || idx >= v.Len() {
			return nil, true, fmt.Errorf("index %d out of range [0,%d)", idx, v.Len())
		}
		return v.Index(idx).Interface(), true, nil
	case "get":
		if v.Kind() != reflect.Map {
			return nil, false, nil
		}
		if len(args) != 1 {
			return nil, true, fmt.Errorf("get takes one argument")
		}
		key, err := convertArg(args[0], v.Type().Key())
		if err != nil {
			return nil, true, err
		}
		mv := v.MapIndex(key)
		if !mv.IsValid() {
			return nil, true, fmt.Errorf("no key %v", key.Interface())
		}
		return mv.Interface(), true, nil
	case "keys":
		if v.Kind() != reflect.Map {
			return nil, false, nil
		}
		keys := v.MapKeys()
		sort.Slice(keys, func(i, j int) bool {
			return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
		})
		out := make([]any, len(keys))
		for i, k := range keys {
			out[i] = k.Interface()
		}
		return out, true, nil
	}
	return nil, false, nil
}

// CompareTo orders numbers across kinds, strings and bools. Types that
// implement Comparer order themselves.
func (o *object) CompareTo(other proxy.Proxy) (int, error) {
	a := o.value()
	b, err := other.ToGo()
	if err != nil {
		return 0, err
	}
	if c, ok := a.(Comparer); ok {
		return c.CompareTo(b)
	}
	if c, ok := compareValues(a, b); ok {
		return c, nil
	}
	return 0, &proxy.DispatchError{
		Class:  o.ClassName(),
		Method: "compareTo",
		Err:    fmt.Errorf("cannot compare %T with %T", a, b),
	}
}

func compareValues(a, b any) (int, bool) {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0, true
		case a == nil:
			return -1, true
		}
		return 1, true
	}
	av, bv := reflect.ValueOf(a), reflect.ValueOf(b)
	ak, bk := av.Kind(), bv.Kind()
	switch {
	case isNumber(ak) && isNumber(bk):
		return compareNumbers(av, bv), true
	case ak == reflect.String && bk == reflect.String:
		return strings.Compare(av.String(), bv.String()), true
	case ak == reflect.Bool && bk == reflect.Bool:
		x, y := av.Bool(), bv.Bool()
		switch {
		case x == y:
			return 0, true
		case !x:
			return -1, true
		}
		return 1, true
	}
	return 0, false
}

func compareNumbers(a, b reflect.Value) int {
	ak, bk := a.Kind(), b.Kind()
	if isInteger(ak) && isInteger(bk) {
		switch {
		case isUnsigned(ak) && isUnsigned(bk):
			return cmp.Compare(a.Uint(), b.Uint())
		case isUnsigned(ak):
			if b.Int() < 0 || a.Uint() > math.MaxInt64 {
				return 1
			}
			return cmp.Compare(int64(a.Uint()), b.Int())
		case isUnsigned(bk):
			return -compareNumbers(b, a)
		}
		return cmp.Compare(a.Int(), b.Int())
	}
	return cmp.Compare(toFloat(a), toFloat(b))
}

func toFloat(v reflect.Value) float64 {
	switch {
	case v.Kind() == reflect.Float32 || v.Kind() == reflect.Float64:
		return v.Float()
	case isUnsigned(v.Kind()):
		return float64(v.Uint())
	}
	return float64(v.Int())
}

// classObject is the handle returned by FindProxy for a registered class.
type classObject struct {
	b     *Backend
	env   *proxy.Environment
	class *Class
}

func (c *classObject) Call(name string, args []proxy.Proxy) (proxy.Proxy, error) {
	fn, ok := c.class.lookupStatic(name)
	if !ok {
		if name != "new" || c.class.GoType.Kind() != reflect.Pointer || c.class.GoType.Elem().Kind() != reflect.Struct {
			return proxy.Proxy{}, &proxy.DispatchError{Class: c.class.Name, Method: name}
		}
		if len(args) != 0 {
			return proxy.Proxy{}, &proxy.DispatchError{Class: c.class.Name, Method: name,
				Err: fmt.Errorf("no constructor registered; the zero value takes no arguments")}
		}
		return c.b.wrap(c.env, reflect.New(c.class.GoType.Elem()).Interface())
	}
	r, err := invoke(fn, nil, args)
	if err != nil {
		return proxy.Proxy{}, &proxy.DispatchError{Class: c.class.Name, Method: name, Err: err}
	}
	return c.b.wrap(c.env, r)
}

func (c *classObject) CompareTo(other proxy.Proxy) (int, error) {
	if oc, ok := other.Handle().(*classObject); ok {
		return strings.Compare(c.class.Name, oc.class.Name), nil
	}
	return 0, &proxy.DispatchError{Class: c.class.Name, Method: "compareTo",
		Err: fmt.Errorf("cannot compare a class with %s", other.ClassName())}
}

func (c *classObject) HashCode() uint64  { return maphash.Comparable(c.b.seed, c.class) }
func (c *classObject) ClassName() string { return c.class.Name }
func (c *classObject) Identity() any     { return c.class }
func (c *classObject) String() string    { return "class " + c.class.Name }
