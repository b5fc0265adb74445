package managed

import (
	"fmt"
	"reflect"

	"github.com/chazu/blockbridge/proxy"
)

var (
	proxyType = reflect.TypeFor[proxy.Proxy]()
	errorType = reflect.TypeFor[error]()
)

// invoke calls fn with the leading values followed by args converted to
// fn's parameter types. Panics inside fn are returned as errors.
func invoke(fn reflect.Value, leading []reflect.Value, args []proxy.Proxy) (result any, err error) {
	ft := fn.Type()
	fixed := ft.NumIn() - len(leading)
	if ft.IsVariadic() {
		fixed--
		if len(args) < fixed {
			return nil, fmt.Errorf("expects at least %d arguments, got %d", fixed, len(args))
		}
	} else if len(args) != fixed {
		return nil, fmt.Errorf("expects %d arguments, got %d", fixed, len(args))
	}

	in := make([]reflect.Value, 0, len(leading)+len(args))
	in = append(in, leading...)
	for i, a := range args {
		var pt reflect.Type
		if ft.IsVariadic() && i >= fixed {
			pt = ft.In(ft.NumIn() - 1).Elem()
		} else {
			pt = ft.In(len(leading) + i)
		}
		v, err := convertArg(a, pt)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		in = append(in, v)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return unpackResults(fn.Call(in))
}

// unpackResults maps Go results to a single value: nothing becomes nil, a
// trailing error is split off, several values become a []any.
func unpackResults(out []reflect.Value) (any, error) {
	if n := len(out); n > 0 && out[n-1].Type() == errorType {
		if !out[n-1].IsNil() {
			return nil, out[n-1].Interface().(error)
		}
		out = out[:n-1]
	}
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		return out[0].Interface(), nil
	}
	vals := make([]any, len(out))
	for i, v := range out {
		vals[i] = v.Interface()
	}
	return vals, nil
}

// convertArg turns a proxy into a value of type t. A parameter of type
// proxy.Proxy receives the proxy itself.
func convertArg(p proxy.Proxy, t reflect.Type) (reflect.Value, error) {
	if t == proxyType {
		return reflect.ValueOf(p), nil
	}
	gv, err := p.ToGo()
	if err != nil {
		return reflect.Value{}, err
	}
	return convertValue(gv, t)
}

func convertValue(gv any, t reflect.Type) (reflect.Value, error) {
	if gv == nil {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(gv)
	if rv.Type().AssignableTo(t) {
		if t.Kind() == reflect.Interface {
			out := reflect.New(t).Elem()
			out.Set(rv)
			return out, nil
		}
		return rv, nil
	}
	if isNumber(rv.Kind()) && isNumber(t.Kind()) {
		return rv.Convert(t), nil
	}
	if rv.Kind() == reflect.Slice && t.Kind() == reflect.Slice {
		out := reflect.MakeSlice(t, rv.Len(), rv.Len())
		for i := 0; i < rv.Len(); i++ {
			ev, err := convertValue(rv.Index(i).Interface(), t.Elem())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			out.Index(i).Set(ev)
		}
		return out, nil
	}
	if rv.Kind() == reflect.String && t.Kind() == reflect.String {
		return rv.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %s as %s", rv.Type(), t)
}

func isNumber(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func isInteger(k reflect.Kind) bool {
	return isNumber(k) && k != reflect.Float32 && k != reflect.Float64
}

func isUnsigned(k reflect.Kind) bool {
	switch k {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	}
	return false
}
