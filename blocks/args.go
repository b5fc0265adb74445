// Package blocks holds the stock bridged blocks. Each registers a factory
// with engine.DefaultRegistry under /blocks/.
package blocks

import (
	"fmt"
	"reflect"
	"unsafe"

	"github.com/tliron/commonlog"

	"github.com/chazu/blockbridge/dtype"
	"github.com/chazu/blockbridge/label"
)

var log = commonlog.GetLogger("blockbridge.blocks")

// dtypeArg reads a dtype argument given as markup or as a DType. A missing
// argument yields def.
func dtypeArg(args []any, i int, def dtype.DType) (dtype.DType, error) {
	if i >= len(args) || args[i] == nil {
		return def, nil
	}
	switch v := args[i].(type) {
	case dtype.DType:
		return v, nil
	case string:
		return dtype.Parse(v)
	}
	return dtype.DType{}, fmt.Errorf("argument %d: want dtype, got %T", i, args[i])
}

// floatArg reads a numeric argument.
func floatArg(args []any, i int, def float64) (float64, error) {
	if i >= len(args) || args[i] == nil {
		return def, nil
	}
	rv := reflect.ValueOf(args[i])
	if !rv.CanConvert(reflect.TypeFor[float64]()) || rv.Kind() == reflect.String {
		return 0, fmt.Errorf("argument %d: want number, got %T", i, args[i])
	}
	return rv.Convert(reflect.TypeFor[float64]()).Float(), nil
}

// labelsArg reads a label list given as []label.Label or as maps with id,
// data and index keys.
func labelsArg(args []any, i int) ([]label.Label, error) {
	if i >= len(args) || args[i] == nil {
		return nil, nil
	}
	switch v := args[i].(type) {
	case []label.Label:
		return v, nil
	case []any:
		out := make([]label.Label, 0, len(v))
		for j, e := range v {
			m, ok := e.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("argument %d[%d]: want label table, got %T", i, j, e)
			}
			idx, err := floatArg([]any{m["index"]}, 0, 0)
			if err != nil || idx < 0 {
				return nil, fmt.Errorf("argument %d[%d]: bad index %v", i, j, m["index"])
			}
			id, _ := m["id"].(string)
			out = append(out, label.New(id, m["data"], uint64(idx)))
		}
		return out, nil
	}
	return nil, fmt.Errorf("argument %d: want labels, got %T", i, args[i])
}

// encode packs values as items of dt. values may be raw bytes, a slice of
// the item's host type, or a slice of numbers that convert to the element
// type.
func encode(dt dtype.DType, values any) ([]byte, error) {
	size := dt.Size()
	if b, ok := values.([]byte); ok {
		if len(b)%size != 0 {
			return nil, fmt.Errorf("%d bytes is not a whole number of %s items", len(b), dt)
		}
		return append([]byte(nil), b...), nil
	}
	rv := reflect.ValueOf(values)
	if rv.Kind() != reflect.Slice {
		return nil, fmt.Errorf("cannot encode %T as %s", values, dt)
	}
	if rv.Type().Elem() == dt.GoType() {
		return rawBytes(rv, size), nil
	}

	et := dt.ElemGoType()
	if rv.Len()%dt.Dimension() != 0 {
		return nil, fmt.Errorf("%d values is not a whole number of %s items", rv.Len(), dt)
	}
	out := reflect.MakeSlice(reflect.SliceOf(et), rv.Len(), rv.Len())
	for i := range rv.Len() {
		e := rv.Index(i)
		if e.Kind() == reflect.Interface {
			e = e.Elem()
		}
		if !e.IsValid() || !e.CanConvert(et) || e.Kind() == reflect.String {
			return nil, fmt.Errorf("value %d: cannot convert %v to %s", i, e, et)
		}
		out.Index(i).Set(e.Convert(et))
	}
	return rawBytes(out, dt.ElemSize()), nil
}

func rawBytes(slice reflect.Value, itemSize int) []byte {
	n := slice.Len() * itemSize
	if n == 0 {
		return nil
	}
	return append([]byte(nil), unsafe.Slice((*byte)(slice.UnsafePointer()), n)...)
}
