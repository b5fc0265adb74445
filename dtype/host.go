package dtype

import (
	"fmt"
	"reflect"
)

var hostTypes = map[ElemType]reflect.Type{
	Int8:           reflect.TypeFor[int8](),
	UInt8:          reflect.TypeFor[uint8](),
	Int16:          reflect.TypeFor[int16](),
	UInt16:         reflect.TypeFor[uint16](),
	Int32:          reflect.TypeFor[int32](),
	UInt32:         reflect.TypeFor[uint32](),
	Int64:          reflect.TypeFor[int64](),
	UInt64:         reflect.TypeFor[uint64](),
	ComplexInt8:    reflect.TypeFor[[2]int8](),
	ComplexUInt8:   reflect.TypeFor[[2]uint8](),
	ComplexInt16:   reflect.TypeFor[[2]int16](),
	ComplexUInt16:  reflect.TypeFor[[2]uint16](),
	ComplexInt32:   reflect.TypeFor[[2]int32](),
	ComplexUInt32:  reflect.TypeFor[[2]uint32](),
	ComplexInt64:   reflect.TypeFor[[2]int64](),
	ComplexUInt64:  reflect.TypeFor[[2]uint64](),
	Float32:        reflect.TypeFor[float32](),
	Float64:        reflect.TypeFor[float64](),
	ComplexFloat32: reflect.TypeFor[complex64](),
	ComplexFloat64: reflect.TypeFor[complex128](),
}

var fromHost = func() map[reflect.Type]ElemType {
	m := make(map[reflect.Type]ElemType, len(hostTypes))
	for t, rt := range hostTypes {
		m[rt] = t
	}
	return m
}()

// ElemGoType returns the host type of one scalar element. Complex integer
// types map to a two-element array of the integer type. Empty and custom
// types map to byte.
func (d DType) ElemGoType() reflect.Type {
	if rt, ok := hostTypes[d.elem]; ok {
		return rt
	}
	return reflect.TypeFor[byte]()
}

// GoType returns the host type of one item: the element type, or an array
// of it when the dimension is greater than one.
func (d DType) GoType() reflect.Type {
	if d.Dimension() == 1 {
		return d.ElemGoType()
	}
	return reflect.ArrayOf(d.Dimension(), d.ElemGoType())
}

// FromType maps a host type back to a DType. Arrays of a supported scalar
// become a dimensioned DType; [2]intN is the complex integer type.
func FromType(rt reflect.Type) (DType, error) {
	if t, ok := fromHost[rt]; ok {
		return Of(t), nil
	}
	if rt.Kind() == reflect.Array {
		inner, err := FromType(rt.Elem())
		if err != nil {
			return DType{}, err
		}
		if inner.Dimension() != 1 {
			return DType{}, &UnknownError{Markup: rt.String(), Reason: "unsupported element type"}
		}
		return DType{elem: inner.elem, dim: rt.Len()}, nil
	}
	switch rt.Kind() {
	case reflect.Int:
		return Of(Int64), nil
	case reflect.Uint:
		return Of(UInt64), nil
	}
	return DType{}, &UnknownError{Markup: rt.String(), Reason: "unsupported element type"}
}

// For returns the DType of a host element type.
func For[T any]() DType {
	d, err := FromType(reflect.TypeFor[T]())
	if err != nil {
		panic(fmt.Sprintf("dtype: %v", err))
	}
	return d
}
