// Package dtype describes the element types carried by port buffers.
//
// A DType is an element type plus a dimension. Names follow the engine's
// convention: base scalar names ("int16", "uint8", "float32"), a "complex_"
// prefix for complex variants, and an optional ", N" dimension suffix in
// markup ("complex_float32, 4").
package dtype

import (
	"fmt"
	"strconv"
	"strings"
)

// ElemType enumerates the supported element types.
type ElemType int

const (
	Empty ElemType = iota
	Custom
	Int8
	UInt8
	Int16
	UInt16
	Int32
	UInt32
	Int64
	UInt64
	ComplexInt8
	ComplexUInt8
	ComplexInt16
	ComplexUInt16
	ComplexInt32
	ComplexUInt32
	ComplexInt64
	ComplexUInt64
	Float32
	Float64
	ComplexFloat32
	ComplexFloat64
	maxElemType
)

type elemInfo struct {
	name string
	size int
}

var elemTable = [maxElemType]elemInfo{
	Empty:          {"unspecified", 1},
	Custom:         {"custom", 1},
	Int8:           {"int8", 1},
	UInt8:          {"uint8", 1},
	Int16:          {"int16", 2},
	UInt16:         {"uint16", 2},
	Int32:          {"int32", 4},
	UInt32:         {"uint32", 4},
	Int64:          {"int64", 8},
	UInt64:         {"uint64", 8},
	ComplexInt8:    {"complex_int8", 2},
	ComplexUInt8:   {"complex_uint8", 2},
	ComplexInt16:   {"complex_int16", 4},
	ComplexUInt16:  {"complex_uint16", 4},
	ComplexInt32:   {"complex_int32", 8},
	ComplexUInt32:  {"complex_uint32", 8},
	ComplexInt64:   {"complex_int64", 16},
	ComplexUInt64:  {"complex_uint64", 16},
	Float32:        {"float32", 4},
	Float64:        {"float64", 8},
	ComplexFloat32: {"complex_float32", 8},
	ComplexFloat64: {"complex_float64", 16},
}

// aliases maps every accepted lower-case spelling to its element type.
var aliases = map[string]ElemType{
	"":            Empty,
	"unspecified": Empty,
	"custom":      Custom,
	"byte":        Int8,
	"octet":       Int8,
	"float":       Float32,
	"double":      Float64,
	"complex64":   ComplexFloat32,
	"complex128":  ComplexFloat64,
}

func init() {
	for t := Int8; t < maxElemType; t++ {
		aliases[elemTable[t].name] = t
	}
	// s-prefixed signed spellings, complex variants included
	for _, bits := range []string{"8", "16", "32", "64"} {
		signed := aliases["int"+bits]
		aliases["sint"+bits] = signed
		aliases["complex_sint"+bits] = aliases["complex_int"+bits]
	}
	native := []struct {
		name string
		t    ElemType
	}{
		{"char", Int8},
		{"short", Int16},
		{"int", Int32},
		{"long", Int64},
		{"long long", Int64},
		{"longlong", Int64},
		{"llong", Int64},
	}
	for _, n := range native {
		aliases[n.name] = n.t
		aliases["s"+n.name] = n.t
		aliases["u"+n.name] = n.t + 1
	}
}

// UnknownError is returned for markup that names no known element type or
// carries an unparsable dimension.
type UnknownError struct {
	Markup string
	Reason string
}

func (e *UnknownError) Error() string {
	return fmt.Sprintf("dtype: %q: %s", e.Markup, e.Reason)
}

// DType is an element type with a dimension. The zero value is the empty
// ("unspecified") type with dimension 1.
type DType struct {
	elem ElemType
	dim  int
}

// New builds a DType from an alias and a dimension.
func New(alias string, dimension int) (DType, error) {
	t, err := lookupAlias(alias)
	if err != nil {
		return DType{}, err
	}
	if dimension < 1 {
		return DType{}, &UnknownError{Markup: alias, Reason: "dimension must be positive"}
	}
	return DType{elem: t, dim: dimension}, nil
}

// Parse reads markup of the form "alias" or "alias, dimension".
func Parse(markup string) (DType, error) {
	alias, dimStr, hasDim := strings.Cut(markup, ",")
	if !hasDim {
		return New(strings.TrimSpace(markup), 1)
	}
	dim, err := strconv.Atoi(strings.TrimSpace(dimStr))
	if err != nil {
		return DType{}, &UnknownError{Markup: markup, Reason: "cant parse markup: " + err.Error()}
	}
	return New(strings.TrimSpace(alias), dim)
}

// MustParse is Parse for constant markup; it panics on error.
func MustParse(markup string) DType {
	d, err := Parse(markup)
	if err != nil {
		panic(err)
	}
	return d
}

func lookupAlias(alias string) (ElemType, error) {
	t, ok := aliases[strings.ToLower(alias)]
	if !ok {
		return Empty, &UnknownError{Markup: alias, Reason: "unknown type alias"}
	}
	return t, nil
}

// Of returns the DType for an element type with dimension 1.
func Of(t ElemType) DType {
	return DType{elem: t, dim: 1}
}

// Name is the canonical element name, without dimension.
func (d DType) Name() string { return elemTable[d.elem].name }

// ElemType returns the element type.
func (d DType) ElemType() ElemType { return d.elem }

// ElemSize is the size in bytes of one scalar element.
func (d DType) ElemSize() int { return elemTable[d.elem].size }

// Dimension is the number of scalar elements per item.
func (d DType) Dimension() int {
	if d.dim == 0 {
		return 1
	}
	return d.dim
}

// Size is the size in bytes of one item: ElemSize * Dimension.
func (d DType) Size() int { return d.ElemSize() * d.Dimension() }

// IsEmpty reports whether d is the unspecified type.
func (d DType) IsEmpty() bool { return d.elem == Empty }

// IsComplex reports whether the element type is a complex type.
func (d DType) IsComplex() bool {
	return (d.elem >= ComplexInt8 && d.elem <= ComplexUInt64) ||
		d.elem == ComplexFloat32 || d.elem == ComplexFloat64
}

// IsFloat reports whether the underlying scalar is floating point.
func (d DType) IsFloat() bool {
	return d.elem >= Float32 && d.elem <= ComplexFloat64
}

// IsSigned reports whether the underlying scalar is signed.
func (d DType) IsSigned() bool {
	switch d.elem {
	case Int8, Int16, Int32, Int64, ComplexInt8, ComplexInt16, ComplexInt32, ComplexInt64:
		return true
	}
	return d.IsFloat()
}

// Shape is the logical shape of one item. Complex integer types, which
// have no host complex type, carry a trailing dimension of 2.
func (d DType) Shape() []int {
	if d.elem >= ComplexInt8 && d.elem <= ComplexUInt64 {
		return []int{d.Dimension(), 2}
	}
	return []int{d.Dimension()}
}

// Markup renders d in the form accepted by Parse.
func (d DType) Markup() string {
	if d.Dimension() == 1 {
		return d.Name()
	}
	return d.Name() + ", " + strconv.Itoa(d.Dimension())
}

// Equal compares name, dimension and element size.
func (d DType) Equal(o DType) bool {
	return d.elem == o.elem && d.Dimension() == o.Dimension()
}

func (d DType) String() string {
	if d.Dimension() == 1 {
		return d.Name()
	}
	return fmt.Sprintf("%s [%d]", d.Name(), d.Dimension())
}

// ElemTypes lists every concrete element type, for exhaustive checks.
func ElemTypes() []ElemType {
	out := make([]ElemType, 0, int(maxElemType))
	for t := Empty; t < maxElemType; t++ {
		out = append(out, t)
	}
	return out
}
