// Package buffer provides zero-copy typed views over native buffer memory
// and the slab pool the engine allocates that memory from.
//
// A View aliases memory it does not own. It is valid only for the work
// window that produced it: once the owning port consumes or produces, or
// the work call returns, the memory may be recycled. Views must not be
// shared across goroutines.
package buffer

import (
	"fmt"
	"unsafe"

	"github.com/chazu/blockbridge/dtype"
)

// ReadOnlyViolation is returned for any write access through a read-only
// view.
type ReadOnlyViolation struct {
	Op string
}

func (e *ReadOnlyViolation) Error() string {
	return fmt.Sprintf("buffer: %s on read-only view", e.Op)
}

// View is a typed projection of length items at addr.
type View struct {
	addr     uintptr
	length   int
	dt       dtype.DType
	readOnly bool
}

// FromPointer projects length items of type dt at addr. No memory is
// copied. The caller guarantees addr stays valid for the view's lifetime.
func FromPointer(addr uintptr, length int, dt dtype.DType, readOnly bool) (*View, error) {
	if length < 0 {
		return nil, fmt.Errorf("buffer: negative length %d", length)
	}
	if addr == 0 && length > 0 {
		return nil, fmt.Errorf("buffer: null address with length %d", length)
	}
	return &View{addr: addr, length: length, dt: dt, readOnly: readOnly}, nil
}

// Address is the start of the viewed memory.
func (v *View) Address() uintptr { return v.addr }

// Len is the number of items in the view.
func (v *View) Len() int { return v.length }

// ByteLen is Len times the item size.
func (v *View) ByteLen() int { return v.length * v.dt.Size() }

// DType is the item type.
func (v *View) DType() dtype.DType { return v.dt }

// ReadOnly reports whether writes are refused.
func (v *View) ReadOnly() bool { return v.readOnly }

// Bytes aliases the viewed memory. The slice must not be written when the
// view is read-only; use WritableBytes to have that checked.
func (v *View) Bytes() []byte {
	if v.length == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(v.addr)), v.ByteLen())
}

// WritableBytes aliases the viewed memory for writing.
func (v *View) WritableBytes() ([]byte, error) {
	if v.readOnly {
		return nil, &ReadOnlyViolation{Op: "write"}
	}
	return v.Bytes(), nil
}

// CopyFrom writes src into the start of the view and returns the number of
// bytes written.
func (v *View) CopyFrom(src []byte) (int, error) {
	dst, err := v.WritableBytes()
	if err != nil {
		return 0, err
	}
	return copy(dst, src), nil
}

// Slice projects the view as a []T. T must be the size of one item or of
// one scalar element of the item.
func Slice[T any](v *View) ([]T, error) {
	var zero T
	size := int(unsafe.Sizeof(zero))
	if size == 0 || (size != v.dt.Size() && size != v.dt.ElemSize()) {
		return nil, fmt.Errorf("buffer: cannot view %s as %T", v.dt, zero)
	}
	if v.length == 0 {
		return nil, nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(v.addr)), v.ByteLen()/size), nil
}

// Writable is Slice for writing.
func Writable[T any](v *View) ([]T, error) {
	if v.readOnly {
		return nil, &ReadOnlyViolation{Op: "write"}
	}
	return Slice[T](v)
}

func (v *View) String() string {
	mode := "rw"
	if v.readOnly {
		mode = "ro"
	}
	return fmt.Sprintf("View(%#x, %d x %s, %s)", v.addr, v.length, v.dt, mode)
}
