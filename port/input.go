// Package port wraps native input and output ports. Every operation is a
// dynamic call on the native port; this package adds bounds checks, typed
// buffer views and label conversion.
//
// Buffer views returned by a port alias native memory and are valid until
// the next Consume or Produce on that port, or until the work call returns.
package port

import (
	"fmt"

	"github.com/chazu/blockbridge/buffer"
	"github.com/chazu/blockbridge/dtype"
	"github.com/chazu/blockbridge/label"
	"github.com/chazu/blockbridge/proxy"
)

// InputPort is the block-side view of a native input port.
type InputPort struct {
	p      proxy.Proxy
	native nativeInput
	name   string
	dt     dtype.DType
}

// NewInput wraps a native input port. The name and dtype are read once;
// they cannot change after setup.
func NewInput(p proxy.Proxy) (*InputPort, error) {
	if p.IsNull() {
		return nil, &proxy.NullProxyError{Op: "wrap input port"}
	}
	n := newNativeInput(p)
	name, err := n.Name()
	if err != nil {
		return nil, fmt.Errorf("port: input name: %w", err)
	}
	dt, err := readDType(name, n.DType)
	if err != nil {
		return nil, err
	}
	return &InputPort{p: p, native: n, name: name, dt: dt}, nil
}

func readDType(name string, get func() (string, error)) (dtype.DType, error) {
	markup, err := get()
	if err != nil {
		return dtype.DType{}, fmt.Errorf("port %s: dtype: %w", name, err)
	}
	return dtype.Parse(markup)
}

// Native returns the native port proxy.
func (in *InputPort) Native() proxy.Proxy { return in.p }

// Name is the port name.
func (in *InputPort) Name() string { return in.name }

// DType is the port's element type.
func (in *InputPort) DType() dtype.DType { return in.dt }

// Index is the port's position among the block's inputs, or -1 for a
// named port.
func (in *InputPort) Index() (int, error) { return in.native.Index() }

// Alias is the display name.
func (in *InputPort) Alias() (string, error) { return in.native.Alias() }

// Domain is the memory domain of the port's buffers.
func (in *InputPort) Domain() (string, error) { return in.native.Domain() }

// Elements is the number of elements not yet consumed in this work call.
func (in *InputPort) Elements() (int, error) { return in.native.Elements() }

// TotalElements is the number of elements consumed over the port's life.
func (in *InputPort) TotalElements() (uint64, error) { return in.native.TotalElements() }

// TotalBuffers is the number of buffers received.
func (in *InputPort) TotalBuffers() (uint64, error) { return in.native.TotalBuffers() }

// TotalLabels is the number of labels received.
func (in *InputPort) TotalLabels() (uint64, error) { return in.native.TotalLabels() }

// TotalMessages is the number of messages popped.
func (in *InputPort) TotalMessages() (uint64, error) { return in.native.TotalMessages() }

// HasMessage reports whether a message is queued.
func (in *InputPort) HasMessage() (bool, error) { return in.native.HasMessage() }

// PopMessage removes and returns the oldest queued message.
func (in *InputPort) PopMessage() (proxy.Proxy, error) { return in.native.PopMessage() }

// Labels returns a lazy range over the labels pending in this work call.
// Label indexes count elements from the start of Buffer.
func (in *InputPort) Labels() (*label.IteratorRange, error) {
	r, err := in.native.Labels()
	if err != nil {
		return nil, err
	}
	return label.NewIteratorRange(r), nil
}

// RemoveLabel removes a label obtained from Labels. Plain labels and
// labels of another class are refused.
func (in *InputPort) RemoveLabel(l label.Label) error {
	src := l.Native()
	switch {
	case src.IsNull():
		return &InvalidLabelSourceError{Port: in.name, Label: l, Reason: "label has no native source"}
	case src.Env() != in.p.Env():
		return &InvalidLabelSourceError{Port: in.name, Label: l, Reason: "label belongs to environment " + src.Env().Name()}
	case src.ClassName() != label.NativeClass:
		return &InvalidLabelSourceError{Port: in.name, Label: l, Reason: "native class is " + src.ClassName()}
	}
	return in.native.RemoveLabel(src)
}

// Buffer returns a read-only view of the readable elements.
func (in *InputPort) Buffer() (*buffer.View, error) {
	return viewOf(in.name, in.native.Buffer, in.dt, true)
}

// Consume marks n elements as read.
func (in *InputPort) Consume(n int) error {
	if n < 0 {
		return fmt.Errorf("port %s: consume %d: negative count", in.name, n)
	}
	avail, err := in.native.Elements()
	if err != nil {
		return err
	}
	if n > avail {
		return &UnderflowError{Port: in.name, Requested: n, Available: avail}
	}
	return in.native.Consume(n)
}

// SetReserve asks the engine not to call work until n elements are
// available.
func (in *InputPort) SetReserve(n int) error {
	if n < 0 {
		return fmt.Errorf("port %s: reserve %d: negative count", in.name, n)
	}
	return in.native.SetReserve(n)
}

func (in *InputPort) String() string {
	return fmt.Sprintf("InputPort(%s, %s)", in.name, in.dt)
}

func viewOf(name string, get func() (proxy.Proxy, error), dt dtype.DType, readOnly bool) (*buffer.View, error) {
	bp, err := get()
	if err != nil {
		return nil, err
	}
	b := newNativeBuffer(bp)
	addr, err := b.Address()
	if err != nil {
		return nil, fmt.Errorf("port %s: buffer address: %w", name, err)
	}
	length, err := b.Length()
	if err != nil {
		return nil, fmt.Errorf("port %s: buffer length: %w", name, err)
	}
	size := dt.Size()
	if size == 0 {
		size = 1
	}
	return buffer.FromPointer(addr, length/size, dt, readOnly)
}
