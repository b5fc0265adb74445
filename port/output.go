package port

import (
	"fmt"

	"github.com/chazu/blockbridge/buffer"
	"github.com/chazu/blockbridge/dtype"
	"github.com/chazu/blockbridge/label"
	"github.com/chazu/blockbridge/proxy"
)

// OutputPort is the block-side view of a native output port.
type OutputPort struct {
	p      proxy.Proxy
	native nativeOutput
	name   string
	dt     dtype.DType
}

// NewOutput wraps a native output port.
func NewOutput(p proxy.Proxy) (*OutputPort, error) {
	if p.IsNull() {
		return nil, &proxy.NullProxyError{Op: "wrap output port"}
	}
	n := newNativeOutput(p)
	name, err := n.Name()
	if err != nil {
		return nil, fmt.Errorf("port: output name: %w", err)
	}
	dt, err := readDType(name, n.DType)
	if err != nil {
		return nil, err
	}
	return &OutputPort{p: p, native: n, name: name, dt: dt}, nil
}

// Native returns the native port proxy.
func (out *OutputPort) Native() proxy.Proxy { return out.p }

// Name is the port name.
func (out *OutputPort) Name() string { return out.name }

// DType is the port's element type.
func (out *OutputPort) DType() dtype.DType { return out.dt }

// Index is the port's position among the block's outputs, or -1.
func (out *OutputPort) Index() (int, error) { return out.native.Index() }

// Alias is the display name.
func (out *OutputPort) Alias() (string, error) { return out.native.Alias() }

// Domain is the memory domain of the port's buffers.
func (out *OutputPort) Domain() (string, error) { return out.native.Domain() }

// Elements is the room left for Produce in this work call.
func (out *OutputPort) Elements() (int, error) { return out.native.Elements() }

// TotalElements is the number of elements produced over the port's life.
func (out *OutputPort) TotalElements() (uint64, error) { return out.native.TotalElements() }

// TotalMessages is the number of messages posted.
func (out *OutputPort) TotalMessages() (uint64, error) { return out.native.TotalMessages() }

// Buffer returns a writable view of the output window.
func (out *OutputPort) Buffer() (*buffer.View, error) {
	return viewOf(out.name, out.native.Buffer, out.dt, false)
}

// Produce marks n elements of the output window as written.
func (out *OutputPort) Produce(n int) error {
	if n < 0 {
		return fmt.Errorf("port %s: produce %d: negative count", out.name, n)
	}
	room, err := out.native.Elements()
	if err != nil {
		return err
	}
	if n > room {
		return &OverflowError{Port: out.name, Requested: n, Available: room}
	}
	return out.native.Produce(n)
}

// PostLabel attaches l to the output stream. Index counts elements from the
// start of the current output window. A label read from a native port is
// passed through as is unless it was edited; anything else is built as a
// new native label.
func (out *OutputPort) PostLabel(l label.Label) error {
	src := l.Native()
	if !src.IsNull() && src.Env() == out.p.Env() && !l.Modified() {
		return out.native.PostLabel(src)
	}
	class, err := out.p.Env().FindProxy(label.NativeClass)
	if err != nil {
		return fmt.Errorf("port %s: post label: %w", out.name, err)
	}
	np, err := class.Call("new", l.ID, l.Data, l.Index)
	if err != nil {
		return fmt.Errorf("port %s: post label: %w", out.name, err)
	}
	return out.native.PostLabel(np)
}

// PostMessage queues msg for downstream ports. msg may be a proxy or any
// value the environment can convert.
func (out *OutputPort) PostMessage(msg any) error {
	return out.native.PostMessage(msg)
}

// PostBuffer injects the bytes of v as a separate buffer. Native ports that
// do not accept injected buffers yield *NotImplementedError.
func (out *OutputPort) PostBuffer(v *buffer.View) error {
	if !v.DType().Equal(out.dt) {
		return fmt.Errorf("port %s: post buffer of %s on %s port", out.name, v.DType(), out.dt)
	}
	err := out.native.PostBuffer(v.Address(), v.ByteLen())
	if proxy.IsUnknownMethod(err) {
		return &NotImplementedError{Port: out.name, Op: "postBuffer"}
	}
	return err
}

func (out *OutputPort) String() string {
	return fmt.Sprintf("OutputPort(%s, %s)", out.name, out.dt)
}
