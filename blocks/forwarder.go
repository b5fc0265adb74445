package blocks

import (
	"github.com/chazu/blockbridge/block"
	"github.com/chazu/blockbridge/dtype"
	"github.com/chazu/blockbridge/engine"
	"github.com/chazu/blockbridge/port"
	"github.com/chazu/blockbridge/proxy"
)

func init() {
	engine.Register("/blocks/forwarder", "Copy input 0 to output 0 with labels and messages",
		func(native proxy.Proxy, args ...any) (block.Worker, error) {
			dt, err := dtypeArg(args, 0, dtype.MustParse("byte"))
			if err != nil {
				return nil, err
			}
			return NewForwarder(native, dt)
		})
}

// Forwarder copies elements, labels and messages from input 0 to output
// 0 unchanged.
type Forwarder struct {
	*block.Base
	in  *port.InputPort
	out *port.OutputPort
}

// NewForwarder binds a forwarder of dt items to native.
func NewForwarder(native proxy.Proxy, dt dtype.DType) (*Forwarder, error) {
	f := &Forwarder{}
	b, err := block.New(native, f)
	if err != nil {
		return nil, err
	}
	f.Base = b
	if f.in, err = b.SetupInput("0", dt); err != nil {
		return nil, err
	}
	if f.out, err = b.SetupOutput("0", dt); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Forwarder) Work() error {
	if err := forwardMessages(f.in, f.out); err != nil {
		return err
	}
	n, err := window(f.in, f.out)
	if err != nil || n == 0 {
		return err
	}
	return forward(f.in, f.out, n)
}

// window is the number of elements both ports can take this call.
func window(in *port.InputPort, out *port.OutputPort) (int, error) {
	avail, err := in.Elements()
	if err != nil {
		return 0, err
	}
	room, err := out.Elements()
	if err != nil {
		return 0, err
	}
	return min(avail, room), nil
}

// forward copies n elements, moves the labels that fall inside them and
// then consumes and produces n.
func forward(in *port.InputPort, out *port.OutputPort, n int) error {
	src, err := in.Buffer()
	if err != nil {
		return err
	}
	dst, err := out.Buffer()
	if err != nil {
		return err
	}
	w, err := dst.WritableBytes()
	if err != nil {
		return err
	}
	copy(w, src.Bytes()[:n*src.DType().Size()])

	r, err := in.Labels()
	if err != nil {
		return err
	}
	labels, err := r.Collect()
	if err != nil {
		return err
	}
	for _, l := range labels {
		if l.Index >= uint64(n) {
			continue
		}
		if err := in.RemoveLabel(l); err != nil {
			return err
		}
		if err := out.PostLabel(l); err != nil {
			return err
		}
	}

	if err := in.Consume(n); err != nil {
		return err
	}
	return out.Produce(n)
}

func forwardMessages(in *port.InputPort, out *port.OutputPort) error {
	for {
		ok, err := in.HasMessage()
		if err != nil || !ok {
			return err
		}
		m, err := in.PopMessage()
		if err != nil {
			return err
		}
		if err := out.PostMessage(m); err != nil {
			return err
		}
	}
}
