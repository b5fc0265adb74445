package blocks

import (
	"github.com/chazu/blockbridge/block"
	"github.com/chazu/blockbridge/buffer"
	"github.com/chazu/blockbridge/dtype"
	"github.com/chazu/blockbridge/engine"
	"github.com/chazu/blockbridge/label"
	"github.com/chazu/blockbridge/port"
	"github.com/chazu/blockbridge/proxy"
)

func init() {
	engine.Register("/blocks/gain", "Multiply float32 samples by a gain",
		func(native proxy.Proxy, args ...any) (block.Worker, error) {
			g, err := floatArg(args, 0, 1)
			if err != nil {
				return nil, err
			}
			return NewGain(native, g)
		})
}

// Gain scales float32 samples. The gain is changed through the setGain
// slot, which announces the new value on the gainChanged signal.
type Gain struct {
	*block.Base
	in   *port.InputPort
	out  *port.OutputPort
	gain float32
}

// NewGain binds a gain block to native.
func NewGain(native proxy.Proxy, gain float64) (*Gain, error) {
	g := &Gain{gain: float32(gain)}
	b, err := block.New(native, g)
	if err != nil {
		return nil, err
	}
	g.Base = b
	f32 := dtype.For[float32]()
	if g.in, err = b.SetupInput("0", f32); err != nil {
		return nil, err
	}
	if g.out, err = b.SetupOutput("0", f32); err != nil {
		return nil, err
	}
	if err := b.RegisterSlot("setGain"); err != nil {
		return nil, err
	}
	if err := b.RegisterSignal("gainChanged"); err != nil {
		return nil, err
	}
	b.RegisterCallable("getGain")
	return g, nil
}

// GetGain returns the current gain.
func (g *Gain) GetGain() float64 { return float64(g.gain) }

// SetGain changes the gain and emits gainChanged.
func (g *Gain) SetGain(gain float64) error {
	g.gain = float32(gain)
	return g.EmitSignal("gainChanged", gain)
}

func (g *Gain) Work() error {
	if err := forwardMessages(g.in, g.out); err != nil {
		return err
	}
	n, err := window(g.in, g.out)
	if err != nil || n == 0 {
		return err
	}
	src, err := g.in.Buffer()
	if err != nil {
		return err
	}
	dst, err := g.out.Buffer()
	if err != nil {
		return err
	}
	x, err := buffer.Slice[float32](src)
	if err != nil {
		return err
	}
	y, err := buffer.Writable[float32](dst)
	if err != nil {
		return err
	}
	for i := range n {
		y[i] = x[i] * g.gain
	}
	if err := g.in.Consume(n); err != nil {
		return err
	}
	return g.out.Produce(n)
}

// PropagateLabels re-posts consumed labels at the same position on the
// output.
func (g *Gain) PropagateLabels(_ *port.InputPort, labels []label.Label) error {
	for _, l := range labels {
		if err := g.out.PostLabel(l); err != nil {
			return err
		}
	}
	return nil
}
