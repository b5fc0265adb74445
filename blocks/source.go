package blocks

import (
	"github.com/chazu/blockbridge/block"
	"github.com/chazu/blockbridge/dtype"
	"github.com/chazu/blockbridge/engine"
	"github.com/chazu/blockbridge/label"
	"github.com/chazu/blockbridge/port"
	"github.com/chazu/blockbridge/proxy"
)

func init() {
	engine.Register("/blocks/vector_source", "Produce a vector of values once",
		func(native proxy.Proxy, args ...any) (block.Worker, error) {
			dt, err := dtypeArg(args, 0, dtype.MustParse("byte"))
			if err != nil {
				return nil, err
			}
			var values any
			if len(args) > 1 {
				values = args[1]
			}
			labels, err := labelsArg(args, 2)
			if err != nil {
				return nil, err
			}
			return NewVectorSource(native, dt, values, labels)
		})
}

// VectorSource produces its values on output 0 once, in as many work
// calls as the output window needs. Label indexes count items from the
// start of the vector.
type VectorSource struct {
	*block.Base
	out     *port.OutputPort
	dt      dtype.DType
	pending []byte
	labels  []label.Label
	sent    uint64
}

// NewVectorSource binds a source of dt items to native. values is
// anything encode accepts; nil starts the source empty.
func NewVectorSource(native proxy.Proxy, dt dtype.DType, values any, labels []label.Label) (*VectorSource, error) {
	s := &VectorSource{dt: dt}
	b, err := block.New(native, s)
	if err != nil {
		return nil, err
	}
	s.Base = b
	if s.out, err = b.SetupOutput("0", dt); err != nil {
		return nil, err
	}
	if err := b.RegisterSlot("setElements"); err != nil {
		return nil, err
	}
	if err := b.RegisterSignal("done"); err != nil {
		return nil, err
	}
	if values != nil {
		if err := s.load(values, labels); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// SetElements replaces whatever is left to send with values and drops the
// pending labels.
func (s *VectorSource) SetElements(values any) error {
	return s.load(values, nil)
}

func (s *VectorSource) load(values any, labels []label.Label) error {
	data, err := encode(s.dt, values)
	if err != nil {
		return err
	}
	s.pending, s.labels, s.sent = data, labels, 0
	return nil
}

// Remaining is the number of items not yet produced.
func (s *VectorSource) Remaining() int { return len(s.pending) / s.dt.Size() }

func (s *VectorSource) Work() error {
	if len(s.pending) == 0 {
		return nil
	}
	room, err := s.out.Elements()
	if err != nil {
		return err
	}
	n := min(room, s.Remaining())
	if n == 0 {
		return nil
	}
	v, err := s.out.Buffer()
	if err != nil {
		return err
	}
	if _, err := v.CopyFrom(s.pending[:n*s.dt.Size()]); err != nil {
		return err
	}

	rest := s.labels[:0]
	for _, l := range s.labels {
		if l.Index < s.sent+uint64(n) {
			if err := s.out.PostLabel(l.WithIndex(l.Index - s.sent)); err != nil {
				return err
			}
			continue
		}
		rest = append(rest, l)
	}
	s.labels = rest
	s.pending = s.pending[n*s.dt.Size():]
	s.sent += uint64(n)
	if err := s.out.Produce(n); err != nil {
		return err
	}
	if len(s.pending) == 0 {
		log.Debugf("%s: sent %d items", s.Name(), s.sent)
		return s.EmitSignal("done", int(s.sent))
	}
	return nil
}
