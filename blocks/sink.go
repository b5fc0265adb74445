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
	engine.Register("/blocks/collector_sink", "Record everything that reaches input 0",
		func(native proxy.Proxy, args ...any) (block.Worker, error) {
			dt, err := dtypeArg(args, 0, dtype.MustParse("byte"))
			if err != nil {
				return nil, err
			}
			return NewCollectorSink(native, dt)
		})
}

// CollectorSink consumes everything on input 0 and keeps it. Recorded
// label indexes are absolute positions in the stream.
type CollectorSink struct {
	*block.Base
	in       *port.InputPort
	data     []byte
	labels   []label.Label
	messages []any
}

// NewCollectorSink binds a sink of dt items to native.
func NewCollectorSink(native proxy.Proxy, dt dtype.DType) (*CollectorSink, error) {
	s := &CollectorSink{}
	b, err := block.New(native, s)
	if err != nil {
		return nil, err
	}
	s.Base = b
	if s.in, err = b.SetupInput("0", dt); err != nil {
		return nil, err
	}
	b.RegisterCallable("getBuffer")
	b.RegisterCallable("getLabels")
	b.RegisterCallable("getMessages")
	return s, nil
}

// GetBuffer returns the bytes received so far.
func (s *CollectorSink) GetBuffer() []byte { return s.data }

// GetLabels returns the labels received so far.
func (s *CollectorSink) GetLabels() []label.Label { return s.labels }

// GetMessages returns the messages received so far as Go values.
func (s *CollectorSink) GetMessages() []any { return s.messages }

// Clear forgets everything recorded.
func (s *CollectorSink) Clear() {
	s.data, s.labels, s.messages = nil, nil, nil
}

func (s *CollectorSink) Work() error {
	v, err := s.in.Buffer()
	if err != nil {
		return err
	}
	s.data = append(s.data, v.Bytes()...)
	if err := s.in.Consume(v.Len()); err != nil {
		return err
	}

	// every label is inside the consumed window
	total, err := s.in.TotalElements()
	if err != nil {
		return err
	}
	r, err := s.in.Labels()
	if err != nil {
		return err
	}
	for l, err := range r.All() {
		if err != nil {
			return err
		}
		if err := s.in.RemoveLabel(l); err != nil {
			return err
		}
		s.labels = append(s.labels, l.WithIndex(l.Index+total))
	}

	for {
		ok, err := s.in.HasMessage()
		if err != nil || !ok {
			return err
		}
		m, err := s.in.PopMessage()
		if err != nil {
			return err
		}
		val, err := m.ToGo()
		if err != nil {
			return err
		}
		s.messages = append(s.messages, val)
	}
}
