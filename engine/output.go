package engine

import (
	"cmp"
	"fmt"
	"slices"
	"unsafe"

	"github.com/chazu/blockbridge/buffer"
	"github.com/chazu/blockbridge/dtype"
)

// OutputPort is a native output port. All methods run on the owning
// actor.
type OutputPort struct {
	node   *Node
	name   string
	index  int
	alias  string
	dt     dtype.DType
	domain string

	manager     *buffer.Manager
	subscribers []*InputPort

	// current work window
	window   buffer.Chunk
	elements int
	pending  int
	posted   []Label
	injected []buffer.Chunk
	msgs     int

	totalElements uint64
	totalMessages uint64
}

func newOutputPort(n *Node, name string, index int, dt dtype.DType) *OutputPort {
	return &OutputPort{
		node:    n,
		name:    name,
		index:   index,
		alias:   name,
		dt:      dt,
		manager: buffer.NewManager(n.pool),
	}
}

func (p *OutputPort) Name() string   { return p.name }
func (p *OutputPort) Index() int     { return p.index }
func (p *OutputPort) Alias() string  { return p.alias }
func (p *OutputPort) DType() string  { return p.dt.Markup() }
func (p *OutputPort) Domain() string { return p.domain }

// SetAlias changes the display name.
func (p *OutputPort) SetAlias(alias string) { p.alias = alias }

// Elements is the writable room left in the work window. Buffer stays
// anchored at the window start until the work call ends.
func (p *OutputPort) Elements() int { return p.elements - p.pending }

func (p *OutputPort) TotalElements() uint64 { return p.totalElements }
func (p *OutputPort) TotalMessages() uint64 { return p.totalMessages }

// Buffer is the writable window.
func (p *OutputPort) Buffer() buffer.Chunk {
	if p.window.IsZero() {
		return buffer.Chunk{}
	}
	return p.window.Slice(0, p.elements*p.dt.Size())
}

// Produce marks n more elements of the window as written.
func (p *OutputPort) Produce(n int) error {
	if n < 0 || p.pending+n > p.elements {
		return fmt.Errorf("output %s: produce %d with %d of %d elements already produced", p.name, n, p.pending, p.elements)
	}
	p.pending += n
	return nil
}

// PostLabel attaches a copy of l. Its index is in elements from the start
// of the window.
func (p *OutputPort) PostLabel(l *Label) {
	p.posted = append(p.posted, *l)
}

// PostMessage sends msg to every subscriber right away.
func (p *OutputPort) PostMessage(msg any) {
	for _, s := range p.subscribers {
		s.PushMessage(msg)
	}
	p.msgs++
	p.totalMessages++
}

// PostBuffer copies length bytes at address into a fresh chunk that is
// sent after the produced window.
func (p *OutputPort) PostBuffer(address uintptr, length int) error {
	if length <= 0 {
		return fmt.Errorf("output %s: post buffer of %d bytes", p.name, length)
	}
	if length%max(p.dt.Size(), 1) != 0 {
		return fmt.Errorf("output %s: %d bytes is not a whole number of %s items", p.name, length, p.dt)
	}
	c, err := p.node.pool.Get(length)
	if err != nil {
		return err
	}
	c = c.Slice(0, length)
	copy(c.Bytes(), unsafe.Slice((*byte)(unsafe.Pointer(address)), length))
	p.injected = append(p.injected, c)
	return nil
}

// Subscribers returns the connected input ports.
func (p *OutputPort) Subscribers() []*InputPort {
	return slices.Clone(p.subscribers)
}

func (p *OutputPort) subscribe(in *InputPort) error {
	if slices.Contains(p.subscribers, in) {
		return fmt.Errorf("output %s: %s already subscribed", p, in)
	}
	p.subscribers = append(p.subscribers, in)
	in.producers = append(in.producers, p.node)
	return nil
}

func (p *OutputPort) unsubscribe(in *InputPort) error {
	i := slices.Index(p.subscribers, in)
	if i < 0 {
		return fmt.Errorf("output %s: %s not subscribed", p, in)
	}
	p.subscribers = slices.Delete(p.subscribers, i, i+1)
	if j := slices.Index(in.producers, p.node); j >= 0 {
		in.producers = slices.Delete(in.producers, j, j+1)
	}
	return nil
}

// prepare acquires the work window. The window is empty while any
// subscriber holds more than the node's backlog.
func (p *OutputPort) prepare() error {
	size := max(p.dt.Size(), 1)
	p.pending, p.msgs = 0, 0
	if p.node.backlog > 0 {
		for _, s := range p.subscribers {
			if s.queuedBytes() >= p.node.backlog {
				p.window, p.elements = buffer.Chunk{}, 0
				return nil
			}
		}
	}
	w, err := p.manager.Front(size)
	if err != nil {
		return err
	}
	p.window = w
	p.elements = w.Length() / size
	return nil
}

// finish sends the produced bytes, injected buffers and posted labels to
// the subscribers. Labels go out sorted by index.
func (p *OutputPort) finish() (producedBytes, labels, msgs int) {
	size := max(p.dt.Size(), 1)
	var chunks []buffer.Chunk
	if p.pending > 0 {
		n := p.pending * size
		chunks = append(chunks, p.window.Slice(0, n))
		p.manager.Pop(n)
	}
	chunks = append(chunks, p.injected...)

	slices.SortStableFunc(p.posted, func(a, b Label) int {
		return cmp.Compare(a.Index, b.Index)
	})
	byteLabels := make([]Label, len(p.posted))
	for i, l := range p.posted {
		l.Index *= uint64(size)
		byteLabels[i] = l
	}

	for _, s := range p.subscribers {
		retained := make([]buffer.Chunk, len(chunks))
		for i, c := range chunks {
			retained[i] = c.Retain()
		}
		s.pushBufferLabels(byteLabels, retained)
	}
	for _, c := range chunks {
		producedBytes += c.Length()
	}
	for _, c := range p.injected {
		c.Release()
	}

	labels, msgs = len(p.posted), p.msgs
	p.totalElements += uint64(producedBytes / size)
	clear(p.injected)
	p.injected = p.injected[:0]
	p.posted = p.posted[:0]
	p.window = buffer.Chunk{}
	p.elements, p.pending, p.msgs = 0, 0, 0
	return producedBytes, labels, msgs
}

func (p *OutputPort) close() {
	for _, c := range p.injected {
		c.Release()
	}
	p.injected = nil
	p.window = buffer.Chunk{}
	p.manager.Close()
}

func (p *OutputPort) String() string {
	return fmt.Sprintf("%s.out[%s]", p.node.Name(), p.name)
}
