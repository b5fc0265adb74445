package engine

import (
	"fmt"
	"slices"
	"sync"

	"github.com/chazu/blockbridge/buffer"
	"github.com/chazu/blockbridge/dtype"
)

// InputPort is a native input port. Upstream actors push into it from
// their own goroutines; everything else runs on the owning actor.
type InputPort struct {
	node   *Node
	name   string
	index  int
	alias  string
	dt     dtype.DType
	domain string

	mu        sync.Mutex
	acc       *buffer.Accumulator
	producers []*Node
	labels    []*Label
	msgs      []any
	// consumed labels shown by Labels while the block propagates them
	propagating []*Label
	reserve   int

	// current work window
	window   buffer.Chunk
	elements int
	pending  int
	msgsMark uint64

	totalElements uint64
	totalBuffers  uint64
	totalLabels   uint64
	totalMessages uint64
}

func newInputPort(n *Node, name string, index int, dt dtype.DType) *InputPort {
	return &InputPort{
		node:  n,
		name:  name,
		index: index,
		alias: name,
		dt:    dt,
		acc:   buffer.NewAccumulator(n.pool),
	}
}

func (p *InputPort) Name() string   { return p.name }
func (p *InputPort) Index() int     { return p.index }
func (p *InputPort) Alias() string  { return p.alias }
func (p *InputPort) DType() string  { return p.dt.Markup() }
func (p *InputPort) Domain() string { return p.domain }

// SetAlias changes the display name.
func (p *InputPort) SetAlias(alias string) { p.alias = alias }

// Elements is the number of elements of the work window not yet
// consumed. Buffer and label indexes stay anchored at the window start
// until the work call ends.
func (p *InputPort) Elements() int { return p.elements - p.pending }

func (p *InputPort) TotalElements() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totalElements
}

func (p *InputPort) TotalBuffers() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totalBuffers
}

func (p *InputPort) TotalLabels() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totalLabels
}

func (p *InputPort) TotalMessages() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totalMessages
}

// HasMessage reports whether a message is queued.
func (p *InputPort) HasMessage() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.msgs) > 0
}

// PopMessage removes the oldest message.
func (p *InputPort) PopMessage() (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.msgs) == 0 {
		return nil, fmt.Errorf("input %s: no message", p.name)
	}
	m := p.msgs[0]
	p.msgs[0] = nil
	p.msgs = p.msgs[1:]
	p.totalMessages++
	return m, nil
}

// Labels returns a snapshot of the pending labels. Indexes are elements
// from the start of the work window. While the block propagates labels
// it returns the labels consumed by the work call instead.
func (p *InputPort) Labels() *LabelRange {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.propagating != nil {
		return newLabelRange(slices.Clone(p.propagating))
	}
	return newLabelRange(slices.Clone(p.labels))
}

// RemoveLabel removes a pending label by identity. During propagation it
// removes from the consumed labels.
func (p *InputPort) RemoveLabel(l *Label) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.propagating != nil {
		i := slices.Index(p.propagating, l)
		if i < 0 {
			return fmt.Errorf("input %s: label %s was not consumed", p.name, l)
		}
		p.propagating = slices.Delete(p.propagating, i, i+1)
		return nil
	}
	i := slices.Index(p.labels, l)
	if i < 0 {
		return fmt.Errorf("input %s: label %s is not pending", p.name, l)
	}
	p.labels = slices.Delete(p.labels, i, i+1)
	p.totalLabels++
	return nil
}

// Buffer is the readable window.
func (p *InputPort) Buffer() buffer.Chunk {
	if p.window.IsZero() {
		return buffer.Chunk{}
	}
	return p.window.Slice(0, p.elements*p.dt.Size())
}

// Consume marks n more elements of the window as read.
func (p *InputPort) Consume(n int) error {
	if n < 0 || p.pending+n > p.elements {
		return fmt.Errorf("input %s: consume %d with %d of %d elements already consumed", p.name, n, p.pending, p.elements)
	}
	p.pending += n
	return nil
}

// SetReserve sets the minimum number of elements for the block to be
// worked.
func (p *InputPort) SetReserve(n int) {
	p.mu.Lock()
	p.reserve = n
	p.mu.Unlock()
}

// PushBuffer queues a chunk. The port takes over the caller's reference.
func (p *InputPort) PushBuffer(c buffer.Chunk) {
	p.mu.Lock()
	p.acc.Push(c)
	p.totalBuffers++
	p.mu.Unlock()
	p.node.wake()
}

// PushLabel queues a label whose index is a byte offset from the end of
// the data already queued.
func (p *InputPort) PushLabel(l Label) {
	p.mu.Lock()
	p.pushLabelLocked(l)
	p.mu.Unlock()
	p.node.wake()
}

func (p *InputPort) pushLabelLocked(l Label) {
	size := uint64(max(p.dt.Size(), 1))
	l.Index = (l.Index + uint64(p.acc.TotalBytes())) / size
	i, _ := slices.BinarySearchFunc(p.labels, l.Index, func(x *Label, idx uint64) int {
		if x.Index <= idx {
			return -1
		}
		return 1
	})
	p.labels = slices.Insert(p.labels, i, &l)
}

// PushMessage queues an asynchronous message.
func (p *InputPort) PushMessage(msg any) {
	p.mu.Lock()
	p.msgs = append(p.msgs, msg)
	p.mu.Unlock()
	p.node.wake()
}

// pushBufferLabels delivers one work call's output: byte-offset labels
// relative to the first chunk, then the chunks.
func (p *InputPort) pushBufferLabels(labels []Label, chunks []buffer.Chunk) {
	p.mu.Lock()
	for _, l := range labels {
		p.pushLabelLocked(l)
	}
	for _, c := range chunks {
		p.acc.Push(c)
		p.totalBuffers++
	}
	p.mu.Unlock()
	p.node.wake()
}

// Clear drops everything queued.
func (p *InputPort) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.acc.Clear()
	p.labels = nil
	p.msgs = nil
	p.window = buffer.Chunk{}
	p.elements, p.pending = 0, 0
}

// prepare sets up the work window. It reports whether the reserve is met
// and whether a message is waiting.
func (p *InputPort) prepare() (ready, hasMessage bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	size := max(p.dt.Size(), 1)
	if err := p.acc.Require(max(1, p.reserve) * size); err != nil {
		return false, false, err
	}
	p.window = p.acc.Front()
	p.elements = p.window.Length() / size
	p.pending = 0
	p.msgsMark = p.totalMessages
	return p.elements >= p.reserve && p.elements > 0, len(p.msgs) > 0, nil
}

// finish pops consumed data, returns the labels inside the consumed
// range and shifts the rest.
func (p *InputPort) finish() (consumedBytes, msgs int, consumed []*Label) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := uint64(p.pending)
	keep := p.labels[:0]
	for _, l := range p.labels {
		if l.Index < n {
			consumed = append(consumed, l)
			continue
		}
		l.Index -= n
		keep = append(keep, l)
	}
	clear(p.labels[len(keep):])
	p.labels = keep

	consumedBytes = p.pending * p.dt.Size()
	p.acc.Pop(consumedBytes)
	p.totalElements += n
	msgs = int(p.totalMessages - p.msgsMark)
	p.window = buffer.Chunk{}
	p.elements, p.pending = 0, 0
	if consumedBytes > 0 {
		for _, n := range p.producers {
			n.wake()
		}
	}
	return consumedBytes, msgs, consumed
}

// beginPropagation makes Labels return consumed until endPropagation.
func (p *InputPort) beginPropagation(consumed []*Label) {
	p.mu.Lock()
	p.propagating = slices.Clone(consumed)
	if p.propagating == nil {
		p.propagating = []*Label{}
	}
	p.mu.Unlock()
}

func (p *InputPort) endPropagation() {
	p.mu.Lock()
	p.propagating = nil
	p.mu.Unlock()
}

// queuedBytes is the number of bytes waiting in the accumulator.
func (p *InputPort) queuedBytes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.acc.TotalBytes()
}

func (p *InputPort) String() string {
	return fmt.Sprintf("%s.in[%s]", p.node.Name(), p.name)
}
