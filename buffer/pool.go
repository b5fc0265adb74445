package buffer

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("blockbridge.buffer")

// DefaultSlabSize is the slab size used when a pool is created with zero.
const DefaultSlabSize = 1 << 16

// slab is one allocation from a Pool. Chunks reference slabs; a slab
// returns to its pool when the last reference is released.
type slab struct {
	pool *Pool
	mem  []byte
	refs atomic.Int32
}

func (s *slab) retain() {
	s.refs.Add(1)
}

func (s *slab) release() {
	switch n := s.refs.Add(-1); {
	case n == 0:
		s.pool.put(s)
	case n < 0:
		panic("buffer: slab released more often than retained")
	}
}

// Chunk is a byte range of a slab. The zero Chunk is empty.
type Chunk struct {
	s      *slab
	off    int
	length int
}

// Address is the start of the chunk's memory, or 0 for an empty chunk
// with no backing slab.
func (c Chunk) Address() uintptr {
	if c.s == nil || len(c.s.mem) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(unsafe.SliceData(c.s.mem))) + uintptr(c.off)
}

// Length is the chunk size in bytes.
func (c Chunk) Length() int { return c.length }

// IsZero reports whether the chunk has no backing slab.
func (c Chunk) IsZero() bool { return c.s == nil }

// Bytes aliases the chunk's memory.
func (c Chunk) Bytes() []byte {
	if c.s == nil {
		return nil
	}
	return c.s.mem[c.off : c.off+c.length]
}

// Slice returns the sub-range [off, off+n) without taking a reference.
func (c Chunk) Slice(off, n int) Chunk {
	if off < 0 || n < 0 || off+n > c.length {
		panic(fmt.Sprintf("buffer: slice [%d:%d] of %d byte chunk", off, off+n, c.length))
	}
	return Chunk{s: c.s, off: c.off + off, length: n}
}

// Retain takes a reference on the backing slab and returns c.
func (c Chunk) Retain() Chunk {
	if c.s != nil {
		c.s.retain()
	}
	return c
}

// Release drops a reference taken by Retain.
func (c Chunk) Release() {
	if c.s != nil {
		c.s.release()
	}
}

// Pool hands out slabs of a fixed size and recycles them. Slabs larger
// than the pool size are allocated on demand and freed, not recycled.
type Pool struct {
	mu       sync.Mutex
	slabSize int
	free     []*slab
	live     int
	closed   bool
}

// NewPool creates a pool of slabSize byte slabs.
func NewPool(slabSize int) *Pool {
	if slabSize <= 0 {
		slabSize = DefaultSlabSize
	}
	return &Pool{slabSize: slabSize}
}

// SlabSize is the size of recycled slabs.
func (p *Pool) SlabSize() int { return p.slabSize }

// Get returns a chunk covering a whole slab of at least minSize bytes.
// The caller owns one reference.
func (p *Pool) Get(minSize int) (Chunk, error) {
	size := p.slabSize
	if minSize > size {
		size = minSize
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return Chunk{}, fmt.Errorf("buffer: pool closed")
	}
	var s *slab
	if size == p.slabSize && len(p.free) > 0 {
		s = p.free[len(p.free)-1]
		p.free = p.free[:len(p.free)-1]
	}
	p.live++
	p.mu.Unlock()

	if s == nil {
		mem, err := allocate(size)
		if err != nil {
			p.mu.Lock()
			p.live--
			p.mu.Unlock()
			return Chunk{}, fmt.Errorf("buffer: allocate %d bytes: %w", size, err)
		}
		s = &slab{pool: p, mem: mem}
	}
	s.refs.Store(1)
	return Chunk{s: s, length: len(s.mem)}, nil
}

func (p *Pool) put(s *slab) {
	p.mu.Lock()
	p.live--
	recycle := !p.closed && len(s.mem) == p.slabSize
	if recycle {
		p.free = append(p.free, s)
	}
	p.mu.Unlock()

	if !recycle {
		if err := deallocate(s.mem); err != nil {
			log.Errorf("free slab: %v", err)
		}
	}
}

// Stats returns the number of slabs in use and waiting for reuse.
func (p *Pool) Stats() (live, free int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.live, len(p.free)
}

// Close frees idle slabs. Slabs still referenced are freed when their
// last chunk is released.
func (p *Pool) Close() error {
	p.mu.Lock()
	free := p.free
	p.free = nil
	p.closed = true
	p.mu.Unlock()

	var firstErr error
	for _, s := range free {
		if err := deallocate(s.mem); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
