package buffer

// Manager is the output-side buffer source. It exposes the unused tail of
// its current slab and moves to a fresh slab once the tail is exhausted.
type Manager struct {
	pool *Pool
	cur  Chunk
	off  int
}

// NewManager creates a manager drawing slabs from pool.
func NewManager(pool *Pool) *Manager {
	return &Manager{pool: pool}
}

// Front returns the writable tail of the current slab. A tail shorter than
// minBytes is abandoned for a fresh slab.
func (m *Manager) Front(minBytes int) (Chunk, error) {
	minBytes = max(minBytes, 1)
	if m.cur.IsZero() || m.cur.Length()-m.off < minBytes {
		m.cur.Release()
		c, err := m.pool.Get(minBytes)
		if err != nil {
			m.cur = Chunk{}
			return Chunk{}, err
		}
		m.cur, m.off = c, 0
	}
	return m.cur.Slice(m.off, m.cur.Length()-m.off), nil
}

// Pop marks n bytes of the front as handed out.
func (m *Manager) Pop(n int) {
	m.off += n
}

// Close releases the current slab.
func (m *Manager) Close() {
	m.cur.Release()
	m.cur, m.off = Chunk{}, 0
}

// Accumulator is the input-side FIFO of received chunks. It owns one
// reference per queued chunk.
type Accumulator struct {
	pool  *Pool
	queue []Chunk
	total int
	// pushed counts every chunk ever accepted
	pushed int
}

// NewAccumulator creates an accumulator that merges fragments using pool.
func NewAccumulator(pool *Pool) *Accumulator {
	return &Accumulator{pool: pool}
}

// Push appends c. The accumulator takes over the caller's reference.
func (a *Accumulator) Push(c Chunk) {
	if c.Length() == 0 {
		c.Release()
		return
	}
	a.queue = append(a.queue, c)
	a.total += c.Length()
	a.pushed++
}

// Front returns the first contiguous chunk without taking a reference.
func (a *Accumulator) Front() Chunk {
	if len(a.queue) == 0 {
		return Chunk{}
	}
	return a.queue[0]
}

// Require makes the front chunk at least n bytes long when that many
// bytes are queued, copying fragments into a fresh slab if needed.
func (a *Accumulator) Require(n int) error {
	if len(a.queue) == 0 || a.queue[0].Length() >= n || a.total <= a.queue[0].Length() {
		return nil
	}
	if n > a.total {
		n = a.total
	}
	merged, err := a.pool.Get(n)
	if err != nil {
		return err
	}
	dst := merged.Bytes()
	copied := 0
	for copied < n {
		front := a.queue[0]
		k := copy(dst[copied:n], front.Bytes())
		copied += k
		if k == front.Length() {
			front.Release()
			a.queue = a.queue[1:]
		} else {
			a.queue[0] = front.Slice(k, front.Length()-k)
		}
	}
	a.queue = append([]Chunk{merged.Slice(0, n)}, a.queue...)
	return nil
}

// Pop removes n bytes from the front of the queue.
func (a *Accumulator) Pop(n int) {
	if n > a.total {
		n = a.total
	}
	a.total -= n
	for n > 0 && len(a.queue) > 0 {
		front := a.queue[0]
		if n < front.Length() {
			a.queue[0] = front.Slice(n, front.Length()-n)
			return
		}
		n -= front.Length()
		front.Release()
		a.queue = a.queue[1:]
	}
}

// TotalBytes is the number of queued bytes.
func (a *Accumulator) TotalBytes() int { return a.total }

// Chunks is the number of queued chunks.
func (a *Accumulator) Chunks() int { return len(a.queue) }

// Pushed is the number of chunks accepted since creation.
func (a *Accumulator) Pushed() int { return a.pushed }

// Clear releases everything queued.
func (a *Accumulator) Clear() {
	for _, c := range a.queue {
		c.Release()
	}
	a.queue = nil
	a.total = 0
}
