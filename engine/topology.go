// Package engine is a small native runtime for bridged blocks. Each node
// is driven by an Actor that prepares port windows, calls the bridged
// block's work method and moves the produced buffers and labels
// downstream. A Topology owns the nodes, their connections and the
// buffer pool.
package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/blockbridge/block"
	"github.com/chazu/blockbridge/buffer"
)

var log = commonlog.GetLogger("blockbridge.engine")

// DefaultSlabSize is the slab size of a topology's own pool.
const DefaultSlabSize = 64 << 10

// DefaultBacklog is the number of bytes a subscriber may hold before its
// producers stall.
const DefaultBacklog = 1 << 20

// Option configures a Topology.
type Option func(*Topology)

// WithPool makes the topology allocate from pool. The caller keeps
// ownership.
func WithPool(pool *buffer.Pool) Option {
	return func(t *Topology) { t.pool, t.ownsPool = pool, false }
}

// WithSlabSize sets the slab size of the topology's own pool.
func WithSlabSize(n int) Option {
	return func(t *Topology) { t.slabSize = n }
}

// WithRegistry sets where Make looks up factories.
func WithRegistry(r *Registry) Option {
	return func(t *Topology) { t.registry = r }
}

// WithMetrics exports work statistics through m.
func WithMetrics(m *Metrics) Option {
	return func(t *Topology) { t.metrics = m }
}

// WithBacklog sets the per-subscriber byte cap. Zero disables it.
func WithBacklog(n int) Option {
	return func(t *Topology) { t.backlog = n }
}

// Topology is a set of connected nodes.
type Topology struct {
	pool     *buffer.Pool
	ownsPool bool
	slabSize int
	registry *Registry
	metrics  *Metrics
	backlog  int

	mu      sync.Mutex
	actors  []*Actor
	running bool
}

// NewTopology creates an empty topology.
func NewTopology(opts ...Option) *Topology {
	t := &Topology{
		ownsPool: true,
		slabSize: DefaultSlabSize,
		registry: DefaultRegistry,
		backlog:  DefaultBacklog,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.pool == nil {
		t.pool = buffer.NewPool(t.slabSize)
		t.ownsPool = true
	}
	return t
}

// Pool returns the topology's buffer pool.
func (t *Topology) Pool() *buffer.Pool { return t.pool }

// Make creates a node from the registry and adds it.
func (t *Topology) Make(path string, args ...any) (*Node, error) {
	n, err := t.registry.Make(t.pool, path, args...)
	if err != nil {
		return nil, err
	}
	if err := t.Add(n); err != nil {
		return nil, err
	}
	return n, nil
}

// Add takes over a node created with NewNode and bound to a block.
func (t *Topology) Add(n *Node) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return errors.New("topology is running")
	}
	if slices.ContainsFunc(t.actors, func(a *Actor) bool { return a.node == n }) {
		return fmt.Errorf("%s is already in the topology", n)
	}
	n.backlog = t.backlog
	t.actors = append(t.actors, newActor(n, t.metrics))
	return nil
}

// Nodes lists the nodes in the order they were added.
func (t *Topology) Nodes() []*Node {
	t.mu.Lock()
	defer t.mu.Unlock()
	nodes := make([]*Node, len(t.actors))
	for i, a := range t.actors {
		nodes[i] = a.node
	}
	return nodes
}

// Actor returns the actor driving n.
func (t *Topology) Actor(n *Node) (*Actor, bool) {
	for _, a := range t.snapshot() {
		if a.node == n {
			return a, true
		}
	}
	return nil, false
}

func (t *Topology) ports(src *Node, srcPort string, dst *Node, dstPort string) (*OutputPort, *InputPort, error) {
	out, err := src.Output(srcPort)
	if err != nil {
		return nil, nil, err
	}
	in, err := dst.Input(dstPort)
	if err != nil {
		return nil, nil, err
	}
	return out, in, nil
}

// Connect subscribes dst's input to src's output.
func (t *Topology) Connect(src *Node, srcPort string, dst *Node, dstPort string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return errors.New("topology is running")
	}
	out, in, err := t.ports(src, srcPort, dst, dstPort)
	if err != nil {
		return err
	}
	if out.dt.Size() != in.dt.Size() {
		log.Warningf("connecting %s (%s) to %s (%s)", out, out.dt, in, in.dt)
	}
	return out.subscribe(in)
}

// Disconnect removes a connection made by Connect.
func (t *Topology) Disconnect(src *Node, srcPort string, dst *Node, dstPort string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return errors.New("topology is running")
	}
	out, in, err := t.ports(src, srcPort, dst, dstPort)
	if err != nil {
		return err
	}
	return out.unsubscribe(in)
}

// ConnectSignal routes src's signal to dst's slot.
func (t *Topology) ConnectSignal(src *Node, signal string, dst *Node, slot string) error {
	return src.connectSignal(signal, dst, slot)
}

func (t *Topology) eachBlock(fn func(*block.Base) error) error {
	var errs []error
	for _, a := range t.snapshot() {
		b, err := a.node.Block()
		if err == nil {
			err = fn(b)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", a.node.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (t *Topology) snapshot() []*Actor {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.actors)
}

// Activate activates every block. All blocks are tried; the failures are
// joined.
func (t *Topology) Activate() error {
	return t.eachBlock((*block.Base).HandleActivate)
}

// Deactivate deactivates every active block.
func (t *Topology) Deactivate() error {
	return t.eachBlock(func(b *block.Base) error {
		if !b.State().Active() {
			return nil
		}
		return b.HandleDeactivate()
	})
}

// Drain works the nodes in passes on the calling goroutine until a pass
// makes no progress. It returns the number of passes that made progress
// and the first error from a work call.
func (t *Topology) Drain(ctx context.Context) (int, error) {
	actors := t.snapshot()
	passes := 0
	for {
		if err := ctx.Err(); err != nil {
			return passes, err
		}
		progress := false
		for _, a := range actors {
			p, err := a.WorkOnce()
			if err != nil {
				return passes, err
			}
			progress = progress || p
		}
		if !progress {
			return passes, nil
		}
		passes++
	}
}

// Run drives every node on its own goroutine until ctx is done. Work
// errors are logged and the node keeps running; a stale block reference
// stops the topology and is returned.
func (t *Topology) Run(ctx context.Context) error {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return errors.New("topology is running")
	}
	t.running = true
	actors := slices.Clone(t.actors)
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		t.running = false
		t.mu.Unlock()
	}()

	g, ctx := errgroup.WithContext(ctx)
	for _, a := range actors {
		g.Go(func() error { return a.loop(ctx) })
	}
	return g.Wait()
}

func (a *Actor) loop(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		if ctx.Err() != nil {
			return nil
		}
		progress, err := a.WorkOnce()
		if err != nil && IsFatal(err) {
			return err
		}
		if progress {
			continue
		}
		timeout := time.Duration(a.node.workInfo.MaxTimeoutNs)
		if timeout <= 0 {
			timeout = defaultMaxTimeout
		}
		timer.Reset(timeout)
		select {
		case <-ctx.Done():
			return nil
		case <-a.node.wakeCh:
		case <-timer.C:
		}
	}
}

// Stats returns the work statistics of every node.
func (t *Topology) Stats() []WorkStats {
	actors := t.snapshot()
	stats := make([]WorkStats, len(actors))
	for i, a := range actors {
		stats[i] = a.Stats()
	}
	return stats
}

// Close destroys the blocks, drops queued data and closes an owned pool.
func (t *Topology) Close() error {
	for _, a := range t.snapshot() {
		if b, err := a.node.Block(); err == nil {
			b.Destroy()
		}
		a.node.close()
	}
	t.mu.Lock()
	t.actors = nil
	t.mu.Unlock()
	if t.ownsPool {
		return t.pool.Close()
	}
	return nil
}
