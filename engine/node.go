package engine

import (
	"fmt"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/chazu/blockbridge/block"
	"github.com/chazu/blockbridge/buffer"
	"github.com/chazu/blockbridge/dtype"
	"github.com/chazu/blockbridge/managed"
	"github.com/chazu/blockbridge/proxy"
)

// NodeClass is the class name of native block handles.
const NodeClass = "blockbridge.Node"

func init() {
	managed.Register[*Node](NodeClass)
	managed.Register[*InputPort]("blockbridge.InputPort")
	managed.Register[*OutputPort]("blockbridge.OutputPort")
}

var nodeSeq atomic.Uint64

type slotRef struct {
	node *Node
	slot string
}

type slotCall struct {
	slot string
	args []any
}

// Node is the native handle of one block. The bridged block reaches it
// through a managed proxy; the node reaches the block only through the
// back-reference id set by setBridge.
type Node struct {
	uid  string
	name string
	path string
	pool *buffer.Pool

	bridge uint64

	// backlog caps the bytes a subscriber may hold before outputs stall;
	// zero means no cap
	backlog int

	inputs      map[string]*InputPort
	inputNames  []string
	outputs     map[string]*OutputPort
	outputNames []string

	workInfo block.WorkInfo

	// signal connections and queued slot calls cross goroutines
	mu        sync.Mutex
	signals   map[string][]slotRef
	slots     map[string]bool
	slotCalls []slotCall
	wakeCh    chan struct{}
}

// NewNode creates an unbound node that allocates from pool.
func NewNode(pool *buffer.Pool) *Node {
	return &Node{
		uid:     uuid.NewString(),
		name:    "node" + strconv.FormatUint(nodeSeq.Add(1), 10),
		pool:    pool,
		inputs:  make(map[string]*InputPort),
		outputs: make(map[string]*OutputPort),
		signals: make(map[string][]slotRef),
		slots:   make(map[string]bool),
		wakeCh:  make(chan struct{}, 1),
	}
}

// Proxy returns the node as seen by the bridged block.
func (n *Node) Proxy() (proxy.Proxy, error) {
	return managed.Env().Convert(n)
}

func (n *Node) UID() string  { return n.uid }
func (n *Node) Name() string { return n.name }

// SetName changes the display name.
func (n *Node) SetName(name string) { n.name = name }

// Path is the factory path the node was made from, if any.
func (n *Node) Path() string { return n.path }

// SetBridge records the back-reference to the bridged block.
func (n *Node) SetBridge(id uint64) { n.bridge = id }

// Bridge returns the back-reference id, or 0 before setBridge.
func (n *Node) Bridge() uint64 { return n.bridge }

// Block follows the back-reference.
func (n *Node) Block() (*block.Base, error) {
	if n.bridge == 0 {
		return nil, fmt.Errorf("node %s: no bridged block", n.name)
	}
	return block.Resolve(n.bridge)
}

// portIndex gives numeric port names their position; named ports get -1.
func portIndex(name string) int {
	i, err := strconv.Atoi(name)
	if err != nil || i < 0 {
		return -1
	}
	return i
}

// SetupInput declares an input port.
func (n *Node) SetupInput(name, markup string) (*InputPort, error) {
	if _, ok := n.inputs[name]; ok {
		return nil, fmt.Errorf("node %s: duplicate input %q", n.name, name)
	}
	dt, err := dtype.Parse(markup)
	if err != nil {
		return nil, err
	}
	p := newInputPort(n, name, portIndex(name), dt)
	n.inputs[name] = p
	n.inputNames = append(n.inputNames, name)
	return p, nil
}

// SetupOutput declares an output port.
func (n *Node) SetupOutput(name, markup string) (*OutputPort, error) {
	if _, ok := n.outputs[name]; ok {
		return nil, fmt.Errorf("node %s: duplicate output %q", n.name, name)
	}
	dt, err := dtype.Parse(markup)
	if err != nil {
		return nil, err
	}
	p := newOutputPort(n, name, portIndex(name), dt)
	n.outputs[name] = p
	n.outputNames = append(n.outputNames, name)
	return p, nil
}

// Input returns a declared input port.
func (n *Node) Input(name string) (*InputPort, error) {
	p, ok := n.inputs[name]
	if !ok {
		return nil, fmt.Errorf("node %s: no input %q", n.name, name)
	}
	return p, nil
}

// Output returns a declared output port.
func (n *Node) Output(name string) (*OutputPort, error) {
	p, ok := n.outputs[name]
	if !ok {
		return nil, fmt.Errorf("node %s: no output %q", n.name, name)
	}
	return p, nil
}

// InputNames lists inputs in declaration order.
func (n *Node) InputNames() []string { return slices.Clone(n.inputNames) }

// OutputNames lists outputs in declaration order.
func (n *Node) OutputNames() []string { return slices.Clone(n.outputNames) }

// WorkInfo is the summary of the current work window.
func (n *Node) WorkInfo() block.WorkInfo { return n.workInfo }

// RegisterSignal declares a signal.
func (n *Node) RegisterSignal(name string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.signals[name]; !ok {
		n.signals[name] = nil
	}
}

// RegisterSlot declares a slot.
func (n *Node) RegisterSlot(name string) {
	n.mu.Lock()
	n.slots[name] = true
	n.mu.Unlock()
}

// EmitSignal queues a slot call on every connected node.
func (n *Node) EmitSignal(name string, args ...any) error {
	n.mu.Lock()
	targets, ok := n.signals[name]
	targets = slices.Clone(targets)
	n.mu.Unlock()
	if !ok {
		return fmt.Errorf("node %s: unknown signal %q", n.name, name)
	}
	for _, t := range targets {
		t.node.queueSlotCall(t.slot, args)
	}
	return nil
}

func (n *Node) connectSignal(signal string, dst *Node, slot string) error {
	dst.mu.Lock()
	hasSlot := dst.slots[slot]
	dst.mu.Unlock()
	if !hasSlot {
		return fmt.Errorf("node %s: no slot %q", dst.name, slot)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.signals[signal]; !ok {
		return fmt.Errorf("node %s: no signal %q", n.name, signal)
	}
	n.signals[signal] = append(n.signals[signal], slotRef{node: dst, slot: slot})
	return nil
}

func (n *Node) queueSlotCall(slot string, args []any) {
	n.mu.Lock()
	n.slotCalls = append(n.slotCalls, slotCall{slot: slot, args: slices.Clone(args)})
	n.mu.Unlock()
	n.wake()
}

func (n *Node) takeSlotCalls() []slotCall {
	n.mu.Lock()
	defer n.mu.Unlock()
	calls := n.slotCalls
	n.slotCalls = nil
	return calls
}

func (n *Node) wake() {
	select {
	case n.wakeCh <- struct{}{}:
	default:
	}
}

func (n *Node) close() {
	for _, p := range n.inputs {
		p.Clear()
	}
	for _, p := range n.outputs {
		p.close()
	}
}

func (n *Node) String() string {
	return fmt.Sprintf("Node(%s)", n.name)
}
