// Package block is the bridged side of a graph node. A block embeds *Base,
// declares ports during construction and overrides the Worker methods it
// needs; the native engine drives the lifecycle through the Handle
// methods.
//
// The engine calls Activate, Work, PropagateLabels and Deactivate on one
// block strictly sequentially, possibly from different goroutines. Base
// keeps no goroutine-local state and does no locking of its own.
package block

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/chazu/blockbridge/dtype"
	"github.com/chazu/blockbridge/label"
	"github.com/chazu/blockbridge/managed"
	"github.com/chazu/blockbridge/port"
	"github.com/chazu/blockbridge/proxy"
)

var log = commonlog.GetLogger("blockbridge.block")

// Worker is the set of methods the engine drives. Base implements all of
// them as no-ops.
type Worker interface {
	Activate() error
	Work() error
	Deactivate() error
	// PropagateLabels receives the labels consumed from in during the last
	// work call. Labels not re-posted by the block are dropped.
	PropagateLabels(in *port.InputPort, labels []label.Label) error
}

// PortLabelPropagator is the older propagation shape that reads labels
// from the port itself. A Worker implementing it is called through this
// method instead of PropagateLabels; while it runs, the port's Labels are
// the ones the work call consumed.
type PortLabelPropagator interface {
	PropagatePortLabels(in *port.InputPort) error
}

// Base implements the bridge for one block.
type Base struct {
	id     uint64
	uid    string
	name   string
	native proxy.Proxy
	impl   Worker
	self   proxy.Proxy
	state  State

	inputs     map[string]*port.InputPort
	inputNames []string

	outputs     map[string]*port.OutputPort
	outputNames []string

	signals   map[string]struct{}
	slots     map[string]struct{}
	callables map[string]struct{}
}

// New binds impl to its native handle and registers the back-reference.
// impl is usually the struct that embeds the returned *Base.
func New(native proxy.Proxy, impl Worker) (*Base, error) {
	if native.IsNull() {
		return nil, &proxy.NullProxyError{Op: "bind block"}
	}
	self, err := managed.Env().Convert(impl)
	if err != nil {
		return nil, err
	}
	b := &Base{
		uid:       uuid.NewString(),
		native:    native,
		impl:      impl,
		self:      self,
		inputs:    make(map[string]*port.InputPort),
		outputs:   make(map[string]*port.OutputPort),
		signals:   make(map[string]struct{}),
		slots:     make(map[string]struct{}),
		callables: make(map[string]struct{}),
	}
	b.name = fmt.Sprintf("%T", impl)
	b.id = register(b)
	if _, err := native.Call("setBridge", b.id); err != nil {
		forget(b.id)
		return nil, fmt.Errorf("block %s: set bridge: %w", b.name, err)
	}
	log.Debugf("bound %s as %d", b.name, b.id)
	return b, nil
}

// ID is the back-reference the native handle holds.
func (b *Base) ID() uint64 { return b.id }

// UID is a process-unique identifier for the block.
func (b *Base) UID() string { return b.uid }

// Native returns the native handle.
func (b *Base) Native() proxy.Proxy { return b.native }

// State returns the lifecycle state.
func (b *Base) State() State { return b.state }

// Name returns the display name.
func (b *Base) Name() string { return b.name }

// SetName changes the display name here and on the native handle.
func (b *Base) SetName(name string) error {
	if _, err := b.native.Call("setName", name); err != nil {
		return err
	}
	b.name = name
	return nil
}

// SetupInput declares an input port. An empty dtype means bytes.
func (b *Base) SetupInput(name string, dt dtype.DType) (*port.InputPort, error) {
	if b.state != Constructed {
		return nil, &LateSetupError{Block: b.name, Port: name, State: b.state}
	}
	if _, ok := b.inputs[name]; ok {
		return nil, fmt.Errorf("block %s: duplicate input %q", b.name, name)
	}
	np, err := b.native.Call("setupInput", name, markup(dt))
	if err != nil {
		return nil, err
	}
	in, err := port.NewInput(np)
	if err != nil {
		return nil, err
	}
	b.inputs[name] = in
	b.inputNames = append(b.inputNames, name)
	return in, nil
}

// SetupOutput declares an output port. An empty dtype means bytes.
func (b *Base) SetupOutput(name string, dt dtype.DType) (*port.OutputPort, error) {
	if b.state != Constructed {
		return nil, &LateSetupError{Block: b.name, Port: name, State: b.state}
	}
	if _, ok := b.outputs[name]; ok {
		return nil, fmt.Errorf("block %s: duplicate output %q", b.name, name)
	}
	np, err := b.native.Call("setupOutput", name, markup(dt))
	if err != nil {
		return nil, err
	}
	out, err := port.NewOutput(np)
	if err != nil {
		return nil, err
	}
	b.outputs[name] = out
	b.outputNames = append(b.outputNames, name)
	return out, nil
}

func markup(dt dtype.DType) string {
	if dt.IsEmpty() {
		return "byte"
	}
	return dt.Markup()
}

// Input returns a declared input port.
func (b *Base) Input(name string) (*port.InputPort, error) {
	in, ok := b.inputs[name]
	if !ok {
		return nil, fmt.Errorf("block %s: no input %q", b.name, name)
	}
	return in, nil
}

// Output returns a declared output port.
func (b *Base) Output(name string) (*port.OutputPort, error) {
	out, ok := b.outputs[name]
	if !ok {
		return nil, fmt.Errorf("block %s: no output %q", b.name, name)
	}
	return out, nil
}

// Inputs returns the input ports in declaration order.
func (b *Base) Inputs() []*port.InputPort {
	ports := make([]*port.InputPort, len(b.inputNames))
	for i, n := range b.inputNames {
		ports[i] = b.inputs[n]
	}
	return ports
}

// Outputs returns the output ports in declaration order.
func (b *Base) Outputs() []*port.OutputPort {
	ports := make([]*port.OutputPort, len(b.outputNames))
	for i, n := range b.outputNames {
		ports[i] = b.outputs[n]
	}
	return ports
}

// InputPortNames lists input names in declaration order.
func (b *Base) InputPortNames() []string { return slices.Clone(b.inputNames) }

// OutputPortNames lists output names in declaration order.
func (b *Base) OutputPortNames() []string { return slices.Clone(b.outputNames) }

// RegisterSignal declares a signal the block may emit.
func (b *Base) RegisterSignal(name string) error {
	if _, err := b.native.Call("registerSignal", name); err != nil {
		return err
	}
	b.signals[name] = struct{}{}
	return nil
}

// EmitSignal sends args to every slot connected to the signal.
func (b *Base) EmitSignal(name string, args ...any) error {
	if _, ok := b.signals[name]; !ok {
		return &UnknownSignalError{Block: b.name, Signal: name}
	}
	_, err := b.native.Call("emitSignal", append([]any{name}, args...)...)
	return err
}

// RegisterSlot exposes the block method answering name as a slot. The
// method is found by dispatch on the block, so it needs no stub.
func (b *Base) RegisterSlot(name string) error {
	if _, err := b.native.Call("registerSlot", name); err != nil {
		return err
	}
	b.slots[name] = struct{}{}
	return nil
}

// CallSlot invokes a slot. The native side calls it when a connected
// signal fires.
func (b *Base) CallSlot(name string, args ...any) (proxy.Proxy, error) {
	if _, ok := b.slots[name]; !ok {
		return proxy.Proxy{}, &proxy.DispatchError{Class: b.name, Method: name}
	}
	return b.self.Call(name, args...)
}

// RegisterCallable exposes a block method to opaque native calls.
func (b *Base) RegisterCallable(name string) {
	b.callables[name] = struct{}{}
}

// Call invokes a registered callable.
func (b *Base) Call(name string, args ...any) (proxy.Proxy, error) {
	if _, ok := b.callables[name]; !ok {
		return proxy.Proxy{}, &proxy.DispatchError{Class: b.name, Method: name}
	}
	return b.self.Call(name, args...)
}

// Activate is the default no-op.
func (b *Base) Activate() error { return nil }

// Work is the default no-op.
func (b *Base) Work() error { return nil }

// Deactivate is the default no-op.
func (b *Base) Deactivate() error { return nil }

// PropagateLabels is the default: labels are dropped.
func (b *Base) PropagateLabels(in *port.InputPort, labels []label.Label) error { return nil }

// LegacyPropagateLabels serves callers that pass only the port. The labels
// are read from the port and handed to the block's PropagateLabels.
func (b *Base) LegacyPropagateLabels(in *port.InputPort) error {
	r, err := in.Labels()
	if err != nil {
		return err
	}
	labels, err := r.Collect()
	if err != nil {
		return err
	}
	return b.HandlePropagateLabels(in.Name(), labels)
}

func (b *Base) String() string {
	return fmt.Sprintf("Block(%s #%d, %s)", b.name, b.id, b.state)
}
