package block

import (
	"github.com/chazu/blockbridge/label"
	"github.com/chazu/blockbridge/proxy"
)

// WorkInfo summarizes the window of the current work call.
type WorkInfo struct {
	MinElements       int
	MinInElements     int
	MinOutElements    int
	MinAllElements    int
	MinAllInElements  int
	MinAllOutElements int
	MaxTimeoutNs      int64
}

// WorkInfo reads the window summary from the native handle.
func (b *Base) WorkInfo() (WorkInfo, error) {
	p, err := b.native.Call("workInfo")
	if err != nil {
		return WorkInfo{}, err
	}
	var wi WorkInfo
	fields := []struct {
		name string
		dst  *int
	}{
		{"minElements", &wi.MinElements},
		{"minInElements", &wi.MinInElements},
		{"minOutElements", &wi.MinOutElements},
		{"minAllElements", &wi.MinAllElements},
		{"minAllInElements", &wi.MinAllInElements},
		{"minAllOutElements", &wi.MinAllOutElements},
	}
	for _, f := range fields {
		if *f.dst, err = proxy.CallAs[int](p, "get:"+f.name); err != nil {
			return WorkInfo{}, err
		}
	}
	if wi.MaxTimeoutNs, err = proxy.CallAs[int64](p, "get:maxTimeoutNs"); err != nil {
		return WorkInfo{}, err
	}
	return wi, nil
}

// HandleActivate runs the block's Activate. A failed activation leaves the
// state unchanged.
func (b *Base) HandleActivate() error {
	if b.state != Constructed && b.state != Deactivated {
		return &StateError{Block: b.name, Op: "activate", State: b.state}
	}
	if err := b.impl.Activate(); err != nil {
		return err
	}
	b.state = Activated
	return nil
}

// HandleWork runs one work call.
func (b *Base) HandleWork() error {
	if !b.state.Active() {
		return &StateError{Block: b.name, Op: "work", State: b.state}
	}
	b.state = Working
	return b.impl.Work()
}

// HandlePropagateLabels passes the labels consumed from the named input
// to the block.
func (b *Base) HandlePropagateLabels(input string, labels []label.Label) error {
	if !b.state.Active() {
		return &StateError{Block: b.name, Op: "propagateLabels", State: b.state}
	}
	in, err := b.Input(input)
	if err != nil {
		return err
	}
	if lp, ok := b.impl.(PortLabelPropagator); ok {
		return lp.PropagatePortLabels(in)
	}
	return b.impl.PropagateLabels(in, labels)
}

// HandleDeactivate runs the block's Deactivate.
func (b *Base) HandleDeactivate() error {
	if !b.state.Active() {
		return &StateError{Block: b.name, Op: "deactivate", State: b.state}
	}
	b.state = Deactivated
	return b.impl.Deactivate()
}

// Destroy drops the back-reference. Later Resolve calls for the block's id
// fail with *StaleReferenceError.
func (b *Base) Destroy() {
	if b.state == Destroyed {
		return
	}
	b.state = Destroyed
	forget(b.id)
	log.Debugf("destroyed %s", b.name)
}
