package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/chazu/blockbridge/block"
	"github.com/chazu/blockbridge/label"
	"github.com/chazu/blockbridge/managed"
)

const bigElements = 1 << 30

// defaultMaxTimeout bounds how long an idle actor waits before trying
// again.
const defaultMaxTimeout = time.Millisecond

// Actor drives one node: pre-work, the bridged block's work call, then
// post-work.
type Actor struct {
	node    *Node
	stats   statsCell
	metrics *Metrics
}

func newActor(n *Node, m *Metrics) *Actor {
	a := &Actor{node: n, metrics: m}
	a.stats.s.Node = n.Name()
	return a
}

// Node returns the driven node.
func (a *Actor) Node() *Node { return a.node }

// Stats returns a snapshot of the node's work statistics.
func (a *Actor) Stats() WorkStats {
	s := a.stats.snapshot()
	s.Node = a.node.Name()
	return s
}

// WorkOnce runs one round. progress reports whether anything moved:
// bytes, messages, labels or slot calls. A stale back-reference and any
// error from the block's work call are returned as is.
func (a *Actor) WorkOnce() (progress bool, err error) {
	b, err := a.node.Block()
	if err != nil {
		return false, err
	}
	slotCalls := a.runSlotCalls(b)

	ready, err := a.preWork()
	if err != nil {
		return slotCalls > 0, err
	}
	if !ready {
		a.abandonWindows()
		return slotCalls > 0, nil
	}

	start := time.Now()
	workErr := b.HandleWork()
	elapsed := time.Since(start)

	d := a.postWork(b)
	d.seconds = elapsed.Seconds()
	d.failed = workErr != nil
	a.record(d, start, elapsed)

	if workErr != nil {
		log.Errorf("%s: work: %v", a.node.Name(), workErr)
		return true, workErr
	}
	return slotCalls > 0 || d.consumed > 0 || d.produced > 0 ||
		d.msgsConsumed > 0 || d.msgsProduced > 0 || d.labelsPosted > 0, nil
}

func (a *Actor) runSlotCalls(b *block.Base) int {
	calls := a.node.takeSlotCalls()
	for _, c := range calls {
		if _, err := b.CallSlot(c.slot, c.args...); err != nil {
			log.Errorf("%s[%s]: %v", a.node.Name(), c.slot, err)
		}
	}
	if len(calls) > 0 {
		a.stats.update(func(s *WorkStats) { s.SlotCalls += uint64(len(calls)) })
	}
	return len(calls)
}

// preWork acquires output windows and input fronts and fills WorkInfo.
// The block is ready when every output has room and either every input
// met its reserve or a message is waiting.
func (a *Actor) preWork() (bool, error) {
	n := a.node
	wi := block.WorkInfo{
		MinOutElements:    bigElements,
		MinAllOutElements: bigElements,
		MinInElements:     bigElements,
		MinAllInElements:  bigElements,
		MaxTimeoutNs:      defaultMaxTimeout.Nanoseconds(),
	}

	outputsReady := true
	for _, name := range n.outputNames {
		p := n.outputs[name]
		if err := p.prepare(); err != nil {
			return false, fmt.Errorf("%s: %w", p, err)
		}
		if p.elements == 0 {
			outputsReady = false
		}
		if p.index >= 0 {
			wi.MinOutElements = min(wi.MinOutElements, p.elements)
		}
		wi.MinAllOutElements = min(wi.MinAllOutElements, p.elements)
	}

	inputsReady, hasMessage := true, false
	for _, name := range n.inputNames {
		p := n.inputs[name]
		ready, msg, err := p.prepare()
		if err != nil {
			return false, fmt.Errorf("%s: %w", p, err)
		}
		inputsReady = inputsReady && ready
		hasMessage = hasMessage || msg
		if p.index >= 0 {
			wi.MinInElements = min(wi.MinInElements, p.elements)
		}
		wi.MinAllInElements = min(wi.MinAllInElements, p.elements)
	}

	wi.MinElements = min(wi.MinInElements, wi.MinOutElements)
	wi.MinAllElements = min(wi.MinAllInElements, wi.MinAllOutElements)
	n.workInfo = wi
	return outputsReady && (inputsReady || hasMessage), nil
}

func (a *Actor) abandonWindows() {
	for _, p := range a.node.inputs {
		p.window = p.window.Slice(0, 0)
		p.elements, p.pending = 0, 0
	}
	for _, p := range a.node.outputs {
		p.elements, p.pending = 0, 0
	}
}

type postDelta struct {
	workDelta
	labelsPosted int
}

// postWork hands consumed labels to the block, pops consumed input and
// sends produced output. Propagation failures are logged, not returned.
func (a *Actor) postWork(b *block.Base) postDelta {
	var d postDelta
	env := managed.Env()
	for _, name := range a.node.inputNames {
		p := a.node.inputs[name]
		bytes, msgs, consumed := p.finish()
		d.consumed += bytes
		d.msgsConsumed += msgs
		if len(consumed) == 0 {
			continue
		}
		labels := make([]label.Label, 0, len(consumed))
		for _, l := range consumed {
			lp, err := env.Convert(l)
			if err == nil {
				var bl label.Label
				if bl, err = label.FromNative(lp); err == nil {
					labels = append(labels, bl)
					continue
				}
			}
			log.Errorf("%s: materialize %s: %v", p, l, err)
		}
		d.propagated += len(labels)
		p.beginPropagation(consumed)
		if err := b.HandlePropagateLabels(name, labels); err != nil {
			log.Errorf("%s: propagateLabels: %v", p, err)
		}
		p.endPropagation()
	}
	for _, name := range a.node.outputNames {
		produced, labels, msgs := a.node.outputs[name].finish()
		d.produced += produced
		d.labelsPosted += labels
		d.msgsProduced += msgs
	}
	return d
}

func (a *Actor) record(d postDelta, start time.Time, elapsed time.Duration) {
	a.stats.update(func(s *WorkStats) {
		s.NumWorkCalls++
		if d.failed {
			s.NumWorkErrors++
		}
		s.BytesConsumed += uint64(d.consumed)
		s.BytesProduced += uint64(d.produced)
		s.MsgsConsumed += uint64(d.msgsConsumed)
		s.MsgsProduced += uint64(d.msgsProduced)
		s.LabelsProduced += uint64(d.labelsPosted)
		s.LabelsPropagated += uint64(d.propagated)
		s.TotalWorkTime += elapsed
		s.TimeLastWork = start
		if d.consumed > 0 || d.msgsConsumed > 0 {
			s.TimeLastConsumed = start
		}
		if d.produced > 0 || d.msgsProduced > 0 {
			s.TimeLastProduced = start
		}
	})
	a.metrics.observe(a.node.Name(), d.workDelta)
}

// IsFatal reports whether err must stop the engine.
func IsFatal(err error) bool {
	var stale *block.StaleReferenceError
	return errors.As(err, &stale)
}
