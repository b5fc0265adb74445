package label

import (
	"fmt"
	"iter"

	"github.com/chazu/blockbridge/proxy"
)

// IteratorRange walks the labels held by a native port without copying
// them. The native container answers "at" with a label for in-range
// indexes and with its end sentinel otherwise; "end" returns the sentinel.
//
// Each pass over All starts again from index zero, so iterating twice
// over an unchanged port yields the same sequence.
type IteratorRange struct {
	native proxy.Proxy
}

// NewIteratorRange wraps a native label range.
func NewIteratorRange(native proxy.Proxy) *IteratorRange {
	return &IteratorRange{native: native}
}

// Native returns the wrapped range.
func (r *IteratorRange) Native() proxy.Proxy {
	return r.native
}

// At returns the native label at index i, or the end sentinel.
func (r *IteratorRange) At(i int) (proxy.Proxy, error) {
	return r.native.Call("at", i)
}

// End returns the native end sentinel.
func (r *IteratorRange) End() (proxy.Proxy, error) {
	return r.native.Call("end")
}

// All yields one materialized label per step. Iteration stops at the end
// sentinel or after the first error.
func (r *IteratorRange) All() iter.Seq2[Label, error] {
	return func(yield func(Label, error) bool) {
		end, err := r.End()
		if err != nil {
			yield(Label{}, fmt.Errorf("label: range end: %w", err))
			return
		}
		for i := 0; ; i++ {
			p, err := r.At(i)
			if err != nil {
				yield(Label{}, fmt.Errorf("label: range at %d: %w", i, err))
				return
			}
			if p.Equal(end) {
				return
			}
			l, err := FromNative(p)
			if !yield(l, err) || err != nil {
				return
			}
		}
	}
}

// Collect materializes the whole range.
func (r *IteratorRange) Collect() ([]Label, error) {
	var out []Label
	for l, err := range r.All() {
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}
