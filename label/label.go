// Package label defines the metadata tags attached to sample offsets of a
// port stream, and the lazy range used to walk the labels a native port
// holds.
package label

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/chazu/blockbridge/proxy"
)

// NativeClass is the class name carried by native label objects. A label
// can be removed from an input port only if its source proxy has this
// class.
const NativeClass = "blockbridge.Label"

// Label tags the sample at Index with Data. Index counts elements from
// the start of the port's current work window.
type Label struct {
	ID    string
	Data  any
	Index uint64

	native proxy.Proxy
	// src is the state read from native, used to detect local edits
	src source
}

type source struct {
	id    string
	data  any
	index uint64
}

// New constructs a plain label with no native source.
func New(id string, data any, index uint64) Label {
	return Label{ID: id, Data: data, Index: index}
}

// Native returns the native label this label was read from, or the null
// proxy for a plain label.
func (l Label) Native() proxy.Proxy {
	return l.native
}

// IsNative reports whether l was read from a native port.
func (l Label) IsNative() bool {
	return !l.native.IsNull()
}

// Modified reports whether a native label was changed after it was read.
// Plain labels always report false.
func (l Label) Modified() bool {
	if !l.IsNative() {
		return false
	}
	return l.ID != l.src.id || l.Index != l.src.index || !reflect.DeepEqual(l.Data, l.src.data)
}

// WithIndex returns a plain copy of l at a different offset.
func (l Label) WithIndex(index uint64) Label {
	return Label{ID: l.ID, Data: l.Data, Index: index}
}

// Equivalent compares id, data and index. The native source is ignored.
func (l Label) Equivalent(o Label) bool {
	return l.ID == o.ID && l.Index == o.Index && reflect.DeepEqual(l.Data, o.Data)
}

func (l Label) String() string {
	if l.ID == "" {
		return fmt.Sprintf("Label(%v @ %d)", l.Data, l.Index)
	}
	return fmt.Sprintf("Label(%s: %v @ %d)", l.ID, l.Data, l.Index)
}

// FromNative materializes a native label. A native label with no id field
// yields an empty ID.
func FromNative(p proxy.Proxy) (Label, error) {
	if p.IsNull() {
		return Label{}, &proxy.NullProxyError{Op: "materialize label"}
	}
	id, err := proxy.CallAs[string](p, "get:id")
	if err != nil && !proxy.IsUnknownMethod(err) && !errors.Is(err, proxy.ErrNoField) {
		return Label{}, fmt.Errorf("label: read id: %w", err)
	}
	dp, err := p.Get("data")
	if err != nil {
		return Label{}, fmt.Errorf("label: read data: %w", err)
	}
	data, err := dp.ToGo()
	if err != nil {
		return Label{}, fmt.Errorf("label: read data: %w", err)
	}
	index, err := proxy.CallAs[uint64](p, "get:index")
	if err != nil {
		return Label{}, fmt.Errorf("label: read index: %w", err)
	}
	return Label{
		ID:     id,
		Data:   data,
		Index:  index,
		native: p,
		src:    source{id: id, data: data, index: index},
	}, nil
}

// Legacy is the identifier-less label shape.
type Legacy struct {
	Data  any
	Index uint64
}

// FromLegacy lifts a legacy label with an empty ID.
func FromLegacy(l Legacy) Label {
	return Label{Data: l.Data, Index: l.Index}
}

// Legacy drops the identifier.
func (l Label) Legacy() Legacy {
	return Legacy{Data: l.Data, Index: l.Index}
}
