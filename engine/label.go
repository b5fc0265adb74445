package engine

import (
	"cmp"
	"fmt"

	"github.com/chazu/blockbridge/label"
	"github.com/chazu/blockbridge/managed"
)

// Label is the native label. Index is in elements on an input port and in
// bytes while travelling between ports.
type Label struct {
	ID    string
	Data  any
	Index uint64
}

// NewLabel is the constructor behind the label class's "new" selector.
func NewLabel(id string, data any, index uint64) *Label {
	return &Label{ID: id, Data: data, Index: index}
}

func (l *Label) String() string {
	return fmt.Sprintf("%s@%d", l.ID, l.Index)
}

// CompareTo orders labels by index.
func (l *Label) CompareTo(other any) (int, error) {
	o, ok := other.(*Label)
	if !ok {
		return 0, fmt.Errorf("cannot compare a label with %T", other)
	}
	return cmp.Compare(l.Index, o.Index), nil
}

func init() {
	managed.Register[*Label](label.NativeClass).Constructor(NewLabel)
	managed.Register[*LabelRange]("blockbridge.LabelRange")
}

// LabelRange is an index-addressed snapshot of a port's pending labels.
// At returns the end sentinel for any index past the last label.
type LabelRange struct {
	labels []*Label
	end    *Label
}

func newLabelRange(labels []*Label) *LabelRange {
	return &LabelRange{labels: labels, end: &Label{}}
}

// At returns the label at i or the end sentinel.
func (r *LabelRange) At(i int) *Label {
	if i < 0 || i >= len(r.labels) {
		return r.end
	}
	return r.labels[i]
}

// End returns the sentinel.
func (r *LabelRange) End() *Label { return r.end }

// Size is the number of labels.
func (r *LabelRange) Size() int { return len(r.labels) }
