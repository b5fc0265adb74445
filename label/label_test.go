package label

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/blockbridge/managed"
	"github.com/chazu/blockbridge/proxy"
)

type nativeLabel struct {
	ID    string
	Data  any
	Index uint64
}

type legacyLabel struct {
	Data  any
	Index uint64
}

type nativeRange struct {
	items []any
	end   *nativeLabel
	calls int
}

func (r *nativeRange) At(i int) any {
	r.calls++
	if i < 0 || i >= len(r.items) {
		return r.end
	}
	return r.items[i]
}

func (r *nativeRange) End() *nativeLabel { return r.end }

func newRange(t *testing.T, items ...any) (*IteratorRange, *nativeRange) {
	t.Helper()
	nr := &nativeRange{items: items, end: &nativeLabel{}}
	p, err := managed.Env().Convert(nr)
	require.NoError(t, err)
	return NewIteratorRange(p), nr
}

func TestIterationIsRestartable(t *testing.T) {
	r, _ := newRange(t,
		&nativeLabel{ID: "a", Data: 1, Index: 0},
		&nativeLabel{ID: "b", Data: "x", Index: 4},
		&nativeLabel{ID: "c", Index: 9},
	)

	first, err := r.Collect()
	require.NoError(t, err)
	second, err := r.Collect()
	require.NoError(t, err)

	require.Len(t, first, 3)
	require.Len(t, second, 3)
	for i := range first {
		assert.True(t, first[i].Equivalent(second[i]), "pass %d differs: %v vs %v", i, first[i], second[i])
		assert.True(t, first[i].Native().Equal(second[i].Native()))
	}
	assert.Equal(t, "b", first[1].ID)
	assert.Equal(t, "x", first[1].Data)
	assert.Equal(t, uint64(4), first[1].Index)
	assert.Nil(t, first[2].Data)
}

func TestIterationIsLazy(t *testing.T) {
	r, nr := newRange(t,
		&nativeLabel{ID: "a"},
		&nativeLabel{ID: "b"},
		&nativeLabel{ID: "c"},
	)
	for l, err := range r.All() {
		require.NoError(t, err)
		assert.Equal(t, "a", l.ID)
		break
	}
	assert.Equal(t, 1, nr.calls)
}

func TestModifiedNativeLabel(t *testing.T) {
	r, _ := newRange(t, &nativeLabel{ID: "a", Data: 1, Index: 2})
	labels, err := r.Collect()
	require.NoError(t, err)
	l := labels[0]
	assert.False(t, l.Modified())
	l.Index = 5
	assert.True(t, l.Modified())
	assert.False(t, New("a", 1, 2).Modified())
}

func TestEmptyRange(t *testing.T) {
	r, _ := newRange(t)
	labels, err := r.Collect()
	require.NoError(t, err)
	assert.Empty(t, labels)
}

func TestLegacyNativeLabelHasEmptyID(t *testing.T) {
	r, _ := newRange(t, &legacyLabel{Data: 5, Index: 3})
	labels, err := r.Collect()
	require.NoError(t, err)
	require.Len(t, labels, 1)
	assert.Equal(t, "", labels[0].ID)
	assert.Equal(t, 5, labels[0].Data)
	assert.Equal(t, uint64(3), labels[0].Index)
}

func TestRangeErrorsSurface(t *testing.T) {
	p, err := managed.Env().Convert(42)
	require.NoError(t, err)
	_, err = NewIteratorRange(p).Collect()
	assert.True(t, proxy.IsUnknownMethod(err))
}

func TestPlainLabels(t *testing.T) {
	l := New("L1", 5, 3)
	assert.False(t, l.IsNative())
	assert.True(t, l.Native().IsNull())
	assert.Equal(t, "Label(L1: 5 @ 3)", l.String())

	moved := l.WithIndex(7)
	assert.Equal(t, uint64(7), moved.Index)
	assert.Equal(t, "L1", moved.ID)
}

func TestLegacyShape(t *testing.T) {
	l := FromLegacy(Legacy{Data: "d", Index: 2})
	assert.Equal(t, "", l.ID)
	assert.True(t, l.Equivalent(New("", "d", 2)))
	assert.Equal(t, Legacy{Data: "d", Index: 2}, New("x", "d", 2).Legacy())
	assert.Equal(t, "Label(d @ 2)", l.String())
}

func TestFromNativeNull(t *testing.T) {
	_, err := FromNative(proxy.Proxy{})
	var npe *proxy.NullProxyError
	assert.ErrorAs(t, err, &npe)
}
