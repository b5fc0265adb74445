package buffer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/blockbridge/dtype"
)

func TestViewIsZeroCopy(t *testing.T) {
	pool := NewPool(64)
	defer pool.Close()
	c, err := pool.Get(0)
	require.NoError(t, err)
	defer c.Release()

	v, err := FromPointer(c.Address(), 4, dtype.MustParse("float32"), false)
	require.NoError(t, err)
	assert.Equal(t, 16, v.ByteLen())

	fs, err := Writable[float32](v)
	require.NoError(t, err)
	require.Len(t, fs, 4)
	fs[2] = 1.5

	again, err := Slice[float32](v)
	require.NoError(t, err)
	assert.Equal(t, float32(1.5), again[2])
	assert.Equal(t, byte(0xc0), c.Bytes()[10], "write must land in the chunk memory")
}

func TestReadOnlyViewRefusesWrites(t *testing.T) {
	pool := NewPool(64)
	defer pool.Close()
	c, err := pool.Get(0)
	require.NoError(t, err)
	defer c.Release()

	v, err := FromPointer(c.Address(), 8, dtype.MustParse("int16"), true)
	require.NoError(t, err)

	_, err = Writable[int16](v)
	var ro *ReadOnlyViolation
	require.ErrorAs(t, err, &ro)

	_, err = v.WritableBytes()
	require.ErrorAs(t, err, &ro)

	_, err = v.CopyFrom([]byte{1, 2})
	require.ErrorAs(t, err, &ro)

	xs, err := Slice[int16](v)
	require.NoError(t, err)
	assert.Len(t, xs, 8)
}

func TestSliceChecksElementSize(t *testing.T) {
	pool := NewPool(64)
	defer pool.Close()
	c, _ := pool.Get(0)
	defer c.Release()

	cplx, err := FromPointer(c.Address(), 2, dtype.MustParse("complex_int16"), false)
	require.NoError(t, err)
	pairs, err := Slice[[2]int16](cplx)
	require.NoError(t, err)
	assert.Len(t, pairs, 2)
	_, err = Slice[float64](cplx)
	assert.Error(t, err)

	vec, err := FromPointer(c.Address(), 2, dtype.MustParse("int16, 3"), false)
	require.NoError(t, err)
	items, err := Slice[[3]int16](vec)
	require.NoError(t, err)
	assert.Len(t, items, 2)
	scalars, err := Slice[int16](vec)
	require.NoError(t, err)
	assert.Len(t, scalars, 6)
}

func TestFromPointerValidates(t *testing.T) {
	_, err := FromPointer(0, 1, dtype.MustParse("byte"), true)
	assert.Error(t, err)
	_, err = FromPointer(0x1000, -1, dtype.MustParse("byte"), true)
	assert.Error(t, err)

	empty, err := FromPointer(0, 0, dtype.MustParse("byte"), true)
	require.NoError(t, err)
	assert.Nil(t, empty.Bytes())
}

func TestPoolRecyclesSlabs(t *testing.T) {
	pool := NewPool(32)
	defer pool.Close()

	c, err := pool.Get(0)
	require.NoError(t, err)
	shared := c.Slice(0, 8).Retain()

	c.Release()
	live, free := pool.Stats()
	assert.Equal(t, 1, live)
	assert.Equal(t, 0, free)

	shared.Release()
	live, free = pool.Stats()
	assert.Equal(t, 0, live)
	assert.Equal(t, 1, free)

	big, err := pool.Get(100)
	require.NoError(t, err)
	assert.Equal(t, 100, big.Length())
	big.Release()
	_, free = pool.Stats()
	assert.Equal(t, 1, free, "oversized slabs are not recycled")
}

func TestClosedPool(t *testing.T) {
	pool := NewPool(16)
	require.NoError(t, pool.Close())
	_, err := pool.Get(0)
	assert.Error(t, err)
}

func TestManagerFrontPop(t *testing.T) {
	pool := NewPool(16)
	defer pool.Close()
	m := NewManager(pool)
	defer m.Close()

	f, err := m.Front(4)
	require.NoError(t, err)
	assert.Equal(t, 16, f.Length())

	m.Pop(10)
	f2, err := m.Front(4)
	require.NoError(t, err)
	assert.Equal(t, 6, f2.Length())
	assert.Equal(t, f.Address()+10, f2.Address())

	m.Pop(4)
	f3, err := m.Front(4)
	require.NoError(t, err)
	assert.Equal(t, 16, f3.Length(), "a tail shorter than one item is abandoned")

	big, err := m.Front(40)
	require.NoError(t, err)
	assert.Equal(t, 40, big.Length())
}

func TestAccumulatorRequireMerges(t *testing.T) {
	pool := NewPool(16)
	defer pool.Close()
	acc := NewAccumulator(pool)
	defer acc.Clear()

	for i := byte(0); i < 3; i++ {
		c, err := pool.Get(0)
		require.NoError(t, err)
		part := c.Slice(0, 4)
		copy(part.Bytes(), []byte{i, i, i, i})
		acc.Push(part)
	}
	assert.Equal(t, 12, acc.TotalBytes())
	assert.Equal(t, 3, acc.Chunks())

	require.NoError(t, acc.Require(6))
	front := acc.Front()
	assert.Equal(t, 6, front.Length())
	assert.Equal(t, []byte{0, 0, 0, 0, 1, 1}, front.Bytes())
	assert.Equal(t, 12, acc.TotalBytes())

	acc.Pop(7)
	assert.Equal(t, 5, acc.TotalBytes())
	assert.Equal(t, []byte{1}, acc.Front().Bytes())

	acc.Pop(100)
	assert.Equal(t, 0, acc.TotalBytes())
	assert.True(t, acc.Front().IsZero())
}

func TestReadOnlyViolationMessage(t *testing.T) {
	err := error(&ReadOnlyViolation{Op: "write"})
	var ro *ReadOnlyViolation
	assert.True(t, errors.As(err, &ro))
	assert.Contains(t, err.Error(), "read-only")
}
