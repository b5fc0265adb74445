package port

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/blockbridge/buffer"
	"github.com/chazu/blockbridge/dtype"
	"github.com/chazu/blockbridge/label"
	"github.com/chazu/blockbridge/managed"
	"github.com/chazu/blockbridge/proxy"
)

type fakeLabel struct {
	ID    string
	Data  any
	Index uint64
}

type fakeRange struct {
	labels []*fakeLabel
	end    *fakeLabel
}

func (r *fakeRange) At(i int) *fakeLabel {
	if i >= len(r.labels) {
		return r.end
	}
	return r.labels[i]
}

func (r *fakeRange) End() *fakeLabel { return r.end }

type fakeInput struct {
	chunk    buffer.Chunk
	dtype    string
	avail    int
	consumed int
	labels   []*fakeLabel
	end      *fakeLabel
	msgs     []any
	reserve  int
}

func (f *fakeInput) Name() string { return "in0" }
func (f *fakeInput) Index() int { return 0 }
func (f *fakeInput) Alias() string { return "in0" }
func (f *fakeInput) DType() string { return f.dtype }
func (f *fakeInput) Domain() string { return "" }
func (f *fakeInput) Elements() int { return f.avail }
func (f *fakeInput) HasMessage() bool { return len(f.msgs) > 0 }

func (f *fakeInput) TotalElements() uint64 { return uint64(f.consumed) }
func (f *fakeInput) TotalBuffers() uint64 { return 1 }
func (f *fakeInput) TotalLabels() uint64 { return uint64(len(f.labels)) }
func (f *fakeInput) TotalMessages() uint64 { return 0 }

func (f *fakeInput) PopMessage() (any, error) {
	if len(f.msgs) == 0 {
		return nil, errors.New("no message")
	}
	m := f.msgs[0]
	f.msgs = f.msgs[1:]
	return m, nil
}

func (f *fakeInput) Labels() *fakeRange {
	return &fakeRange{labels: f.labels, end: f.end}
}

func (f *fakeInput) RemoveLabel(l *fakeLabel) error {
	for i, x := range f.labels {
		if x == l {
			f.labels = append(f.labels[:i], f.labels[i+1:]...)
			return nil
		}
	}
	return errors.New("label not found")
}

func (f *fakeInput) Buffer() buffer.Chunk {
	return f.chunk.Slice(0, f.avail*4)
}

func (f *fakeInput) Consume(n int) {
	f.avail -= n
	f.consumed += n
}

func (f *fakeInput) SetReserve(n int) { f.reserve = n }

type fakeOutput struct {
	chunk    buffer.Chunk
	room     int
	produced int
	posted   []*fakeLabel
	msgs     []any
}

func (f *fakeOutput) Name() string { return "out0" }
func (f *fakeOutput) Index() int { return 0 }
func (f *fakeOutput) Alias() string { return "out0" }
func (f *fakeOutput) DType() string { return "float32" }
func (f *fakeOutput) Domain() string { return "" }
func (f *fakeOutput) Elements() int { return f.room }

func (f *fakeOutput) TotalElements() uint64 { return uint64(f.produced) }
func (f *fakeOutput) TotalMessages() uint64 { return uint64(len(f.msgs)) }

func (f *fakeOutput) Buffer() buffer.Chunk { return f.chunk.Slice(0, f.room*4) }

func (f *fakeOutput) Produce(n int) {
	f.room -= n
	f.produced += n
}

func (f *fakeOutput) PostLabel(l *fakeLabel) { f.posted = append(f.posted, l) }
func (f *fakeOutput) PostMessage(m any) { f.msgs = append(f.msgs, m) }

type injectingOutput struct {
	*fakeOutput
	injected [][]byte
}

func (f *injectingOutput) PostBuffer(address uintptr, length int) error {
	v, err := buffer.FromPointer(address, length, dtype.MustParse("byte"), true)
	if err != nil {
		return err
	}
	f.injected = append(f.injected, append([]byte(nil), v.Bytes()...))
	return nil
}

type fixture struct {
	env  *proxy.Environment
	pool *buffer.Pool
	in   *fakeInput
	out  *fakeOutput
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	classes := managed.NewClassTable()
	classes.Register(label.NativeClass, reflect.TypeFor[*fakeLabel]()).
		Constructor(func(id string, data any, index uint64) *fakeLabel {
			return &fakeLabel{ID: id, Data: data, Index: index}
		})
	env := proxy.NewEnvironment("port-test", managed.NewBackend(classes))

	pool := buffer.NewPool(256)
	t.Cleanup(func() { pool.Close() })
	ic, err := pool.Get(0)
	require.NoError(t, err)
	oc, err := pool.Get(0)
	require.NoError(t, err)
	t.Cleanup(func() {
		ic.Release()
		oc.Release()
	})

	return &fixture{
		env:  env,
		pool: pool,
		in:   &fakeInput{chunk: ic, dtype: "float32", avail: 10, end: &fakeLabel{}},
		out:  &fakeOutput{chunk: oc, room: 10},
	}
}

func (f *fixture) input(t *testing.T) *InputPort {
	t.Helper()
	p, err := f.env.Convert(f.in)
	require.NoError(t, err)
	in, err := NewInput(p)
	require.NoError(t, err)
	return in
}

func (f *fixture) output(t *testing.T, native any) *OutputPort {
	t.Helper()
	p, err := f.env.Convert(native)
	require.NoError(t, err)
	out, err := NewOutput(p)
	require.NoError(t, err)
	return out
}

func TestConsumeBounds(t *testing.T) {
	f := newFixture(t)
	in := f.input(t)

	err := in.Consume(11)
	var under *UnderflowError
	require.ErrorAs(t, err, &under)
	assert.Equal(t, "in0", under.Port)
	assert.Equal(t, 11, under.Requested)
	assert.Equal(t, 10, under.Available)
	assert.Equal(t, 10, f.in.avail, "failed consume must not touch the native port")

	require.NoError(t, in.Consume(0))
	require.NoError(t, in.Consume(4))
	require.NoError(t, in.Consume(6))
	assert.Equal(t, 10, f.in.consumed)

	assert.Error(t, in.Consume(-1))
}

func TestProduceBounds(t *testing.T) {
	f := newFixture(t)
	out := f.output(t, f.out)

	var over *OverflowError
	require.ErrorAs(t, out.Produce(11), &over)
	assert.Equal(t, 10, over.Available)

	require.NoError(t, out.Produce(10))
	require.ErrorAs(t, out.Produce(1), &over)
	assert.Equal(t, 0, over.Available)
	require.NoError(t, out.Produce(0))
}

func TestBuffersAreTypedViews(t *testing.T) {
	f := newFixture(t)
	in := f.input(t)
	out := f.output(t, f.out)

	src, err := in.Buffer()
	require.NoError(t, err)
	assert.True(t, src.ReadOnly())
	assert.Equal(t, 10, src.Len())
	_, err = buffer.Writable[float32](src)
	var ro *buffer.ReadOnlyViolation
	assert.ErrorAs(t, err, &ro)

	dst, err := out.Buffer()
	require.NoError(t, err)
	assert.False(t, dst.ReadOnly())
	fs, err := buffer.Writable[float32](dst)
	require.NoError(t, err)
	require.Len(t, fs, 10)
	fs[0] = 2.5
	assert.Equal(t, f.out.chunk.Address(), dst.Address())
}

func TestRemoveLabelNeedsNativeSource(t *testing.T) {
	f := newFixture(t)
	f.in.labels = []*fakeLabel{{ID: "L1", Data: 5, Index: 3}}
	in := f.input(t)

	err := in.RemoveLabel(label.New("L1", 5, 3))
	var bad *InvalidLabelSourceError
	require.ErrorAs(t, err, &bad)
	assert.Equal(t, "in0", bad.Port)
	assert.Len(t, f.in.labels, 1)

	r, err := in.Labels()
	require.NoError(t, err)
	labels, err := r.Collect()
	require.NoError(t, err)
	require.Len(t, labels, 1)
	require.NoError(t, in.RemoveLabel(labels[0]))
	assert.Empty(t, f.in.labels)
}

func TestRemoveLabelChecksClass(t *testing.T) {
	f := newFixture(t)
	in := f.input(t)

	type other struct {
		ID    string
		Data  any
		Index uint64
	}
	p, err := f.env.Convert(&other{ID: "x"})
	require.NoError(t, err)
	l, err := label.FromNative(p)
	require.NoError(t, err)

	var bad *InvalidLabelSourceError
	require.ErrorAs(t, in.RemoveLabel(l), &bad)
	assert.Contains(t, bad.Reason, "native class")
}

func TestPostLabelRoundTrip(t *testing.T) {
	f := newFixture(t)
	out := f.output(t, f.out)

	require.NoError(t, out.PostLabel(label.New("L1", 5, 3)))
	require.Len(t, f.out.posted, 1)
	assert.Equal(t, &fakeLabel{ID: "L1", Data: 5, Index: 3}, f.out.posted[0])

	// downstream sees what was posted
	f.in.labels = f.out.posted
	in := f.input(t)
	r, err := in.Labels()
	require.NoError(t, err)
	got, err := r.Collect()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Equivalent(label.New("L1", 5, 3)))

	// an unedited native label passes through untouched
	require.NoError(t, out.PostLabel(got[0]))
	assert.Same(t, f.out.posted[0], f.out.posted[1])

	// an edited one is rebuilt
	moved := got[0]
	moved.Index = 8
	require.NoError(t, out.PostLabel(moved))
	assert.NotSame(t, f.out.posted[0], f.out.posted[2])
	assert.Equal(t, uint64(8), f.out.posted[2].Index)
}

func TestMessages(t *testing.T) {
	f := newFixture(t)
	f.in.msgs = []any{"hello"}
	in := f.input(t)
	out := f.output(t, f.out)

	has, err := in.HasMessage()
	require.NoError(t, err)
	require.True(t, has)

	msg, err := in.PopMessage()
	require.NoError(t, err)
	require.NoError(t, out.PostMessage(msg))
	assert.Equal(t, []any{"hello"}, f.out.msgs)

	has, err = in.HasMessage()
	require.NoError(t, err)
	assert.False(t, has)
	_, err = in.PopMessage()
	assert.Error(t, err)
}

func TestPostBuffer(t *testing.T) {
	f := newFixture(t)
	in := f.input(t)
	v, err := in.Buffer()
	require.NoError(t, err)

	plain := f.output(t, f.out)
	var ni *NotImplementedError
	require.ErrorAs(t, plain.PostBuffer(v), &ni)
	assert.Equal(t, "postBuffer", ni.Op)

	inj := &injectingOutput{fakeOutput: f.out}
	out := f.output(t, inj)
	require.NoError(t, out.PostBuffer(v))
	require.Len(t, inj.injected, 1)
	assert.Len(t, inj.injected[0], 40)
}

func TestPortAttributes(t *testing.T) {
	f := newFixture(t)
	f.in.dtype = "complex_int16, 2"
	in := f.input(t)
	assert.Equal(t, "in0", in.Name())
	assert.Equal(t, "complex_int16, 2", in.DType().Markup())
	require.NoError(t, in.SetReserve(4))
	assert.Equal(t, 4, f.in.reserve)

	idx, err := in.Index()
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.Equal(t, "InputPort(in0, complex_int16 [2])", in.String())
}

func TestNullNativePort(t *testing.T) {
	_, err := NewInput(proxy.Proxy{})
	var npe *proxy.NullProxyError
	assert.ErrorAs(t, err, &npe)
	_, err = NewOutput(proxy.Proxy{})
	assert.ErrorAs(t, err, &npe)
}
