package blocks

import (
	"context"
	"encoding/binary"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/blockbridge/block"
	"github.com/chazu/blockbridge/dtype"
	"github.com/chazu/blockbridge/engine"
	"github.com/chazu/blockbridge/label"
	"github.com/chazu/blockbridge/port"
	"github.com/chazu/blockbridge/proxy"
)

func float32Bytes(vals ...float32) []byte {
	b := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.NativeEndian.PutUint32(b[4*i:], math.Float32bits(v))
	}
	return b
}

func newTopology(t *testing.T, opts ...engine.Option) *engine.Topology {
	t.Helper()
	top := engine.NewTopology(opts...)
	t.Cleanup(func() { _ = top.Close() })
	return top
}

func makeNode(t *testing.T, top *engine.Topology, path string, args ...any) (*engine.Node, block.Worker) {
	t.Helper()
	n, err := top.Make(path, args...)
	require.NoError(t, err)
	b, err := n.Block()
	require.NoError(t, err)
	return n, workerOf(t, b)
}

// workerOf returns the concrete block that testRegistry's factory made
// for b.
func workerOf(t *testing.T, b *block.Base) block.Worker {
	t.Helper()
	w, ok := workers[b.ID()]
	require.True(t, ok, "no worker recorded for %s", b)
	return w
}

var (
	workers          = map[uint64]block.Worker{}
	testRegistryOnce sync.Once
	testRegistryVal  *engine.Registry
)

// testRegistry mirrors the default registry and records every block it
// makes.
func testRegistry() *engine.Registry {
	testRegistryOnce.Do(func() {
		testRegistryVal = engine.NewRegistry()
		for _, path := range engine.DefaultRegistry.Paths() {
			reg, _ := engine.DefaultRegistry.Lookup(path)
			f := reg.Factory
			reg.Factory = func(native proxy.Proxy, args ...any) (block.Worker, error) {
				w, err := f(native, args...)
				if err == nil {
					if b, ok := w.(interface{ ID() uint64 }); ok {
						workers[b.ID()] = w
					}
				}
				return w, err
			}
			if err := testRegistryVal.Register(reg); err != nil {
				panic(err)
			}
		}
	})
	return testRegistryVal
}

func TestRegisteredPaths(t *testing.T) {
	assert.Equal(t, []string{
		"/blocks/collector_sink",
		"/blocks/forwarder",
		"/blocks/gain",
		"/blocks/throttle",
		"/blocks/vector_source",
	}, engine.DefaultRegistry.Paths())
}

func TestForwarderMovesTenFloats(t *testing.T) {
	top := newTopology(t, engine.WithSlabSize(40), engine.WithRegistry(testRegistry()))
	fwdNode, _ := makeNode(t, top, "/blocks/forwarder", "float32")
	sinkNode, sinkW := makeNode(t, top, "/blocks/collector_sink", "float32")
	require.NoError(t, top.Connect(fwdNode, "0", sinkNode, "0"))
	require.NoError(t, top.Activate())

	in, err := fwdNode.Input("0")
	require.NoError(t, err)
	payload := float32Bytes(0, 1, 2, 3, 4, 5, 6, 7, 8, 9)
	c, err := top.Pool().Get(40)
	require.NoError(t, err)
	copy(c.Bytes(), payload)
	in.PushBuffer(c)

	a, ok := top.Actor(fwdNode)
	require.True(t, ok)
	progress, err := a.WorkOnce()
	require.NoError(t, err)
	assert.True(t, progress)

	out, err := fwdNode.Output("0")
	require.NoError(t, err)
	assert.EqualValues(t, 10, in.TotalElements())
	assert.EqualValues(t, 10, out.TotalElements())
	st := a.Stats()
	assert.EqualValues(t, 40, st.BytesConsumed)
	assert.EqualValues(t, 40, st.BytesProduced)

	_, err = top.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, payload, sinkW.(*CollectorSink).GetBuffer())
}

func TestForwarderMovesLabel(t *testing.T) {
	top := newTopology(t, engine.WithSlabSize(40), engine.WithRegistry(testRegistry()))
	fwdNode, _ := makeNode(t, top, "/blocks/forwarder", "float32")
	sinkNode, _ := makeNode(t, top, "/blocks/collector_sink", "float32")
	require.NoError(t, top.Connect(fwdNode, "0", sinkNode, "0"))
	require.NoError(t, top.Activate())

	in, err := fwdNode.Input("0")
	require.NoError(t, err)
	c, err := top.Pool().Get(40)
	require.NoError(t, err)
	in.PushLabel(engine.Label{ID: "L1", Data: 5, Index: 3 * 4})
	in.PushBuffer(c)

	a, _ := top.Actor(fwdNode)
	_, err = a.WorkOnce()
	require.NoError(t, err)

	assert.EqualValues(t, 1, in.TotalLabels(), "one label removed from the input")
	assert.Zero(t, in.Labels().Size())
	assert.Zero(t, a.Stats().LabelsPropagated)

	sinkIn, err := sinkNode.Input("0")
	require.NoError(t, err)
	r := sinkIn.Labels()
	require.Equal(t, 1, r.Size())
	got := r.At(0)
	assert.Equal(t, "L1", got.ID)
	assert.Equal(t, 5, got.Data)
	assert.EqualValues(t, 3, got.Index)
}

func TestVectorSourceThroughForwarder(t *testing.T) {
	top := newTopology(t, engine.WithSlabSize(16), engine.WithRegistry(testRegistry()))
	values := []float32{1, 2, 3, 4, 5, 6, 7, 8, 9}
	labels := []label.Label{label.New("start", "s", 0), label.New("mid", int64(7), 6)}
	srcNode, _ := makeNode(t, top, "/blocks/vector_source", "float32", values, labels)
	fwdNode, _ := makeNode(t, top, "/blocks/forwarder", "float32")
	sinkNode, sinkW := makeNode(t, top, "/blocks/collector_sink", "float32")
	require.NoError(t, top.Connect(srcNode, "0", fwdNode, "0"))
	require.NoError(t, top.Connect(fwdNode, "0", sinkNode, "0"))
	require.NoError(t, top.Activate())

	_, err := top.Drain(context.Background())
	require.NoError(t, err)

	sink := sinkW.(*CollectorSink)
	assert.Equal(t, float32Bytes(values...), sink.GetBuffer())
	type plain struct {
		ID    string
		Data  any
		Index uint64
	}
	var got []plain
	for _, l := range sink.GetLabels() {
		got = append(got, plain{l.ID, l.Data, l.Index})
	}
	want := []plain{{"start", "s", 0}, {"mid", int64(7), 6}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}
}

func TestMessagesPassThrough(t *testing.T) {
	top := newTopology(t, engine.WithRegistry(testRegistry()))
	srcNode, srcW := makeNode(t, top, "/blocks/vector_source", "int16")
	fwdNode, _ := makeNode(t, top, "/blocks/forwarder", "int16")
	sinkNode, sinkW := makeNode(t, top, "/blocks/collector_sink", "int16")
	require.NoError(t, top.Connect(srcNode, "0", fwdNode, "0"))
	require.NoError(t, top.Connect(fwdNode, "0", sinkNode, "0"))
	require.NoError(t, top.Activate())

	out := srcW.(*VectorSource).out
	require.NoError(t, out.PostMessage("hello"))
	require.NoError(t, out.PostMessage(int64(42)))
	_, err := top.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []any{"hello", int64(42)}, sinkW.(*CollectorSink).GetMessages())
}

func TestGainSlotAndSignal(t *testing.T) {
	top := newTopology(t, engine.WithRegistry(testRegistry()))
	srcNode, srcW := makeNode(t, top, "/blocks/vector_source", "float32", []float64{1, 2, 3})
	gainNode, gainW := makeNode(t, top, "/blocks/gain", 2.0)
	sinkNode, sinkW := makeNode(t, top, "/blocks/collector_sink", "float32")
	require.NoError(t, top.Connect(srcNode, "0", gainNode, "0"))
	require.NoError(t, top.Connect(gainNode, "0", sinkNode, "0"))
	require.NoError(t, top.Activate())

	_, err := top.Drain(context.Background())
	require.NoError(t, err)
	sink := sinkW.(*CollectorSink)
	assert.Equal(t, float32Bytes(2, 4, 6), sink.GetBuffer())

	gain := gainW.(*Gain)
	_, err = gain.CallSlot("setGain", 0.5)
	require.NoError(t, err)
	v, err := gain.Call("getGain")
	require.NoError(t, err)
	g, err := proxy.To[float64](v)
	require.NoError(t, err)
	assert.Equal(t, 0.5, g)

	require.NoError(t, srcW.(*VectorSource).SetElements([]float32{8}))
	sink.Clear()
	_, err = top.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, float32Bytes(4), sink.GetBuffer())
}

func TestGainChangedReachesSlot(t *testing.T) {
	top := newTopology(t, engine.WithRegistry(testRegistry()))
	aNode, aW := makeNode(t, top, "/blocks/gain", 1.0)
	bNode, bW := makeNode(t, top, "/blocks/gain", 1.0)
	require.NoError(t, top.ConnectSignal(aNode, "gainChanged", bNode, "setGain"))
	require.NoError(t, top.Activate())

	require.NoError(t, aW.(*Gain).SetGain(3))
	_, err := top.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3.0, bW.(*Gain).GetGain())
}

func TestGainPropagatesLabels(t *testing.T) {
	top := newTopology(t, engine.WithRegistry(testRegistry()))
	srcNode, _ := makeNode(t, top, "/blocks/vector_source", "float32", []float32{1, 1, 1, 1},
		[]label.Label{label.New("x", nil, 2)})
	gainNode, _ := makeNode(t, top, "/blocks/gain", 1.0)
	sinkNode, sinkW := makeNode(t, top, "/blocks/collector_sink", "float32")
	require.NoError(t, top.Connect(srcNode, "0", gainNode, "0"))
	require.NoError(t, top.Connect(gainNode, "0", sinkNode, "0"))
	require.NoError(t, top.Activate())

	_, err := top.Drain(context.Background())
	require.NoError(t, err)
	labels := sinkW.(*CollectorSink).GetLabels()
	require.Len(t, labels, 1)
	assert.Equal(t, "x", labels[0].ID)
	assert.EqualValues(t, 2, labels[0].Index)
	gainActor, _ := top.Actor(gainNode)
	assert.EqualValues(t, 1, gainActor.Stats().LabelsPropagated)
}

func TestThrottleLimitsRate(t *testing.T) {
	top := newTopology(t, engine.WithRegistry(testRegistry()))
	srcNode, _ := makeNode(t, top, "/blocks/vector_source", "uint8", make([]byte, 20))
	thrNode, thrW := makeNode(t, top, "/blocks/throttle", "uint8", 5.0)
	sinkNode, sinkW := makeNode(t, top, "/blocks/collector_sink", "uint8")
	require.NoError(t, top.Connect(srcNode, "0", thrNode, "0"))
	require.NoError(t, top.Connect(thrNode, "0", sinkNode, "0"))

	clock := time.Unix(1000, 0)
	thr := thrW.(*Throttle)
	thr.now = func() time.Time { return clock }
	require.NoError(t, top.Activate())

	_, err := top.Drain(context.Background())
	require.NoError(t, err)
	sink := sinkW.(*CollectorSink)
	assert.Empty(t, sink.GetBuffer(), "bucket starts empty")

	clock = clock.Add(time.Second)
	_, err = top.Drain(context.Background())
	require.NoError(t, err)
	assert.Len(t, sink.GetBuffer(), 5)

	require.NoError(t, thr.SetRate(100))
	clock = clock.Add(time.Second)
	_, err = top.Drain(context.Background())
	require.NoError(t, err)
	assert.Len(t, sink.GetBuffer(), 20)
	assert.Error(t, thr.SetRate(0))
}

// misbehaving exercises the port error taxonomy from inside a work call.
type misbehaving struct {
	*block.Base
	in   *port.InputPort
	mode string
}

func TestPortErrorsFromWork(t *testing.T) {
	reg := engine.NewRegistry()
	require.NoError(t, reg.Register(engine.Registration{
		Path: "/test/misbehaving",
		Factory: func(native proxy.Proxy, args ...any) (block.Worker, error) {
			m := &misbehaving{mode: args[0].(string)}
			b, err := block.New(native, m)
			if err != nil {
				return nil, err
			}
			m.Base = b
			m.in, err = b.SetupInput("0", dtype.MustParse("float32"))
			return m, err
		},
	}))

	cases := []struct {
		mode  string
		check func(t *testing.T, err error)
	}{
		{"consume", func(t *testing.T, err error) {
			var uf *port.UnderflowError
			require.ErrorAs(t, err, &uf)
			assert.Equal(t, 11, uf.Requested)
			assert.Equal(t, 10, uf.Available)
		}},
		{"removeLabel", func(t *testing.T, err error) {
			var ils *port.InvalidLabelSourceError
			require.ErrorAs(t, err, &ils)
		}},
	}
	for _, tc := range cases {
		t.Run(tc.mode, func(t *testing.T) {
			top := newTopology(t, engine.WithRegistry(reg))
			n, err := top.Make("/test/misbehaving", tc.mode)
			require.NoError(t, err)
			require.NoError(t, top.Activate())
			in, err := n.Input("0")
			require.NoError(t, err)
			c, err := top.Pool().Get(40)
			require.NoError(t, err)
			in.PushBuffer(c.Slice(0, 40))

			_, err = top.Drain(context.Background())
			tc.check(t, err)
			assert.False(t, engine.IsFatal(err))
		})
	}
}

func (m *misbehaving) Work() error {
	switch m.mode {
	case "consume":
		return m.in.Consume(11)
	case "removeLabel":
		return m.in.RemoveLabel(label.New("fresh", nil, 0))
	}
	return nil
}

func TestFactoryArguments(t *testing.T) {
	top := newTopology(t, engine.WithRegistry(testRegistry()))
	_, err := top.Make("/blocks/forwarder", "not a type")
	assert.Error(t, err)
	_, err = top.Make("/blocks/gain", "loud")
	assert.Error(t, err)
	_, err = top.Make("/blocks/throttle", "byte", -1.0)
	assert.Error(t, err)
	_, err = top.Make("/blocks/vector_source", "int16", []string{"a"})
	assert.Error(t, err)

	n, w := makeNode(t, top, "/blocks/vector_source", "int16", []any{int64(1), 2.0},
		[]any{map[string]any{"id": "a", "data": "x", "index": int64(1)}})
	assert.Equal(t, "/blocks/vector_source", n.Path())
	src := w.(*VectorSource)
	assert.Equal(t, 2, src.Remaining())
	require.Len(t, src.labels, 1)
	assert.Equal(t, "a", src.labels[0].ID)
}
