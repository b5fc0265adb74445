package config

import (
	"context"
	"encoding/binary"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/chazu/blockbridge/blocks"
	"github.com/chazu/blockbridge/engine"
	"github.com/chazu/blockbridge/proxy"
)

func float32Bytes(vs ...float32) []byte {
	var out []byte
	for _, v := range vs {
		out = binary.NativeEndian.AppendUint32(out, math.Float32bits(v))
	}
	return out
}

func TestLoadTOML(t *testing.T) {
	c, err := Load("testdata/pipeline.toml")
	require.NoError(t, err)

	assert.Equal(t, "pipeline", c.Graph.Name)
	assert.Equal(t, 4096, c.Graph.SlabSize)
	assert.Equal(t, engine.DefaultBacklog, c.Graph.Backlog)
	assert.Equal(t, 250*time.Millisecond, c.Graph.Duration)
	assert.True(t, filepath.IsAbs(c.Path))

	require.Len(t, c.Blocks, 3)
	src, ok := c.Block("src")
	require.True(t, ok)
	assert.Equal(t, "/blocks/vector_source", src.Path)
	require.Len(t, src.Args, 2)
	assert.Equal(t, "float32", src.Args[0])
	assert.Len(t, c.Connections, 2)
}

func TestLoadYAML(t *testing.T) {
	c, err := Load("testdata/signals.yaml")
	require.NoError(t, err)
	assert.Equal(t, "signals", c.Graph.Name)
	assert.Equal(t, 8192, c.Graph.Backlog)
	assert.Equal(t, engine.DefaultSlabSize, c.Graph.SlabSize)
	assert.Equal(t, []Connection{{From: "src:done", To: "gain:setGain"}}, c.Signals)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("testdata/nope.toml")
	assert.ErrorContains(t, err, "cannot read")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BLOCKBRIDGE_GRAPH_NAME", "renamed")
	t.Setenv("BLOCKBRIDGE_DURATION", "3s")
	t.Setenv("BLOCKBRIDGE_STATS_DB", "stats.db")
	c, err := Load("testdata/pipeline.toml")
	require.NoError(t, err)
	assert.Equal(t, "renamed", c.Graph.Name)
	assert.Equal(t, 3*time.Second, c.Graph.Duration)
	assert.Equal(t, "stats.db", c.Graph.StatsDB)

	t.Setenv("BLOCKBRIDGE_SLAB_SIZE", "big")
	_, err = Load("testdata/pipeline.toml")
	assert.ErrorContains(t, err, "BLOCKBRIDGE_SLAB_SIZE")
}

func TestValidate(t *testing.T) {
	_, err := Load("testdata/bad_endpoint.toml")
	require.Error(t, err)

	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "relative path",
			doc:  "[[blocks]]\nid = \"a\"\npath = \"blocks/gain\"\n",
		},
		{
			name: "small slab",
			doc:  "[graph]\nslab-size = 8\n",
		},
		{
			name: "duplicate id",
			doc:  "[[blocks]]\nid = \"a\"\npath = \"/blocks/gain\"\n[[blocks]]\nid = \"a\"\npath = \"/blocks/gain\"\n",
			want: "duplicate block id",
		},
		{
			name: "unknown block",
			doc:  "[[blocks]]\nid = \"a\"\npath = \"/blocks/gain\"\n[[connections]]\nfrom = \"a:0\"\nto = \"b:0\"\n",
			want: "unknown block",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Parse([]byte(tt.doc), TOML)
			require.NoError(t, err)
			c.Graph.Name = "test"
			err = c.Validate()
			require.Error(t, err)
			if tt.want != "" {
				assert.ErrorContains(t, err, tt.want)
			}
		})
	}
}

func TestParseUnknownFormat(t *testing.T) {
	_, err := Parse(nil, Format("ini"))
	assert.Error(t, err)
}

func TestEndpoint(t *testing.T) {
	id, port, err := Endpoint("gain:0")
	require.NoError(t, err)
	assert.Equal(t, "gain", id)
	assert.Equal(t, "0", port)

	for _, bad := range []string{"gain", ":0", "gain:"} {
		_, _, err := Endpoint(bad)
		assert.Error(t, err, bad)
	}
}

func collected(t *testing.T, n *engine.Node) []byte {
	t.Helper()
	b, err := n.Block()
	require.NoError(t, err)
	p, err := b.Call("getBuffer")
	require.NoError(t, err)
	data, err := proxy.To[[]byte](p)
	require.NoError(t, err)
	return data
}

func TestBuildAndDrain(t *testing.T) {
	c, err := Load("testdata/pipeline.toml")
	require.NoError(t, err)
	g, err := c.Build(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Topology.Close() })

	assert.Equal(t, "gain", g.Nodes["gain"].Name())
	require.NoError(t, g.Topology.Activate())
	_, err = g.Topology.Drain(context.Background())
	require.NoError(t, err)
	require.NoError(t, g.Topology.Deactivate())

	assert.Equal(t, float32Bytes(2, 4, 6, 8), collected(t, g.Nodes["sink"]))
}

func TestBuildConnectsSignals(t *testing.T) {
	c, err := Load("testdata/signals.yaml")
	require.NoError(t, err)
	g, err := c.Build(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Topology.Close() })

	require.NoError(t, g.Topology.Activate())
	_, err = g.Topology.Drain(context.Background())
	require.NoError(t, err)

	// done carries the item count and reaches setGain before the gain
	// block sees the data
	b, err := g.Nodes["gain"].Block()
	require.NoError(t, err)
	p, err := b.Call("getGain")
	require.NoError(t, err)
	gain, err := proxy.To[float64](p)
	require.NoError(t, err)
	assert.Equal(t, 4.0, gain)
	assert.Equal(t, float32Bytes(4, 8, 12, 16), collected(t, g.Nodes["sink"]))
}

func TestBuildUnknownPath(t *testing.T) {
	c, err := Parse([]byte("[graph]\nname = \"x\"\n[[blocks]]\nid = \"a\"\npath = \"/blocks/nope\"\n"), TOML)
	require.NoError(t, err)
	_, err = c.Build(nil)
	assert.ErrorContains(t, err, "block a")
}
