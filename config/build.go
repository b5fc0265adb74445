package config

import (
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/chazu/blockbridge/engine"
)

var log = commonlog.GetLogger("blockbridge.config")

// Built is a topology built from a Config, with its nodes by block id.
type Built struct {
	Topology *engine.Topology
	Nodes    map[string]*engine.Node
}

// Build instantiates every block from reg (engine.DefaultRegistry when
// nil), names each node after its block id and makes the connections.
// On failure the partly built topology is closed.
func (c *Config) Build(reg *engine.Registry, opts ...engine.Option) (*Built, error) {
	if reg == nil {
		reg = engine.DefaultRegistry
	}
	opts = append([]engine.Option{
		engine.WithRegistry(reg),
		engine.WithSlabSize(c.Graph.SlabSize),
		engine.WithBacklog(c.Graph.Backlog),
	}, opts...)
	t := engine.NewTopology(opts...)
	b := &Built{Topology: t, Nodes: make(map[string]*engine.Node, len(c.Blocks))}
	if err := c.build(b); err != nil {
		if cerr := t.Close(); cerr != nil {
			log.Errorf("closing %s: %s", c.Graph.Name, cerr)
		}
		return nil, err
	}
	log.Infof("built %s: %d blocks, %d connections", c.Graph.Name, len(c.Blocks), len(c.Connections))
	return b, nil
}

func (c *Config) build(b *Built) error {
	for _, blk := range c.Blocks {
		n, err := b.Topology.Make(blk.Path, blk.Args...)
		if err != nil {
			return fmt.Errorf("block %s (%s): %w", blk.ID, blk.Path, err)
		}
		n.SetName(blk.ID)
		if base, err := n.Block(); err == nil {
			if err := base.SetName(blk.ID); err != nil {
				return fmt.Errorf("block %s: %w", blk.ID, err)
			}
		}
		b.Nodes[blk.ID] = n
	}
	for _, conn := range c.Connections {
		src, srcPort, dst, dstPort, err := b.endpoints(conn)
		if err != nil {
			return err
		}
		if err := b.Topology.Connect(src, srcPort, dst, dstPort); err != nil {
			return fmt.Errorf("connect %s -> %s: %w", conn.From, conn.To, err)
		}
	}
	for _, conn := range c.Signals {
		src, signal, dst, slot, err := b.endpoints(conn)
		if err != nil {
			return err
		}
		if err := b.Topology.ConnectSignal(src, signal, dst, slot); err != nil {
			return fmt.Errorf("connect signal %s -> %s: %w", conn.From, conn.To, err)
		}
	}
	return nil
}

func (b *Built) endpoints(conn Connection) (src *engine.Node, srcPort string, dst *engine.Node, dstPort string, err error) {
	srcID, srcPort, err := Endpoint(conn.From)
	if err != nil {
		return nil, "", nil, "", err
	}
	dstID, dstPort, err := Endpoint(conn.To)
	if err != nil {
		return nil, "", nil, "", err
	}
	src, ok := b.Nodes[srcID]
	if !ok {
		return nil, "", nil, "", fmt.Errorf("unknown block %q", srcID)
	}
	dst, ok = b.Nodes[dstID]
	if !ok {
		return nil, "", nil, "", fmt.Errorf("unknown block %q", dstID)
	}
	return src, srcPort, dst, dstPort, nil
}
