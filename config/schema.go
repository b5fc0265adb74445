package config

import (
	"errors"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

// schema constrains the decoded flowgraph. Cross references between
// blocks and connections are checked in Go.
const schema = `
#ID:       =~"^[A-Za-z_][A-Za-z0-9_.-]*$"
#Endpoint: =~"^[A-Za-z_][A-Za-z0-9_.-]*:[A-Za-z0-9_.-]+$"

#Link: {
	from: #Endpoint
	to:   #Endpoint
}

#Flowgraph: {
	graph: {
		name:        string & !=""
		"slab-size": int & >=64
		backlog:     int & >=0
		duration:    int & >=0
		"stats-db"?: string
	}
	blocks: [...{
		id:    #ID
		path:  =~"^/[^/].*$"
		args?: [...]
	}]
	connections?: [...#Link]
	signals?: [...#Link]
}
`

// Validate checks c against the flowgraph schema, then checks that ids
// are unique and every connection names a declared block.
func (c *Config) Validate() error {
	ctx := cuecontext.New()
	s := ctx.CompileString(schema)
	if err := s.Err(); err != nil {
		return fmt.Errorf("flowgraph schema: %w", err)
	}
	def := s.LookupPath(cue.ParsePath("#Flowgraph"))
	res := def.Unify(ctx.Encode(c.document()))
	if err := res.Validate(cue.Concrete(true)); err != nil {
		var msgs []error
		for _, e := range cueerrors.Errors(err) {
			msgs = append(msgs, errors.New(e.Error()))
		}
		return errors.Join(msgs...)
	}

	seen := make(map[string]bool, len(c.Blocks))
	for _, b := range c.Blocks {
		if seen[b.ID] {
			return fmt.Errorf("duplicate block id %q", b.ID)
		}
		seen[b.ID] = true
	}
	for _, group := range [][]Connection{c.Connections, c.Signals} {
		for _, conn := range group {
			for _, ep := range []string{conn.From, conn.To} {
				id, _, err := Endpoint(ep)
				if err != nil {
					return err
				}
				if !seen[id] {
					return fmt.Errorf("connection %s -> %s: unknown block %q", conn.From, conn.To, id)
				}
			}
		}
	}
	return nil
}

// document is the config as plain data, keyed the way files spell it.
func (c *Config) document() map[string]any {
	graph := map[string]any{
		"name":      c.Graph.Name,
		"slab-size": c.Graph.SlabSize,
		"backlog":   c.Graph.Backlog,
		"duration":  int64(c.Graph.Duration),
	}
	if c.Graph.StatsDB != "" {
		graph["stats-db"] = c.Graph.StatsDB
	}
	blocks := make([]any, len(c.Blocks))
	for i, b := range c.Blocks {
		m := map[string]any{"id": b.ID, "path": b.Path}
		if len(b.Args) > 0 {
			m["args"] = b.Args
		}
		blocks[i] = m
	}
	doc := map[string]any{"graph": graph, "blocks": blocks}
	if len(c.Connections) > 0 {
		doc["connections"] = links(c.Connections)
	}
	if len(c.Signals) > 0 {
		doc["signals"] = links(c.Signals)
	}
	return doc
}

func links(conns []Connection) []any {
	out := make([]any, len(conns))
	for i, c := range conns {
		out[i] = map[string]any{"from": c.From, "to": c.To}
	}
	return out
}
