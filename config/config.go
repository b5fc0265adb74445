// Package config loads flowgraph descriptions from TOML or YAML files.
//
// A flowgraph names its blocks by registry path and wires them by
// "id:port" endpoints:
//
//	[graph]
//	name = "tone"
//	duration = "2s"
//
//	[[blocks]]
//	id = "src"
//	path = "/blocks/vector_source"
//	args = ["float32", [1.0, 2.0, 3.0]]
//
//	[[connections]]
//	from = "src:0"
//	to = "sink:0"
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/chazu/blockbridge/engine"
)

// Config is one flowgraph.
type Config struct {
	Graph       Graph        `toml:"graph" yaml:"graph"`
	Blocks      []Block      `toml:"blocks" yaml:"blocks"`
	Connections []Connection `toml:"connections" yaml:"connections"`
	Signals     []Connection `toml:"signals" yaml:"signals"`

	// Path is the file the config was loaded from (set at load time).
	Path string `toml:"-" yaml:"-"`
}

// Graph holds flowgraph-wide settings.
type Graph struct {
	Name     string        `toml:"name" yaml:"name"`
	SlabSize int           `toml:"slab-size" yaml:"slab-size"`
	Backlog  int           `toml:"backlog" yaml:"backlog"`
	Duration time.Duration `toml:"duration" yaml:"duration"`
	StatsDB  string        `toml:"stats-db" yaml:"stats-db"`
}

// Block instantiates the block registered at Path under the name ID.
type Block struct {
	ID   string `toml:"id" yaml:"id"`
	Path string `toml:"path" yaml:"path"`
	Args []any  `toml:"args" yaml:"args"`
}

// Connection wires From to To. Stream connections name ports, signal
// connections name a signal and a slot.
type Connection struct {
	From string `toml:"from" yaml:"from"`
	To   string `toml:"to" yaml:"to"`
}

// Endpoint splits "id:port".
func Endpoint(s string) (id, port string, err error) {
	id, port, ok := strings.Cut(s, ":")
	if !ok || id == "" || port == "" {
		return "", "", fmt.Errorf("endpoint %q is not id:port", s)
	}
	return id, port, nil
}

// Format is a config file syntax.
type Format string

const (
	TOML Format = "toml"
	YAML Format = "yaml"
)

// FormatOf picks the format from a file extension. Anything that is not
// YAML is read as TOML.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML
	}
	return TOML
}

// Load reads, validates and completes the flowgraph at path.
// BLOCKBRIDGE_* environment variables override the graph settings.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	c, err := Parse(data, FormatOf(path))
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	c.Path, err = filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}
	if c.Graph.Name == "" {
		c.Graph.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := c.ApplyEnv(EnvPrefix); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flowgraph %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes data and applies defaults. It does not validate.
func Parse(data []byte, f Format) (*Config, error) {
	var c Config
	switch f {
	case YAML:
		if err := yaml.Unmarshal(data, &c); err != nil {
			return nil, err
		}
	case TOML:
		if err := toml.Unmarshal(data, &c); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown config format %q", f)
	}
	c.defaults()
	return &c, nil
}

func (c *Config) defaults() {
	if c.Graph.SlabSize == 0 {
		c.Graph.SlabSize = engine.DefaultSlabSize
	}
	if c.Graph.Backlog == 0 {
		c.Graph.Backlog = engine.DefaultBacklog
	}
}

// Block returns the block with the given id.
func (c *Config) Block(id string) (Block, bool) {
	for _, b := range c.Blocks {
		if b.ID == id {
			return b, true
		}
	}
	return Block{}, false
}
