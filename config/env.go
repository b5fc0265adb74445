package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// EnvPrefix prefixes the variables Load consults.
const EnvPrefix = "BLOCKBRIDGE"

// ApplyEnv overrides graph settings from prefix_GRAPH_NAME,
// prefix_SLAB_SIZE, prefix_BACKLOG, prefix_DURATION and prefix_STATS_DB.
func (c *Config) ApplyEnv(prefix string) error {
	if val := os.Getenv(prefix + "_GRAPH_NAME"); val != "" {
		c.Graph.Name = val
	}
	if val := os.Getenv(prefix + "_SLAB_SIZE"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("%s_SLAB_SIZE: %w", prefix, err)
		}
		c.Graph.SlabSize = n
	}
	if val := os.Getenv(prefix + "_BACKLOG"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("%s_BACKLOG: %w", prefix, err)
		}
		c.Graph.Backlog = n
	}
	if val := os.Getenv(prefix + "_DURATION"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("%s_DURATION: %w", prefix, err)
		}
		c.Graph.Duration = d
	}
	if val := os.Getenv(prefix + "_STATS_DB"); val != "" {
		c.Graph.StatsDB = val
	}
	return nil
}
