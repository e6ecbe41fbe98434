// File path: internal/graphstore/config.go
package graphstore

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures connection options for the FalkorDB graph store.
type Config struct {
	Addr      string
	Password  string
	DB        int
	GraphName string
	Timeout   time.Duration
}

// LoadConfig reads FALKOR_ADDR / FALKOR_PASSWORD / FALKOR_DB / GRAPH_NAME;
// the per-call timeout comes from the routing config and is overlaid by the
// caller.
func LoadConfig() Config {
	cfg := Config{
		Addr:      strings.TrimSpace(os.Getenv("FALKOR_ADDR")),
		Password:  os.Getenv("FALKOR_PASSWORD"),
		GraphName: strings.TrimSpace(os.Getenv("GRAPH_NAME")),
	}
	if raw := strings.TrimSpace(os.Getenv("FALKOR_DB")); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value >= 0 {
			cfg.DB = value
		}
	}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.GraphName == "" {
		c.GraphName = "shop_intelligence"
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
}
