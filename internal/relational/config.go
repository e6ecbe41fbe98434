// File path: internal/relational/config.go
package relational

import (
	"os"
	"strings"
	"time"
)

// Config captures connection options for the Postgres fact store.
type Config struct {
	URL                     string
	MaxOpenConns            int
	MaxIdleConns            int
	ConnMaxLifetime         time.Duration
	ConnectTimeout          time.Duration
	StatementTimeoutSeconds int
	MaxRows                 int
}

// LoadConfig reads the connection string from POSTGRES_URL; limits come from
// the routing config and are overlaid by the caller.
func LoadConfig() Config {
	cfg := Config{URL: strings.TrimSpace(os.Getenv("POSTGRES_URL"))}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero values with the standard pool settings.
func (c *Config) ApplyDefaults() {
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 10
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = 5
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = 30 * time.Minute
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.StatementTimeoutSeconds <= 0 {
		c.StatementTimeoutSeconds = 10
	}
	if c.MaxRows <= 0 {
		c.MaxRows = 1000
	}
}
