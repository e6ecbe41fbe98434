// File path: internal/registry/config.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config captures the routing rule set plus the execution limits consumed by
// the engine. Loaded once at startup; read-only afterward.
type Config struct {
	Routes          []Route  `json:"routing"`
	ExtraWriteVerbs []string `json:"extra_write_verbs,omitempty"`

	MaxSQLRows        int `json:"max_sql_rows"`
	SQLTimeoutSeconds int `json:"sql_timeout_seconds"`
	GraphTimeoutMS    int `json:"graph_timeout_ms"`
	MaxGraphDepth     int `json:"max_graph_depth"`
	LLMRetries        int `json:"llm_retries"`
	BatchSize         int `json:"batch_size"`
}

// DefaultRoutes is the built-in rule set, ordered most specific first; the
// final entry is the keywordless catch-all.
func DefaultRoutes() []Route {
	return []Route{
		{
			ID:          "blocked_operations_missing_tools",
			Match:       []string{"blocked"},
			Strategy:    StrategyRelationalOnly,
			SQLTemplate: "blocked_operations_missing_tools",
		},
		{
			ID:             "missing_tools_next_shift",
			Match:          []string{"missing", "tool"},
			Strategy:       StrategyRelationalThenGraph,
			SQLTemplate:    "missing_tools_next_shift",
			CypherTemplate: "tool_alternatives_for_missing_assemblies",
		},
		{
			ID:             JobRouteID,
			Match:          []string{"tool usage"},
			Strategy:       StrategyGraphAndRelational,
			SQLTemplate:    "tool_usage_for_job",
			CypherTemplate: "job_operation_machine_chain",
		},
		{
			ID:          "machines_loaded_magazine",
			Match:       []string{"magazine"},
			Strategy:    StrategyRelationalOnly,
			SQLTemplate: "machines_loaded_magazine",
		},
		{
			ID:          "compare_nc_vs_required",
			Match:       []string{"nc", "required"},
			Strategy:    StrategyRelationalOnly,
			SQLTemplate: "compare_nc_vs_required",
		},
		{
			ID:          "general_query",
			Match:       nil,
			Strategy:    StrategyRelationalOnly,
			SQLTemplate: "general_operations_summary",
		},
	}
}

// LoadConfig reads the routing config file named by QW_ROUTING_CONFIG if
// present and then applies environment variable overrides for the limits.
func LoadConfig() (Config, error) {
	cfg := Config{}
	if path := strings.TrimSpace(os.Getenv("QW_ROUTING_CONFIG")); path != "" {
		fileCfg, err := loadFromFile(path)
		if err != nil {
			return Config{}, err
		}
		cfg = fileCfg
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if len(c.Routes) == 0 {
		c.Routes = DefaultRoutes()
	}
	if c.MaxSQLRows <= 0 {
		c.MaxSQLRows = 1000
	}
	if c.SQLTimeoutSeconds <= 0 {
		c.SQLTimeoutSeconds = 10
	}
	if c.GraphTimeoutMS <= 0 {
		c.GraphTimeoutMS = 5000
	}
	if c.MaxGraphDepth <= 0 {
		c.MaxGraphDepth = MaxGraphDepth
	}
	c.MaxGraphDepth = ClampDepth(c.MaxGraphDepth)
	if c.LLMRetries <= 0 {
		c.LLMRetries = 2
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 200
	}
}

func (c *Config) applyEnv() error {
	overrides := []struct {
		env    string
		target *int
	}{
		{"QW_MAX_SQL_ROWS", &c.MaxSQLRows},
		{"QW_SQL_TIMEOUT_SECONDS", &c.SQLTimeoutSeconds},
		{"QW_GRAPH_TIMEOUT_MS", &c.GraphTimeoutMS},
		{"QW_MAX_GRAPH_DEPTH", &c.MaxGraphDepth},
		{"QW_LLM_RETRIES", &c.LLMRetries},
		{"QW_BATCH_SIZE", &c.BatchSize},
	}
	for _, o := range overrides {
		raw := strings.TrimSpace(os.Getenv(o.env))
		if raw == "" {
			continue
		}
		value, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("parse %s: %w", o.env, err)
		}
		if value > 0 {
			*o.target = value
		}
	}
	return nil
}

func loadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("read routing config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse routing config: %w", err)
	}
	return cfg, nil
}
