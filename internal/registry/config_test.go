// File path: internal/registry/config_test.go
package registry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("QW_ROUTING_CONFIG", "")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.MaxSQLRows != 1000 || cfg.SQLTimeoutSeconds != 10 || cfg.GraphTimeoutMS != 5000 {
		t.Fatalf("limit defaults wrong: %+v", cfg)
	}
	if cfg.MaxGraphDepth != 3 || cfg.LLMRetries != 2 || cfg.BatchSize != 200 {
		t.Fatalf("defaults wrong: %+v", cfg)
	}
	if len(cfg.Routes) == 0 || cfg.Routes[len(cfg.Routes)-1].ID != "general_query" {
		t.Fatalf("default routes missing catch-all: %+v", cfg.Routes)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("QW_ROUTING_CONFIG", "")
	t.Setenv("QW_MAX_SQL_ROWS", "50")
	t.Setenv("QW_GRAPH_TIMEOUT_MS", "1234")
	t.Setenv("QW_MAX_GRAPH_DEPTH", "9")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.MaxSQLRows != 50 || cfg.GraphTimeoutMS != 1234 {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	// Depth is clamped to the hard ceiling regardless of configuration.
	if cfg.MaxGraphDepth != 3 {
		t.Fatalf("depth not clamped: %d", cfg.MaxGraphDepth)
	}
}

func TestLoadConfigInvalidEnv(t *testing.T) {
	t.Setenv("QW_ROUTING_CONFIG", "")
	t.Setenv("QW_MAX_SQL_ROWS", "many")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("invalid env value accepted")
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "routing.json")
	fileCfg := Config{
		Routes: []Route{
			{ID: "magazine", Match: []string{"magazine"}, Strategy: StrategyRelationalOnly, SQLTemplate: "machines_loaded_magazine"},
			{ID: "general_query", Strategy: StrategyRelationalOnly, SQLTemplate: "general_operations_summary"},
		},
		ExtraWriteVerbs: []string{"remove", "erase"},
		MaxSQLRows:      25,
	}
	data, err := json.Marshal(fileCfg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("QW_ROUTING_CONFIG", path)
	t.Setenv("QW_MAX_SQL_ROWS", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if len(cfg.Routes) != 2 || cfg.Routes[0].ID != "magazine" {
		t.Fatalf("file routes not loaded: %+v", cfg.Routes)
	}
	if cfg.MaxSQLRows != 25 {
		t.Fatalf("file limit not loaded: %d", cfg.MaxSQLRows)
	}
	if len(cfg.ExtraWriteVerbs) != 2 {
		t.Fatalf("extra verbs not loaded: %v", cfg.ExtraWriteVerbs)
	}
	if _, err := New(cfg.Routes); err != nil {
		t.Fatalf("loaded routes invalid: %v", err)
	}
}

func TestCypherTemplatesRenderSafeArgs(t *testing.T) {
	alt, ok := Cypher("tool_alternatives_for_missing_assemblies")
	if !ok {
		t.Fatal("template missing")
	}
	rendered := alt("101,102", 5)
	if !strings.Contains(rendered, "IN [101,102]") {
		t.Fatalf("ids not substituted: %s", rendered)
	}
	// Depth requested above the ceiling renders at the ceiling.
	if !strings.Contains(rendered, "*1..3]") {
		t.Fatalf("depth not clamped in template: %s", rendered)
	}

	chain, ok := Cypher("job_operation_machine_chain")
	if !ok {
		t.Fatal("template missing")
	}
	if got := chain("J26-00010", 0); !strings.Contains(got, `{JobNum: "J26-00010"}`) {
		t.Fatalf("job chain render: %s", got)
	}
}

func TestSQLTemplatesKnown(t *testing.T) {
	for _, name := range []string{
		"missing_tools_next_shift",
		"blocked_operations_missing_tools",
		"tool_usage_for_job",
		"machines_loaded_magazine",
		"compare_nc_vs_required",
		"general_operations_summary",
	} {
		if _, ok := SQL(name); !ok {
			t.Errorf("missing sql template %s", name)
		}
	}
}
