// File path: internal/engine/engine_test.go
package engine

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopintel/queryweaver/internal/audit"
	"github.com/shopintel/queryweaver/internal/graphstore"
	"github.com/shopintel/queryweaver/internal/guard"
	"github.com/shopintel/queryweaver/internal/llm"
	"github.com/shopintel/queryweaver/internal/registry"
	"github.com/shopintel/queryweaver/internal/relational"
)

type fakeRelational struct {
	rows    []relational.Row
	err     error
	calls   int
	lastSQL string
	lastArg []interface{}
}

func (f *fakeRelational) Query(ctx context.Context, sql string, args ...interface{}) ([]relational.Row, error) {
	f.calls++
	f.lastSQL = sql
	f.lastArg = args
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

type fakeGraph struct {
	result     graphstore.Result
	err        error
	calls      int
	lastCypher string
}

func (f *fakeGraph) Query(ctx context.Context, cypher string) (graphstore.Result, error) {
	f.calls++
	f.lastCypher = cypher
	if f.err != nil {
		return graphstore.Result{}, f.err
	}
	return f.result, nil
}

type fakeProvider struct {
	responses []string
	err       error
	calls     int
	lastUser  string
}

func (f *fakeProvider) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	f.calls++
	f.lastUser = req.User
	if f.err != nil {
		return "", f.err
	}
	idx := f.calls - 1
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	return f.responses[idx], nil
}

func (f *fakeProvider) Name() string { return "fake" }

func newTestEngine(t *testing.T, rel Relational, graph Graph, provider llm.Provider) (*Engine, string) {
	t.Helper()
	dir := t.TempDir()
	recorder, err := audit.NewRecorder(dir)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	cfg := registry.Config{Routes: registry.DefaultRoutes()}
	cfg.MaxGraphDepth = 3
	cfg.LLMRetries = 2
	eng, err := New(cfg, rel, graph, provider, recorder)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return eng, dir
}

func auditRecords(t *testing.T, dir string) []audit.Record {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "audit_*.jsonl"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	var records []audit.Record
	for _, path := range matches {
		f, err := os.Open(path)
		if err != nil {
			t.Fatalf("open %s: %v", path, err)
		}
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			var r audit.Record
			if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
				t.Fatalf("unmarshal audit line: %v", err)
			}
			records = append(records, r)
		}
		f.Close()
	}
	return records
}

func TestHandleBlockedOperationsScenario(t *testing.T) {
	rel := &fakeRelational{rows: []relational.Row{
		{"job_num": "J26-00004", "assembly_id": int64(101), "missing_without_stock_count": int64(2)},
	}}
	eng, _ := newTestEngine(t, rel, &fakeGraph{}, nil)

	resp, err := eng.Handle(context.Background(), "Which operations are blocked due to missing tools?", nil)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if resp.Route != "blocked_operations_missing_tools" {
		t.Fatalf("route = %s", resp.Route)
	}
	if resp.Strategy != string(registry.StrategyRelationalOnly) {
		t.Fatalf("strategy = %s", resp.Strategy)
	}
	if len(resp.Data) != 1 {
		t.Fatalf("rows = %d", len(resp.Data))
	}
	for _, field := range []string{"job_num", "assembly_id", "missing_without_stock_count"} {
		if _, ok := resp.Data[0][field]; !ok {
			t.Errorf("row missing field %s", field)
		}
	}
	if len(rel.lastArg) != 0 {
		t.Fatalf("unexpected args: %v", rel.lastArg)
	}
}

func TestHandleToolUsageScenario(t *testing.T) {
	rel := &fakeRelational{rows: []relational.Row{{"job_num": "J26-00010", "assembly_id": int64(7)}}}
	graph := &fakeGraph{result: graphstore.Result{Header: []string{"job_num", "operation_key", "machine"}}}
	eng, _ := newTestEngine(t, rel, graph, nil)

	resp, err := eng.Handle(context.Background(), "Show tool usage for job J26-00010", nil)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if resp.Route != registry.JobRouteID {
		t.Fatalf("route = %s, want %s", resp.Route, registry.JobRouteID)
	}
	// The relational query is parameterized with the single normalized value.
	if len(rel.lastArg) != 1 || rel.lastArg[0] != "J26-00010" {
		t.Fatalf("args = %v, want [J26-00010]", rel.lastArg)
	}
	if resp.Graph == nil {
		t.Fatal("graph result expected for hybrid strategy")
	}
	if !strings.Contains(graph.lastCypher, `{JobNum: "J26-00010"}`) {
		t.Fatalf("cypher arg not substituted: %s", graph.lastCypher)
	}
}

func TestHandleHybridMissingJobIsFatal(t *testing.T) {
	eng, _ := newTestEngine(t, &fakeRelational{}, &fakeGraph{}, nil)
	_, err := eng.Handle(context.Background(), "show me the tool usage breakdown", nil)
	if !errors.Is(err, ErrMissingParameter) {
		t.Fatalf("err = %v, want ErrMissingParameter", err)
	}
}

func TestHandleHybridGraphFailureIsFatal(t *testing.T) {
	rel := &fakeRelational{rows: []relational.Row{{"job_num": "J26-00010"}}}
	graph := &fakeGraph{err: fmt.Errorf("graph down")}
	eng, _ := newTestEngine(t, rel, graph, nil)
	if _, err := eng.Handle(context.Background(), "Show tool usage for job J26-00010", nil); err == nil {
		t.Fatal("hybrid graph failure should be fatal")
	}
}

func TestHandleOptionalGraphFailureDegrades(t *testing.T) {
	rel := &fakeRelational{rows: []relational.Row{
		{"assembly_id": int64(101), "machine_code": "M-01"},
		{"assembly_id": int64(102), "machine_code": "M-02"},
	}}
	graph := &fakeGraph{err: errors.New("connection refused")}
	eng, dir := newTestEngine(t, rel, graph, nil)

	resp, err := eng.Handle(context.Background(), "What tools are missing for the next shift per machine?",
		map[string]interface{}{"shift_name": "NEXT"})
	if err != nil {
		t.Fatalf("enrichment failure must not fail the request: %v", err)
	}
	if resp.Alternates != nil {
		t.Fatalf("alternates = %+v, want nil", resp.Alternates)
	}
	if len(resp.Data) != 2 {
		t.Fatalf("relational rows lost: %d", len(resp.Data))
	}
	if graph.calls != 1 {
		t.Fatalf("graph calls = %d, want 1", graph.calls)
	}
	records := auditRecords(t, dir)
	if len(records) != 1 || records[0].Error != "" {
		t.Fatalf("degraded request must audit as success: %+v", records)
	}
}

func TestHandleOptionalGraphSuccess(t *testing.T) {
	rel := &fakeRelational{rows: []relational.Row{
		{"assembly_id": int64(101)},
		{"assembly_id": int64(102)},
		{"assembly_id": int64(101)}, // duplicate
		{"assembly_id": "not-a-number"},
	}}
	graph := &fakeGraph{result: graphstore.Result{
		Header: []string{"assembly_id", "alternate_assembly_ids"},
		Rows:   [][]interface{}{{int64(101), []interface{}{int64(900)}}},
	}}
	eng, _ := newTestEngine(t, rel, graph, nil)

	resp, err := eng.Handle(context.Background(), "What tools are missing for the next shift?", nil)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if resp.Alternates == nil {
		t.Fatal("alternates missing on success")
	}
	if !strings.Contains(graph.lastCypher, "IN [101,102]") {
		t.Fatalf("dedup ids not substituted: %s", graph.lastCypher)
	}
	if !strings.Contains(graph.lastCypher, "*1..3]") {
		t.Fatalf("depth not clamped to ceiling: %s", graph.lastCypher)
	}
}

func TestHandleOptionalGraphSkippedWhenNoIDs(t *testing.T) {
	rel := &fakeRelational{rows: []relational.Row{{"machine_code": "M-01"}}}
	graph := &fakeGraph{}
	eng, _ := newTestEngine(t, rel, graph, nil)

	resp, err := eng.Handle(context.Background(), "What tools are missing for the next shift?", nil)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if graph.calls != 0 {
		t.Fatalf("graph called with empty id set")
	}
	if resp.Alternates != nil {
		t.Fatal("alternates should be nil on empty input")
	}
}

func TestHandleWriteQuestionAuditedWithoutRoute(t *testing.T) {
	rel := &fakeRelational{}
	eng, dir := newTestEngine(t, rel, &fakeGraph{}, nil)

	_, err := eng.Handle(context.Background(), "DELETE all jobs", nil)
	if !errors.Is(err, guard.ErrReadOnlyViolation) {
		t.Fatalf("err = %v, want ErrReadOnlyViolation", err)
	}
	if rel.calls != 0 {
		t.Fatal("a query executed for a write-intent question")
	}
	records := auditRecords(t, dir)
	if len(records) != 1 {
		t.Fatalf("audit records = %d, want 1", len(records))
	}
	if records[0].Error == "" || records[0].Route != "" {
		t.Fatalf("audit record = %+v, want error set and no route", records[0])
	}
}

func TestHandleQuestionLengthBounds(t *testing.T) {
	eng, _ := newTestEngine(t, &fakeRelational{}, &fakeGraph{}, nil)
	if _, err := eng.Handle(context.Background(), "hi", nil); !errors.Is(err, ErrInvalidQuestion) {
		t.Fatalf("short question err = %v", err)
	}
	long := strings.Repeat("a", 2001)
	if _, err := eng.Handle(context.Background(), long, nil); !errors.Is(err, ErrInvalidQuestion) {
		t.Fatalf("long question err = %v", err)
	}
}

func TestExecuteUnsupportedStrategy(t *testing.T) {
	eng, _ := newTestEngine(t, &fakeRelational{}, &fakeGraph{}, nil)
	route := registry.Route{ID: "bogus", Strategy: registry.Strategy("graph_only"), SQLTemplate: "general_operations_summary"}
	_, err := eng.execute(context.Background(), route, "question", nil, &audit.Record{})
	if !errors.Is(err, ErrUnsupportedStrategy) {
		t.Fatalf("err = %v, want ErrUnsupportedStrategy", err)
	}
}

func TestCollectAssemblyIDs(t *testing.T) {
	rows := []relational.Row{
		{"assembly_id": int64(3)},
		{"assembly_id": float64(4)},
		{"assembly_id": "5"},
		{"assembly_id": []byte("6")},
		{"assembly_id": int64(3)}, // duplicate
		{"assembly_id": "seven"}, // non-numeric
		{"other": int64(8)},
	}
	ids := collectAssemblyIDs(rows, 200)
	want := []int64{3, 4, 5, 6}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ids = %v, want %v", ids, want)
		}
	}

	var many []relational.Row
	for i := 0; i < 500; i++ {
		many = append(many, relational.Row{"assembly_id": int64(i)})
	}
	if got := collectAssemblyIDs(many, registry.MaxAlternateIDs); len(got) != registry.MaxAlternateIDs {
		t.Fatalf("cap not applied: %d", len(got))
	}
}

func TestAlternateIDCap(t *testing.T) {
	eng, _ := newTestEngine(t, &fakeRelational{}, &fakeGraph{}, nil)

	cases := []struct {
		batchSize int
		want      int
	}{
		{0, registry.MaxAlternateIDs},
		{50, 50},
		{500, registry.MaxAlternateIDs}, // may only tighten
	}
	for _, tc := range cases {
		eng.cfg.BatchSize = tc.batchSize
		if got := eng.alternateIDCap(); got != tc.want {
			t.Errorf("batch %d: cap = %d, want %d", tc.batchSize, got, tc.want)
		}
	}
}
