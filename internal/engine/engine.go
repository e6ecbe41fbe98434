// File path: internal/engine/engine.go
package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopintel/queryweaver/internal/audit"
	"github.com/shopintel/queryweaver/internal/common"
	"github.com/shopintel/queryweaver/internal/common/telemetry"
	"github.com/shopintel/queryweaver/internal/graphstore"
	"github.com/shopintel/queryweaver/internal/guard"
	"github.com/shopintel/queryweaver/internal/llm"
	"github.com/shopintel/queryweaver/internal/params"
	"github.com/shopintel/queryweaver/internal/registry"
	"github.com/shopintel/queryweaver/internal/relational"
)

const (
	minQuestionLen = 3
	maxQuestionLen = 2000
)

// Relational executes one read-only SQL statement.
type Relational interface {
	Query(ctx context.Context, sql string, args ...interface{}) ([]relational.Row, error)
}

// Graph executes one read-only Cypher statement.
type Graph interface {
	Query(ctx context.Context, cypher string) (graphstore.Result, error)
}

// TemplateResponse is the result of the template path.
type TemplateResponse struct {
	Route      string             `json:"route"`
	Strategy   string             `json:"strategy"`
	Data       []relational.Row   `json:"data"`
	Graph      *graphstore.Result `json:"graph,omitempty"`
	Alternates *graphstore.Result `json:"alternates"`
}

// Engine routes questions to pre-approved templates and executes them.
// Routes, templates and limits are read-only after construction; every
// request is handled independently.
type Engine struct {
	cfg        registry.Config
	registry   *registry.Registry
	selector   *registry.Selector
	guard      *guard.Guard
	relational Relational
	graph      Graph
	provider   llm.Provider
	recorder   *audit.Recorder
}

// New wires the engine from explicit dependencies; nothing is held in
// package-level state.
func New(cfg registry.Config, rel Relational, graph Graph, provider llm.Provider, recorder *audit.Recorder) (*Engine, error) {
	reg, err := registry.New(cfg.Routes)
	if err != nil {
		return nil, err
	}
	g, err := guard.New(cfg.ExtraWriteVerbs)
	if err != nil {
		return nil, err
	}
	if rel == nil {
		return nil, fmt.Errorf("relational executor required")
	}
	return &Engine{
		cfg:        cfg,
		registry:   reg,
		selector:   registry.NewSelector(reg, g),
		guard:      g,
		relational: rel,
		graph:      graph,
		provider:   provider,
		recorder:   recorder,
	}, nil
}

// Handle answers a question over the template path. Exactly one audit record
// is written, on success and on failure alike.
func (e *Engine) Handle(ctx context.Context, question string, parameters map[string]interface{}) (*TemplateResponse, error) {
	logger := common.Logger()
	start := time.Now()
	record := audit.Record{RequestID: audit.NewRequestID(), Question: question, Params: parameters}
	defer func() {
		record.DurationMS = time.Since(start).Milliseconds()
		e.recorder.Write(record)
	}()

	if err := validateQuestion(question); err != nil {
		record.Error = err.Error()
		return nil, err
	}
	route, err := e.selector.Select(question, parameters)
	if err != nil {
		record.Error = err.Error()
		return nil, err
	}
	record.Route = route.ID
	record.Strategy = string(route.Strategy)
	telemetry.RecordRoute(route.ID)
	logger.Info("engine: route selected", "route", route.ID, "strategy", route.Strategy)

	resp, err := e.execute(ctx, route, question, parameters, &record)
	if err != nil {
		record.Error = err.Error()
		return nil, err
	}
	record.RowCount = len(resp.Data)
	return resp, nil
}

func (e *Engine) execute(ctx context.Context, route registry.Route, question string, parameters map[string]interface{}, record *audit.Record) (*TemplateResponse, error) {
	switch route.Strategy {
	case registry.StrategyRelationalOnly:
		return e.runRelationalOnly(ctx, route, question, parameters, record)
	case registry.StrategyGraphAndRelational:
		return e.runGraphAndRelational(ctx, route, question, parameters, record)
	case registry.StrategyRelationalThenGraph:
		return e.runRelationalThenOptionalGraph(ctx, route, parameters, record)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedStrategy, route.Strategy)
	}
}

func (e *Engine) runRelationalOnly(ctx context.Context, route registry.Route, question string, parameters map[string]interface{}, record *audit.Record) (*TemplateResponse, error) {
	sql, args, err := e.bindTemplate(route, question, parameters)
	if err != nil {
		return nil, err
	}
	record.SQLExecuted = sql
	rows, err := e.relational.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return &TemplateResponse{Route: route.ID, Strategy: string(route.Strategy), Data: rows}, nil
}

func (e *Engine) runGraphAndRelational(ctx context.Context, route registry.Route, question string, parameters map[string]interface{}, record *audit.Record) (*TemplateResponse, error) {
	jobNum := params.JobNum(parameters, question)
	if jobNum == "" {
		return nil, fmt.Errorf("%w: job_num", ErrMissingParameter)
	}
	sql, ok := registry.SQL(route.SQLTemplate)
	if !ok {
		return nil, fmt.Errorf("missing sql template %s", route.SQLTemplate)
	}
	record.SQLExecuted = sql
	rows, err := e.relational.Query(ctx, sql, jobNum)
	if err != nil {
		return nil, err
	}

	tmpl, ok := registry.Cypher(route.CypherTemplate)
	if !ok {
		return nil, fmt.Errorf("missing cypher template %s", route.CypherTemplate)
	}
	cypher := tmpl(guard.SanitizeArgument(jobNum), 0)
	record.CypherRun = cypher
	graphRes, err := e.graphQuery(ctx, cypher)
	if err != nil {
		return nil, err
	}
	return &TemplateResponse{Route: route.ID, Strategy: string(route.Strategy), Data: rows, Graph: &graphRes}, nil
}

// runRelationalThenOptionalGraph is the only sanctioned partial-failure
// path: the enrichment step may fail without failing the request.
func (e *Engine) runRelationalThenOptionalGraph(ctx context.Context, route registry.Route, parameters map[string]interface{}, record *audit.Record) (*TemplateResponse, error) {
	sql, ok := registry.SQL(route.SQLTemplate)
	if !ok {
		return nil, fmt.Errorf("missing sql template %s", route.SQLTemplate)
	}
	record.SQLExecuted = sql
	args := []interface{}{nullableArg(params.ShiftName(parameters))}
	rows, err := e.relational.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}

	resp := &TemplateResponse{Route: route.ID, Strategy: string(route.Strategy), Data: rows, Alternates: nil}
	if route.CypherTemplate == "" {
		return resp, nil
	}
	ids := collectAssemblyIDs(rows, e.alternateIDCap())
	if len(ids) == 0 {
		return resp, nil
	}
	tmpl, ok := registry.Cypher(route.CypherTemplate)
	if !ok {
		return resp, nil
	}
	cypher := tmpl(joinIDs(ids), registry.ClampDepth(e.cfg.MaxGraphDepth))
	record.CypherRun = cypher
	graphRes, err := e.graphQuery(ctx, cypher)
	if err != nil {
		common.Logger().Warn("engine: optional graph enrichment failed", "route", route.ID, "error", err)
		return resp, nil
	}
	resp.Alternates = &graphRes
	return resp, nil
}

func (e *Engine) bindTemplate(route registry.Route, question string, parameters map[string]interface{}) (string, []interface{}, error) {
	sql, ok := registry.SQL(route.SQLTemplate)
	if !ok {
		return "", nil, fmt.Errorf("missing sql template %s", route.SQLTemplate)
	}
	switch route.SQLTemplate {
	case "tool_usage_for_job":
		jobNum := params.JobNum(parameters, question)
		if jobNum == "" {
			return "", nil, fmt.Errorf("%w: job_num", ErrMissingParameter)
		}
		return sql, []interface{}{jobNum}, nil
	case "missing_tools_next_shift":
		return sql, []interface{}{nullableArg(params.ShiftName(parameters))}, nil
	default:
		return sql, nil, nil
	}
}

// alternateIDCap bounds the id set handed to the enrichment traversal; the
// configured batch size may only tighten the built-in ceiling.
func (e *Engine) alternateIDCap() int {
	if e.cfg.BatchSize > 0 && e.cfg.BatchSize < registry.MaxAlternateIDs {
		return e.cfg.BatchSize
	}
	return registry.MaxAlternateIDs
}

// graphQuery re-checks the write guard before dispatch so no executor
// implementation can bypass it.
func (e *Engine) graphQuery(ctx context.Context, cypher string) (graphstore.Result, error) {
	if err := guard.CheckCypher(cypher); err != nil {
		return graphstore.Result{}, err
	}
	if e.graph == nil {
		return graphstore.Result{}, fmt.Errorf("graph executor not configured")
	}
	return e.graph.Query(ctx, cypher)
}

func validateQuestion(question string) error {
	trimmed := strings.TrimSpace(question)
	if len(trimmed) < minQuestionLen {
		return fmt.Errorf("%w: question too short (min %d chars)", ErrInvalidQuestion, minQuestionLen)
	}
	if len(trimmed) > maxQuestionLen {
		return fmt.Errorf("%w: question too long (max %d chars)", ErrInvalidQuestion, maxQuestionLen)
	}
	return nil
}

func nullableArg(value string) interface{} {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

// collectAssemblyIDs extracts a bounded, deduplicated, order-preserving set
// of numeric assembly ids from relational rows.
func collectAssemblyIDs(rows []relational.Row, limit int) []int64 {
	seen := make(map[int64]struct{})
	var ids []int64
	for _, row := range rows {
		value, ok := row["assembly_id"]
		if !ok {
			continue
		}
		id, ok := toInt64(value)
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
		if len(ids) >= limit {
			break
		}
	}
	return ids
}

func toInt64(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	case []byte:
		parsed, err := strconv.ParseInt(strings.TrimSpace(string(v)), 10, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
