// File path: internal/engine/adhoc.go
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopintel/queryweaver/internal/audit"
	"github.com/shopintel/queryweaver/internal/common"
	"github.com/shopintel/queryweaver/internal/graphstore"
	"github.com/shopintel/queryweaver/internal/guard"
	"github.com/shopintel/queryweaver/internal/llm"
	"github.com/shopintel/queryweaver/internal/relational"
)

// routerSystemPrompt is the fixed schema description handed to the
// collaborator that authors queries on the ad hoc path.
const routerSystemPrompt = `You route queries to SQL (PostgreSQL) and/or Cypher (FalkorDB graph).
Return JSON: {"strategy":"sql"|"graph"|"hybrid","reasoning":"why","sql":"SELECT.."|null,"cypher":"MATCH.."|null}

SQL tables (core schema, snake_case):
- core.jobs: job_num, customer_id, part_num, job_status, priority, qty_ordered, due_date
- core.operations: job_num, oper_seq, operation_key, machine_code, operation_desc, status
- core.required_tools: job_num, operation_key, machine_code, assembly_id, qty_needed, criticality
- core.tool_inventory: assembly_id, qty_available, qty_reserved, qty_free
- core.machine_magazine: machine_code, pocket_no, assembly_id, estimated_life_remaining_min
- core.customers: customer_id, customer_name, industry
- core.parts: part_num, description, sell_price
- core.employees: employee_id, employee_name, role, shift

Cypher nodes (PascalCase): Customer, Part, Job, Machine, Employee, Operation
Cypher rels: PLACED, PRODUCES, HAS_OPERATION, USES_MACHINE, WORKED_ON
Cypher props: CustomerName, JobNum, JobStatus, MachineAlias, PartNum, OperSeq, OperationDesc

Rules: SQL=SELECT only. Cypher=MATCH only. Add LIMIT. No GROUP BY in Cypher. Return JSON only.`

// AdHocStrategy is the collaborator's chosen execution mode.
type AdHocStrategy string

const (
	AdHocSQL    AdHocStrategy = "sql"
	AdHocGraph  AdHocStrategy = "graph"
	AdHocHybrid AdHocStrategy = "hybrid"
)

// Decision is the validated, tagged form of the collaborator's routing
// response. Optional fields are never trusted: ParseDecision rejects any
// response that does not conform.
type Decision struct {
	Strategy  AdHocStrategy
	Reasoning string
	SQL       string
	Cypher    string
}

// AdHocResponse is the result of the ad hoc path.
type AdHocResponse struct {
	Answer    string        `json:"answer"`
	Strategy  AdHocStrategy `json:"strategy"`
	Reasoning string        `json:"reasoning"`
	Evidence  Evidence      `json:"evidence"`
	TimingMS  int64         `json:"timing_ms"`
}

// Evidence records what was actually executed for the answer.
type Evidence struct {
	RelationalQuery    string `json:"relational_query,omitempty"`
	GraphQuery         string `json:"graph_query,omitempty"`
	RelationalRowCount int    `json:"relational_row_count"`
	GraphPresent       bool   `json:"graph_present"`
}

// ParseDecision parses the collaborator's response into a Decision,
// rejecting anything that does not conform to the strict schema.
func ParseDecision(raw string) (Decision, error) {
	jsonStr := extractJSONObject(raw)
	if jsonStr == "" {
		return Decision{}, fmt.Errorf("%w: no JSON object in response", ErrRouterParseFailure)
	}
	var payload struct {
		Strategy  string  `json:"strategy"`
		Reasoning string  `json:"reasoning"`
		SQL       *string `json:"sql"`
		Cypher    *string `json:"cypher"`
	}
	if err := json.Unmarshal([]byte(jsonStr), &payload); err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrRouterParseFailure, err)
	}
	decision := Decision{
		Strategy:  AdHocStrategy(strings.ToLower(strings.TrimSpace(payload.Strategy))),
		Reasoning: strings.TrimSpace(payload.Reasoning),
	}
	if payload.SQL != nil {
		decision.SQL = strings.TrimSpace(*payload.SQL)
	}
	if payload.Cypher != nil {
		decision.Cypher = strings.TrimSpace(*payload.Cypher)
	}
	switch decision.Strategy {
	case AdHocSQL:
		if decision.SQL == "" {
			return Decision{}, fmt.Errorf("%w: strategy sql without sql query", ErrRouterParseFailure)
		}
	case AdHocGraph:
		if decision.Cypher == "" {
			return Decision{}, fmt.Errorf("%w: strategy graph without cypher query", ErrRouterParseFailure)
		}
	case AdHocHybrid:
		if decision.SQL == "" && decision.Cypher == "" {
			return Decision{}, fmt.Errorf("%w: strategy hybrid without any query", ErrRouterParseFailure)
		}
	default:
		return Decision{}, fmt.Errorf("%w: unknown strategy %q", ErrRouterParseFailure, payload.Strategy)
	}
	return decision, nil
}

// HandleAdHoc answers a question by delegating query authorship to the
// generative collaborator. Authored queries pass through the same safety
// guard as templates; the answer is composed directly from rows with no
// second generative call.
func (e *Engine) HandleAdHoc(ctx context.Context, question string) (*AdHocResponse, error) {
	logger := common.Logger()
	start := time.Now()
	record := audit.Record{RequestID: audit.NewRequestID(), Question: question, Route: "llm_hybrid"}
	defer func() {
		record.DurationMS = time.Since(start).Milliseconds()
		e.recorder.Write(record)
	}()

	if err := validateQuestion(question); err != nil {
		record.Error = err.Error()
		return nil, err
	}
	if err := e.guard.CheckQuestion(question); err != nil {
		record.Error = err.Error()
		return nil, err
	}
	if e.provider == nil {
		err := fmt.Errorf("llm provider not configured")
		record.Error = err.Error()
		return nil, err
	}

	raw, err := e.provider.Complete(ctx, llm.CompletionRequest{
		System:      routerSystemPrompt,
		User:        question,
		Temperature: 0,
		MaxTokens:   1024,
	})
	if err != nil {
		record.Error = err.Error()
		return nil, fmt.Errorf("llm router failed: %w", err)
	}
	decision, err := ParseDecision(raw)
	if err != nil {
		record.Error = err.Error()
		return nil, err
	}
	record.Strategy = string(decision.Strategy)
	logger.Info("engine: adhoc decision", "strategy", decision.Strategy)

	var (
		rows     []relational.Row
		graphRes *graphstore.Result
	)
	if (decision.Strategy == AdHocSQL || decision.Strategy == AdHocHybrid) && decision.SQL != "" {
		if err := guard.CheckSQL(decision.SQL); err != nil {
			record.Error = err.Error()
			return nil, err
		}
		record.SQLExecuted = decision.SQL
		rows, err = e.relational.Query(ctx, decision.SQL)
		if err != nil {
			record.Error = err.Error()
			return nil, err
		}
	}
	if (decision.Strategy == AdHocGraph || decision.Strategy == AdHocHybrid) && decision.Cypher != "" {
		record.CypherRun = decision.Cypher
		result, err := e.graphQuery(ctx, decision.Cypher)
		if err != nil {
			record.Error = err.Error()
			return nil, err
		}
		graphRes = &result
	}

	answer := renderAnswer(rows, graphRes)
	record.RowCount = len(rows)
	record.AnswerSummary = answer

	return &AdHocResponse{
		Answer:    answer,
		Strategy:  decision.Strategy,
		Reasoning: decision.Reasoning,
		Evidence: Evidence{
			RelationalQuery:    decision.SQL,
			GraphQuery:         decision.Cypher,
			RelationalRowCount: len(rows),
			GraphPresent:       graphRes != nil,
		},
		TimingMS: time.Since(start).Milliseconds(),
	}, nil
}

const (
	answerRowPreview   = 15
	answerGraphPreview = 10
)

// renderAnswer composes text directly from rows: key:value pairs for a
// single narrow row, a bounded tabular preview otherwise, and the raw
// header/row shape for graph results.
func renderAnswer(rows []relational.Row, graphRes *graphstore.Result) string {
	var answer strings.Builder

	if len(rows) > 0 {
		if len(rows) == 1 && len(rows[0]) <= 2 {
			keys := sortedKeys(rows[0])
			pairs := make([]string, 0, len(keys))
			for _, key := range keys {
				pairs = append(pairs, fmt.Sprintf("**%s:** %v", key, rows[0][key]))
			}
			answer.WriteString(strings.Join(pairs, " | "))
		} else {
			keys := sortedKeys(rows[0])
			answer.WriteString(strings.Join(keys, " | "))
			limit := len(rows)
			if limit > answerRowPreview {
				limit = answerRowPreview
			}
			for _, row := range rows[:limit] {
				cells := make([]string, 0, len(keys))
				for _, key := range keys {
					if value, ok := row[key]; ok && value != nil {
						cells = append(cells, fmt.Sprint(value))
					} else {
						cells = append(cells, "-")
					}
				}
				answer.WriteString("\n")
				answer.WriteString(strings.Join(cells, " | "))
			}
			if extra := len(rows) - answerRowPreview; extra > 0 {
				answer.WriteString(fmt.Sprintf("\n... and %d more rows", extra))
			}
		}
	}

	if graphRes != nil && (len(graphRes.Header) > 0 || len(graphRes.Rows) > 0) {
		if answer.Len() > 0 {
			answer.WriteString("\n\n**Graph Data:**\n")
		}
		answer.WriteString(strings.Join(graphRes.Header, " | "))
		limit := len(graphRes.Rows)
		if limit > answerGraphPreview {
			limit = answerGraphPreview
		}
		for _, row := range graphRes.Rows[:limit] {
			cells := make([]string, 0, len(row))
			for _, cell := range row {
				cells = append(cells, fmt.Sprint(cell))
			}
			answer.WriteString("\n")
			answer.WriteString(strings.Join(cells, " | "))
		}
	}

	if answer.Len() == 0 {
		return "Query executed but returned no results."
	}
	return answer.String()
}

func sortedKeys(row relational.Row) []string {
	keys := make([]string, 0, len(row))
	for key := range row {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return ""
	}
	return raw[start : end+1]
}
