// File path: internal/engine/correction.go
package engine

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopintel/queryweaver/internal/audit"
	"github.com/shopintel/queryweaver/internal/common"
	"github.com/shopintel/queryweaver/internal/graphstore"
	"github.com/shopintel/queryweaver/internal/guard"
	"github.com/shopintel/queryweaver/internal/llm"
)

const cypherSystemPrompt = `You translate natural-language questions about manufacturing shop-floor state into Cypher for FalkorDB.

Nodes (PascalCase): Customer, Part, Job, Machine, Employee, Operation
Relationships: PLACED, PRODUCES, HAS_OPERATION, USES_MACHINE, WORKED_ON
Properties: CustomerName, JobNum, JobStatus, MachineAlias, PartNum, OperSeq, OperationDesc

Rules: MATCH/OPTIONAL MATCH/RETURN only, always add LIMIT, no GROUP BY (use aggregation in RETURN).
Return ONLY the Cypher query, no prose and no code fences.`

// GraphAnswer is the result of the ad hoc graph path.
type GraphAnswer struct {
	Answer      string   `json:"answer"`
	Cypher      string   `json:"cypher"`
	Suggestions []string `json:"suggestions"`
	Attempts    int      `json:"attempts"`
	TimingMS    int64    `json:"timing_ms"`
}

var cypherStartPattern = regexp.MustCompile(`(?i)\b(MATCH|RETURN|WITH|CALL|OPTIONAL)\b`)

// HandleGraphQuestion lets the collaborator author a Cypher query and runs
// it with bounded self-correction: a failed execution is fed back to the
// collaborator for a fix, the corrected query is re-validated by the guard
// and re-executed, up to 1+retries attempts in total. A guard rejection is
// terminal immediately; correction is not a privileged path.
func (e *Engine) HandleGraphQuestion(ctx context.Context, question string) (*GraphAnswer, error) {
	logger := common.Logger()
	start := time.Now()
	record := audit.Record{RequestID: audit.NewRequestID(), Question: question, Route: "llm_graph", Strategy: "graph"}
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
		System:      cypherSystemPrompt,
		User:        question,
		Temperature: 0,
		MaxTokens:   512,
	})
	if err != nil {
		record.Error = err.Error()
		return nil, fmt.Errorf("llm cypher authoring failed: %w", err)
	}
	cypher := CleanCypher(raw)
	if cypher == "" {
		record.Error = "empty cypher from collaborator"
		return nil, fmt.Errorf("%w: empty cypher from collaborator", ErrRouterParseFailure)
	}

	maxAttempts := 1 + e.cfg.LLMRetries
	var result graphstore.Result
	attempts := 0
	for attempts < maxAttempts {
		attempts++
		record.CypherRun = cypher
		result, err = e.graphQuery(ctx, cypher)
		if err == nil {
			break
		}
		if errors.Is(err, guard.ErrWriteRejected) {
			// A corrected query that is still a write attempt consumes no
			// further retries.
			record.Error = err.Error()
			return nil, err
		}
		if attempts >= maxAttempts {
			record.Error = err.Error()
			return nil, err
		}
		logger.Warn("engine: cypher failed, requesting correction", "attempt", attempts, "error", err)
		corrected, cerr := e.provider.Complete(ctx, llm.CompletionRequest{
			System: cypherSystemPrompt,
			User: fmt.Sprintf("My previous Cypher query failed with this error:\nQuery: %s\nError: %s\n\nPlease fix the query for: %q\nReturn ONLY the corrected Cypher query.",
				cypher, err.Error(), question),
			Temperature: 0,
			MaxTokens:   512,
		})
		if cerr != nil {
			record.Error = cerr.Error()
			return nil, fmt.Errorf("llm correction failed: %w", cerr)
		}
		cypher = CleanCypher(corrected)
	}

	answer := renderAnswer(nil, &result)
	record.RowCount = len(result.Rows)
	record.AnswerSummary = answer
	logger.Info("engine: graph question answered", "attempts", attempts, "rows", len(result.Rows))

	return &GraphAnswer{
		Answer:      answer,
		Cypher:      cypher,
		Suggestions: suggestFollowUps(question),
		Attempts:    attempts,
		TimingMS:    time.Since(start).Milliseconds(),
	}, nil
}

// CleanCypher strips code fences and leading prose from an authored query.
func CleanCypher(raw string) string {
	cleaned := strings.ReplaceAll(raw, "```cypher", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)
	if loc := cypherStartPattern.FindStringIndex(cleaned); loc != nil && loc[0] > 0 {
		cleaned = strings.TrimSpace(cleaned[loc[0]:])
	}
	return cleaned
}

func suggestFollowUps(question string) []string {
	lowered := strings.ToLower(question)
	switch {
	case strings.Contains(lowered, "job"):
		return []string{
			"Which machines does this job run on?",
			"Which employees worked on this job?",
		}
	case strings.Contains(lowered, "machine"):
		return []string{
			"Which jobs are scheduled on this machine?",
			"What tools are loaded in this machine's magazine?",
		}
	case strings.Contains(lowered, "customer"):
		return []string{
			"Which parts does this customer order most?",
			"Which jobs for this customer are still open?",
		}
	default:
		return []string{
			"Which operations are blocked due to missing tools?",
			"Show machines and their loaded assemblies.",
		}
	}
}
