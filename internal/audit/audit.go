// File path: internal/audit/audit.go
package audit

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/shopintel/queryweaver/internal/common"
)

const textLimit = 500

// Record is one append-only audit entry; exactly one is written per request,
// success or failure, and never mutated afterward.
type Record struct {
	Timestamp     time.Time              `json:"timestamp"`
	RequestID     string                 `json:"request_id"`
	Question      string                 `json:"question,omitempty"`
	Params        map[string]interface{} `json:"params,omitempty"`
	Route         string                 `json:"route,omitempty"`
	Strategy      string                 `json:"strategy,omitempty"`
	SQLExecuted   string                 `json:"sql_executed,omitempty"`
	CypherRun     string                 `json:"cypher_executed,omitempty"`
	RowCount      int                    `json:"row_count"`
	AnswerSummary string                 `json:"answer_summary,omitempty"`
	DurationMS    int64                  `json:"duration_ms"`
	Error         string                 `json:"error,omitempty"`
}

// Recorder appends records to date-partitioned JSONL files. A write failure
// is logged, never fatal to the request being audited.
type Recorder struct {
	dir string
	mu  sync.Mutex
}

// NewRecorder creates the audit directory if needed.
func NewRecorder(dir string) (*Recorder, error) {
	if strings.TrimSpace(dir) == "" {
		dir = "./audit"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}
	return &Recorder{dir: dir}, nil
}

// Write truncates the free-text fields, stamps the record, and appends it.
func (r *Recorder) Write(record Record) {
	if r == nil {
		return
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}
	if record.RequestID == "" {
		record.RequestID = NewRequestID()
	}
	record.SQLExecuted = truncate(record.SQLExecuted, textLimit)
	record.CypherRun = truncate(record.CypherRun, textLimit)
	record.AnswerSummary = truncate(record.AnswerSummary, textLimit)

	line, err := json.Marshal(record)
	if err != nil {
		common.Logger().Error("audit: marshal failed", "error", err)
		return
	}

	path := r.logPath(record.Timestamp)
	r.mu.Lock()
	defer r.mu.Unlock()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		common.Logger().Error("audit: open failed", "path", path, "error", err)
		return
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		common.Logger().Error("audit: append failed", "path", path, "error", err)
	}
}

// Dir returns the audit directory.
func (r *Recorder) Dir() string {
	if r == nil {
		return ""
	}
	return r.dir
}

func (r *Recorder) logPath(ts time.Time) string {
	return filepath.Join(r.dir, fmt.Sprintf("audit_%s.jsonl", ts.UTC().Format("2006-01-02")))
}

// NewRequestID returns a short random request identifier.
func NewRequestID() string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(buf)
}

func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
