// File path: internal/relational/relational.go
package relational

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/shopintel/queryweaver/internal/common"
	"github.com/shopintel/queryweaver/internal/common/telemetry"
	"github.com/shopintel/queryweaver/internal/guard"
)

// ErrTimeout marks a relational call that exceeded its statement timeout.
var ErrTimeout = errors.New("relational statement timeout")

// query_canceled: raised by Postgres when statement_timeout fires.
const pgQueryCanceled = "57014"

// Row is one result row keyed by column name.
type Row map[string]interface{}

// Store wraps a pooled sqlx.DB connection to the Postgres fact store. Every
// call leases a dedicated connection, applies a statement timeout and a row
// cap, executes exactly one statement, and releases the connection on every
// exit path.
type Store struct {
	db  *sqlx.DB
	cfg Config
}

// Open constructs a Store and verifies connectivity.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.URL == "" {
		return nil, errors.New("postgres url required")
	}
	logger := common.Logger()
	db, err := sqlx.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	logger.Info("relational: postgres store ready", "max_conns", cfg.MaxOpenConns, "stmt_timeout_s", cfg.StatementTimeoutSeconds)
	return &Store{db: db, cfg: cfg}, nil
}

// NewWithDB wraps an existing pool; used by tests.
func NewWithDB(db *sqlx.DB, cfg Config) *Store {
	return &Store{db: db, cfg: cfg}
}

// Close releases the underlying pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping reports backend reachability.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("relational store not configured")
	}
	return s.db.PingContext(ctx)
}

// Query runs one read-only statement and returns its rows. The write check
// and the row cap run before any connection is acquired, so a rejected
// statement never touches the pool.
func (s *Store) Query(ctx context.Context, sql string, args ...interface{}) ([]Row, error) {
	if err := guard.CheckSQL(sql); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, errors.New("relational store not configured")
	}
	capped := guard.EnforceRowCap(sql, s.cfg.MaxRows)

	spanCtx, finish := telemetry.StartSpan(ctx, "relational.query")
	start := time.Now()
	defer func() { finish() }()

	conn, err := s.db.Connx(spanCtx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	timeoutMS := s.cfg.StatementTimeoutSeconds * 1000
	if _, err := conn.ExecContext(spanCtx, fmt.Sprintf("SET statement_timeout = %d", timeoutMS)); err != nil {
		return nil, fmt.Errorf("set statement timeout: %w", err)
	}

	rows, err := conn.QueryxContext(spanCtx, capped, args...)
	if err != nil {
		telemetry.RecordRelationalQuery(time.Since(start))
		return nil, wrapExecErr(err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		row := make(Row)
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, normalizeRow(row))
	}
	if err := rows.Err(); err != nil {
		return nil, wrapExecErr(err)
	}
	telemetry.RecordRelationalQuery(time.Since(start))
	common.Logger().Info("relational: query ok", "rows", len(out), "ms", time.Since(start).Milliseconds())
	return out, nil
}

func wrapExecErr(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pgQueryCanceled {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("relational query failed: %w", err)
}

// lib/pq scans text columns into []byte; convert them so rows serialize as
// strings rather than base64.
func normalizeRow(row Row) Row {
	for key, value := range row {
		if raw, ok := value.([]byte); ok {
			row[key] = string(raw)
		}
	}
	return row
}
