// File path: internal/graphstore/client.go
package graphstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shopintel/queryweaver/internal/common"
	"github.com/shopintel/queryweaver/internal/common/telemetry"
	"github.com/shopintel/queryweaver/internal/guard"
)

// ErrTimeout marks a graph call that exceeded its client-side time box. The
// server is not told to cancel: timed-out graph work may still complete on
// the FalkorDB side. This is a client-side bound only.
var ErrTimeout = errors.New("graph query timeout")

// Result is a decoded GRAPH.QUERY reply: column names plus row values.
type Result struct {
	Header []string        `json:"header"`
	Rows   [][]interface{} `json:"rows"`
}

// Client issues read queries against one FalkorDB graph namespace.
type Client struct {
	rdb       *redis.Client
	graphName string
	timeout   time.Duration
}

// NewClient validates the graph namespace, connects, and pings the backend.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if err := guard.ValidateIdentifier(cfg.GraphName); err != nil {
		return nil, err
	}
	logger := common.Logger()
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("falkordb ping failed: %w", err)
	}
	logger.Info("graphstore: falkordb client ready", "addr", cfg.Addr, "graph", cfg.GraphName, "timeout", cfg.Timeout)
	return &Client{rdb: rdb, graphName: cfg.GraphName, timeout: cfg.Timeout}, nil
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

// Ping reports backend reachability.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.rdb == nil {
		return errors.New("graph client not configured")
	}
	return c.rdb.Ping(ctx).Err()
}

// GraphName returns the validated namespace this client queries.
func (c *Client) GraphName() string {
	if c == nil {
		return ""
	}
	return c.graphName
}

// Query runs one read-only Cypher statement. The write check runs before the
// command is issued. The call races the command against a timer; on expiry it
// returns ErrTimeout and abandons the in-flight command.
func (c *Client) Query(ctx context.Context, cypher string) (Result, error) {
	if err := guard.CheckCypher(cypher); err != nil {
		return Result{}, err
	}
	if c == nil || c.rdb == nil {
		return Result{}, errors.New("graph client not configured")
	}

	spanCtx, finish := telemetry.StartSpan(ctx, "graph.query")
	start := time.Now()
	defer func() { finish() }()

	type outcome struct {
		reply interface{}
		err   error
	}
	// Buffered so the abandoned goroutine can still deliver and exit.
	ch := make(chan outcome, 1)
	go func() {
		reply, err := c.rdb.Do(spanCtx, "GRAPH.QUERY", c.graphName, cypher).Result()
		ch <- outcome{reply: reply, err: err}
	}()

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()
	select {
	case <-timer.C:
		telemetry.RecordGraphQuery("timeout", time.Since(start))
		return Result{}, fmt.Errorf("%w after %s", ErrTimeout, c.timeout)
	case <-spanCtx.Done():
		telemetry.RecordGraphQuery("canceled", time.Since(start))
		return Result{}, spanCtx.Err()
	case o := <-ch:
		if o.err != nil {
			telemetry.RecordGraphQuery("error", time.Since(start))
			return Result{}, fmt.Errorf("graph query failed: %w", o.err)
		}
		result, err := decodeReply(o.reply)
		if err != nil {
			return Result{}, err
		}
		telemetry.RecordGraphQuery("ok", time.Since(start))
		common.Logger().Info("graphstore: query ok", "rows", len(result.Rows), "ms", time.Since(start).Milliseconds())
		return result, nil
	}
}

// EnsureIndexes creates the lookup indexes the templates rely on. Index
// creation is idempotent at this layer: existing-index errors are swallowed.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	if c == nil || c.rdb == nil {
		return errors.New("graph client not configured")
	}
	statements := []string{
		"CREATE INDEX FOR (a:ToolAssembly) ON (a.assembly_id)",
		"CREATE INDEX FOR (j:Job) ON (j.JobNum)",
		"CREATE INDEX FOR (m:Machine) ON (m.MachineAlias)",
	}
	logger := common.Logger()
	for _, stmt := range statements {
		if err := c.rdb.Do(ctx, "GRAPH.QUERY", c.graphName, stmt).Err(); err != nil {
			if isExistingIndexErr(err) {
				continue
			}
			return fmt.Errorf("ensure index: %w", err)
		}
		logger.Debug("graphstore: index ensured", "statement", stmt)
	}
	return nil
}

func isExistingIndexErr(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already indexed") || strings.Contains(msg, "index already exists")
}
