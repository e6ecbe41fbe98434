// File path: internal/graphstore/graphstore_test.go
package graphstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopintel/queryweaver/internal/guard"
)

func TestQueryRejectsWriteCypherBeforeDispatch(t *testing.T) {
	// A nil redis client would panic on dispatch; the guard must fire first.
	client := &Client{rdb: nil, graphName: "shop_intelligence", timeout: time.Second}
	_, err := client.Query(context.Background(), "MATCH (n) DELETE n")
	if !errors.Is(err, guard.ErrWriteRejected) {
		t.Fatalf("err = %v, want ErrWriteRejected", err)
	}
}

func TestNewClientRejectsBadGraphName(t *testing.T) {
	_, err := NewClient(context.Background(), Config{Addr: "localhost:6379", GraphName: "shop;DROP", Timeout: time.Second})
	if !errors.Is(err, guard.ErrInvalidIdentifier) {
		t.Fatalf("err = %v, want ErrInvalidIdentifier", err)
	}
}

func TestDecodeReplyResultSet(t *testing.T) {
	reply := []interface{}{
		[]interface{}{"job_num", "machine"},
		[]interface{}{
			[]interface{}{"J26-00010", "M-01"},
			[]interface{}{"J26-00010", "M-02"},
		},
		[]interface{}{"Cached execution: 1"},
	}
	result, err := decodeReply(reply)
	if err != nil {
		t.Fatalf("decodeReply: %v", err)
	}
	if len(result.Header) != 2 || result.Header[0] != "job_num" {
		t.Fatalf("header = %v", result.Header)
	}
	if len(result.Rows) != 2 || result.Rows[1][1] != "M-02" {
		t.Fatalf("rows = %v", result.Rows)
	}
}

func TestDecodeReplyCompactHeader(t *testing.T) {
	reply := []interface{}{
		[]interface{}{
			[]interface{}{int64(1), "assembly_id"},
			[]interface{}{int64(1), "alternate_assembly_ids"},
		},
		[]interface{}{},
		[]interface{}{"Query internal execution time: 0.2"},
	}
	result, err := decodeReply(reply)
	if err != nil {
		t.Fatalf("decodeReply: %v", err)
	}
	if len(result.Header) != 2 || result.Header[0] != "assembly_id" {
		t.Fatalf("compact header = %v", result.Header)
	}
}

func TestDecodeReplyStatsOnly(t *testing.T) {
	result, err := decodeReply([]interface{}{[]interface{}{"Indices created: 1"}})
	if err != nil {
		t.Fatalf("decodeReply: %v", err)
	}
	if len(result.Header) != 0 || len(result.Rows) != 0 {
		t.Fatalf("stats-only reply produced data: %+v", result)
	}
}

func TestDecodeReplyBadShape(t *testing.T) {
	if _, err := decodeReply("OK"); err == nil {
		t.Fatal("string reply accepted")
	}
}

func TestIsExistingIndexErr(t *testing.T) {
	if !isExistingIndexErr(errors.New("Attribute 'assembly_id' is already indexed")) {
		t.Error("already indexed not recognized")
	}
	if !isExistingIndexErr(errors.New("Index already exists")) {
		t.Error("index already exists not recognized")
	}
	if isExistingIndexErr(errors.New("syntax error")) {
		t.Error("unrelated error treated as existing index")
	}
	if isExistingIndexErr(nil) {
		t.Error("nil treated as existing index")
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	if cfg.GraphName != "shop_intelligence" {
		t.Fatalf("graph name default = %q", cfg.GraphName)
	}
	if cfg.Timeout != 5*time.Second {
		t.Fatalf("timeout default = %v", cfg.Timeout)
	}
}
