// File path: cmd/qws/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopintel/queryweaver/internal/api"
	"github.com/shopintel/queryweaver/internal/audit"
	"github.com/shopintel/queryweaver/internal/common"
	"github.com/shopintel/queryweaver/internal/engine"
	"github.com/shopintel/queryweaver/internal/graphstore"
	"github.com/shopintel/queryweaver/internal/llm"
	"github.com/shopintel/queryweaver/internal/registry"
	"github.com/shopintel/queryweaver/internal/relational"
)

func main() {
	logger := common.Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := godotenv.Load(); err != nil {
		logger.Warn("queryweaver: .env file not loaded", "error", err)
	} else {
		logger.Info("queryweaver: environment loaded from .env")
	}

	addrDefault := ":8080"
	if env := strings.TrimSpace(os.Getenv("QW_ADDR")); env != "" {
		addrDefault = env
	}
	auditDefault := "./audit"
	if env := strings.TrimSpace(os.Getenv("AUDIT_LOG_DIR")); env != "" {
		auditDefault = env
	}
	addr := flag.String("addr", addrDefault, "listen address")
	auditDir := flag.String("audit-dir", auditDefault, "directory for append-only audit logs")
	routingFile := flag.String("routing-config", "", "path to a JSON routing rule file (overrides QW_ROUTING_CONFIG)")
	flag.Parse()

	logger.Info("queryweaver: startup initiated", "addr", *addr, "audit_dir", *auditDir)

	if trimmed := strings.TrimSpace(*routingFile); trimmed != "" {
		os.Setenv("QW_ROUTING_CONFIG", trimmed)
	}
	engineCfg, err := registry.LoadConfig()
	if err != nil {
		logger.Error("queryweaver: routing config load failed", "error", err)
		fmt.Println("routing config error:", err)
		os.Exit(1)
	}

	relCfg := relational.LoadConfig()
	relCfg.StatementTimeoutSeconds = engineCfg.SQLTimeoutSeconds
	relCfg.MaxRows = engineCfg.MaxSQLRows
	relStore, err := relational.Open(ctx, relCfg)
	if err != nil {
		logger.Error("queryweaver: relational store unavailable", "error", err)
		fmt.Println("relational store error:", err)
		os.Exit(1)
	}
	defer relStore.Close()

	graphCfg := graphstore.LoadConfig()
	graphCfg.Timeout = time.Duration(engineCfg.GraphTimeoutMS) * time.Millisecond
	graphClient, err := graphstore.NewClient(ctx, graphCfg)
	if err != nil {
		logger.Error("queryweaver: graph store unavailable", "error", err)
		fmt.Println("graph store error:", err)
		os.Exit(1)
	}
	defer graphClient.Close()
	if err := graphClient.EnsureIndexes(ctx); err != nil {
		logger.Warn("queryweaver: graph index setup failed", "error", err)
	}

	provider := llm.NewProvider()
	logger.Info("queryweaver: llm provider ready", "provider", provider.Name())

	recorder, err := audit.NewRecorder(*auditDir)
	if err != nil {
		logger.Error("queryweaver: audit recorder setup failed", "error", err)
		fmt.Println("audit error:", err)
		os.Exit(1)
	}

	eng, err := engine.New(engineCfg, relStore, graphClient, provider, recorder)
	if err != nil {
		logger.Error("queryweaver: engine construction failed", "error", err)
		fmt.Println("engine error:", err)
		os.Exit(1)
	}

	server, err := api.NewServer(eng, relStore, graphClient)
	if err != nil {
		logger.Error("queryweaver: server construction failed", "error", err)
		fmt.Println("server error:", err)
		os.Exit(1)
	}

	logger.Info("queryweaver: server listening", "addr", *addr, "health", "/healthz")
	fmt.Printf("Serving on %s\n", *addr)
	reachable := *addr
	if strings.HasPrefix(reachable, ":") {
		reachable = "localhost" + reachable
	}
	logger.Info("queryweaver: verify reachability", "suggestion", fmt.Sprintf("curl http://%s/healthz", reachable))
	if err := http.ListenAndServe(*addr, server); err != nil {
		logger.Error("queryweaver: server stopped", "error", err)
		fmt.Println("server stopped:", err)
	}
}
