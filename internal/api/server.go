// File path: internal/api/server.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"fmt"
	"net/http"
	"strings"
	"time"

	chi "github.com/go-chi/chi/v5"

	"github.com/shopintel/queryweaver/internal/common"
	"github.com/shopintel/queryweaver/internal/engine"
	"github.com/shopintel/queryweaver/internal/graphstore"
	"github.com/shopintel/queryweaver/internal/guard"
	"github.com/shopintel/queryweaver/internal/relational"
)

// QueryEngine is the surface the HTTP layer needs from the engine.
type QueryEngine interface {
	Handle(ctx context.Context, question string, parameters map[string]interface{}) (*engine.TemplateResponse, error)
	HandleAdHoc(ctx context.Context, question string) (*engine.AdHocResponse, error)
	HandleGraphQuestion(ctx context.Context, question string) (*engine.GraphAnswer, error)
}

// Pinger reports backend reachability for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	router     chi.Router
	engine     QueryEngine
	relational Pinger
	graph      Pinger
}

// NewServer builds the HTTP layer. The pingers may be nil; the health
// endpoint reports them as not configured.
func NewServer(eng QueryEngine, relationalPing, graphPing Pinger) (*Server, error) {
	if eng == nil {
		return nil, fmt.Errorf("engine required")
	}
	srv := &Server{router: chi.NewRouter(), engine: eng, relational: relationalPing, graph: graphPing}
	srv.routes()
	common.Logger().Info("api: server ready")
	return srv, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	logger := common.Logger()
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("request", "method", r.Method, "path", r.URL.Path, "dur", time.Since(start), "remote", r.RemoteAddr)
		})
	})

	s.router.Get("/healthz", s.handleHealth)

	s.router.Post("/v1/query", s.handleQuery)
	s.router.Post("/v1/query/hybrid", s.handleAdHoc)
	s.router.Post("/v1/graph/query", s.handleGraphQuery)
	s.router.Get("/v1/logs", s.handleLogs)
	s.router.Handle("/debug/vars", expvar.Handler())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	relStatus := pingStatus(r.Context(), s.relational)
	graphStatus := pingStatus(r.Context(), s.graph)
	if strings.HasPrefix(relStatus, "error") || strings.HasPrefix(graphStatus, "error") {
		status = http.StatusServiceUnavailable
	}
	payload := map[string]string{"status": "ok", "relational": relStatus, "graph": graphStatus}
	if status != http.StatusOK {
		payload["status"] = "degraded"
	}
	writeJSON(w, status, payload)
}

func pingStatus(ctx context.Context, p Pinger) string {
	if p == nil {
		return "not_configured"
	}
	if err := p.Ping(ctx); err != nil {
		return "error: " + err.Error()
	}
	return "ok"
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": common.LogEntries()})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	logger := common.Logger()
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "code", code, "error", err)
	} else {
		logger.Warn("request failed", "status", status, "code", code, "error", err)
	}
	writeJSON(w, status, errorResponse{OK: false, Error: err.Error(), Code: code})
}

// statusFor maps the engine's error taxonomy onto HTTP statuses and stable
// machine-readable codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, guard.ErrReadOnlyViolation):
		return http.StatusBadRequest, "read_only_violation"
	case errors.Is(err, guard.ErrWriteRejected):
		return http.StatusBadRequest, "write_rejected"
	case errors.Is(err, guard.ErrInvalidIdentifier):
		return http.StatusBadRequest, "invalid_identifier"
	case errors.Is(err, engine.ErrInvalidQuestion):
		return http.StatusBadRequest, "invalid_question"
	case errors.Is(err, engine.ErrMissingParameter):
		return http.StatusBadRequest, "missing_parameter"
	case errors.Is(err, relational.ErrTimeout):
		return http.StatusGatewayTimeout, "relational_timeout"
	case errors.Is(err, graphstore.ErrTimeout):
		return http.StatusGatewayTimeout, "graph_timeout"
	case errors.Is(err, engine.ErrRouterParseFailure):
		return http.StatusBadGateway, "router_parse_failure"
	case errors.Is(err, engine.ErrUnsupportedStrategy):
		return http.StatusInternalServerError, "unsupported_strategy"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
