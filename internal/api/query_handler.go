// File path: internal/api/query_handler.go
package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/shopintel/queryweaver/internal/common"
)

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	logger := common.Logger()
	req, ok := decodeQuestion(w, r)
	if !ok {
		return
	}
	logger.Info("api: query received", "question_length", len(req.Question), "params", len(req.Parameters))
	resp, err := s.engine.Handle(r.Context(), req.Question, req.Parameters)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, queryResponse{OK: true, TemplateResponse: resp})
}

func (s *Server) handleAdHoc(w http.ResponseWriter, r *http.Request) {
	logger := common.Logger()
	req, ok := decodeQuestion(w, r)
	if !ok {
		return
	}
	logger.Info("api: hybrid query received", "question_length", len(req.Question))
	resp, err := s.engine.HandleAdHoc(r.Context(), req.Question)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, adHocResponse{OK: true, AdHocResponse: resp})
}

func (s *Server) handleGraphQuery(w http.ResponseWriter, r *http.Request) {
	logger := common.Logger()
	req, ok := decodeQuestion(w, r)
	if !ok {
		return
	}
	logger.Info("api: graph query received", "question_length", len(req.Question))
	resp, err := s.engine.HandleGraphQuestion(r.Context(), req.Question)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, graphQueryResponse{OK: true, GraphAnswer: resp})
}

func decodeQuestion(w http.ResponseWriter, r *http.Request) (queryRequest, bool) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.Logger().Warn("api: request decode failed", "error", err)
		writeJSON(w, http.StatusBadRequest, errorResponse{OK: false, Error: err.Error(), Code: "bad_request"})
		return queryRequest{}, false
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{OK: false, Error: "question required", Code: "bad_request"})
		return queryRequest{}, false
	}
	return req, true
}
