// File path: internal/api/types.go
package api

import (
	"github.com/shopintel/queryweaver/internal/engine"
)

type queryRequest struct {
	Question   string                 `json:"question"`
	Parameters map[string]interface{} `json:"params"`
}

type queryResponse struct {
	OK bool `json:"ok"`
	*engine.TemplateResponse
}

type adHocResponse struct {
	OK bool `json:"ok"`
	*engine.AdHocResponse
}

type graphQueryResponse struct {
	OK bool `json:"ok"`
	*engine.GraphAnswer
}

type errorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
	Code  string `json:"code"`
}
