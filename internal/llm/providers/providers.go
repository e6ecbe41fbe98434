// File path: internal/llm/providers/providers.go
package providers

import "context"

// CompletionRequest is one system/user prompt pair with a temperature and a
// max-token budget.
type CompletionRequest struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int64
}

// Provider is the text-generation collaborator. It authors queries and
// narrates results; it is never trusted, and everything it returns passes
// through the safety guard before execution.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	Name() string
}
