// File path: internal/llm/providers/local.go
package providers

import (
	"context"
	"fmt"
	"strings"
)

// LocalProvider is the deterministic no-credentials fallback. It never
// authors a runnable query; callers on the generative path will surface a
// parse failure rather than silently executing something invented here.
type LocalProvider struct{}

func NewLocalProvider() *LocalProvider {
	return &LocalProvider{}
}

func (l *LocalProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if strings.TrimSpace(req.User) == "" {
		return "", fmt.Errorf("no prompt provided")
	}
	return "[local-stub] " + strings.TrimSpace(req.User), nil
}

func (l *LocalProvider) Name() string {
	return "local"
}
