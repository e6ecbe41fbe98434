// File path: internal/llm/llm.go
package llm

import (
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go/v2/option"

	"github.com/shopintel/queryweaver/internal/common"
	"github.com/shopintel/queryweaver/internal/llm/providers"
)

type CompletionRequest = providers.CompletionRequest

type Provider = providers.Provider

// NewProvider selects the OpenAI-backed provider when OPENAI_API_KEY is set
// and falls back to the deterministic local provider otherwise.
func NewProvider() Provider {
	logger := common.Logger()
	apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if apiKey == "" {
		logger.Warn("llm: OPENAI_API_KEY not set; falling back to local provider")
		return providers.NewLocalProvider()
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if timeoutStr := strings.TrimSpace(os.Getenv("OPENAI_HTTP_TIMEOUT")); timeoutStr != "" {
		timeout, err := time.ParseDuration(timeoutStr)
		if err != nil {
			logger.Warn("llm: invalid OPENAI_HTTP_TIMEOUT, using default", "value", timeoutStr, "error", err)
		} else {
			opts = append(opts, option.WithRequestTimeout(timeout))
		}
	}
	if endpoint := strings.TrimSpace(os.Getenv("OPENAI_ENDPOINT")); endpoint != "" {
		logger.Info("llm: using custom OpenAI endpoint", "endpoint", endpoint)
		opts = append(opts, option.WithBaseURL(endpoint))
	}
	logger.Info("llm: OpenAI provider selected")
	return providers.NewOpenAIProvider(opts...)
}
