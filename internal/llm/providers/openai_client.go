// File path: internal/llm/providers/openai_client.go
package providers

import (
	"context"
	"fmt"
	"os"
	"time"

	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/shopintel/queryweaver/internal/common"
	"github.com/shopintel/queryweaver/internal/common/telemetry"
)

type OpenAIProvider struct {
	client    openai.Client
	chatModel string
}

func NewOpenAIProvider(opts ...option.RequestOption) *OpenAIProvider {
	chatModel := os.Getenv("OPENAI_CHAT_MODEL")
	if chatModel == "" {
		chatModel = "gpt-4o-mini"
	}
	logger := common.Logger()
	logger.Info("llm: OpenAI provider configured", "chat_model", chatModel)
	return &OpenAIProvider{client: openai.NewClient(opts...), chatModel: chatModel}
}

func (o *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	logger := common.Logger()
	logger.Debug("llm: sending completion request", "model", o.chatModel)
	start := time.Now()

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.chatModel),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.User),
		},
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(req.MaxTokens)
	}
	resp, err := o.client.Chat.Completions.New(ctx, params)
	telemetry.RecordLLMCall("openai", time.Since(start))
	if err != nil {
		logger.Error("llm: completion failed", "error", err)
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	logger.Debug("llm: completion succeeded", "ms", time.Since(start).Milliseconds())
	return resp.Choices[0].Message.Content, nil
}

func (o *OpenAIProvider) Name() string {
	return "openai"
}
