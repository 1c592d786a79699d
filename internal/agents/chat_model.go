package agents

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/schema"

	"github.com/dyike/StockAnalyzer/config"
)

var ErrMissingAPIKey = errors.New("llm api key is not configured")

// NewChatModel builds the OpenAI-compatible client for the configured
// provider. DeepSeek is reached through the same client on its own base URL;
// reasoner models are not supported since the team relies on tool calls.
func NewChatModel(ctx context.Context, cfg *config.Config) (*openai.ChatModel, error) {
	if cfg.APIKey() == "" {
		return nil, fmt.Errorf("%w: provider %s", ErrMissingAPIKey, cfg.LLMProvider)
	}

	var maxTokens *int
	if cfg.MaxTokens > 0 {
		n := cfg.MaxTokens
		maxTokens = &n
	}
	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL:   cfg.BaseURL(),
		APIKey:    cfg.APIKey(),
		Model:     cfg.ModelName,
		MaxTokens: maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s chat model: %w", cfg.LLMProvider, err)
	}
	return cm, nil
}

// ToolCallChecker reports whether a streamed reply carries tool calls.
// Some providers emit text before the tool call chunk, so the whole stream
// is scanned.
func ToolCallChecker(_ context.Context, sr *schema.StreamReader[*schema.Message]) (bool, error) {
	defer sr.Close()
	for {
		msg, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if len(msg.ToolCalls) > 0 {
			return true, nil
		}
	}
}
