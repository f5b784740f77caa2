package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// openAIClient calls the OpenAI Chat Completions API directly, pointed at
// the public API instead of Azure (this domain has no Azure tenant to
// attach to).
type openAIClient struct {
	inner       *openai.Client
	model       string
	temperature float64
	logger      *slog.Logger
}

func newOpenAIClient(cfg Config, logger *slog.Logger) (*openAIClient, error) {
	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("llm/openai: api key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("llm/openai: model is required")
	}

	client := openai.NewClient(option.WithAPIKey(cfg.OpenAIAPIKey))
	return &openAIClient{
		inner:       &client,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		logger:      logger,
	}, nil
}

func (c *openAIClient) Generate(ctx context.Context, prompt, systemPrompt string) (string, error) {
	messages := []openai.ChatCompletionMessageParamUnion{}
	if systemPrompt != "" {
		messages = append(messages, openai.SystemMessage(systemPrompt))
	}
	messages = append(messages, openai.UserMessage(prompt))

	resp, err := c.inner.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    messages,
		Temperature: openai.Float(c.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("llm/openai: chat completions failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm/openai: no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}
