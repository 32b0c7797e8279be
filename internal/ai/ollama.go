package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"
)

const systemPrompt = "You are an expert at reading public procurement bid " +
	"notices. You extract the requested fields from raw page text and answer " +
	"in plain numbered lines, never JSON."

// OllamaConfig locates the Ollama-served chat model.
type OllamaConfig struct {
	BaseURL string
	Model   string
}

// OllamaExtractor implements Extractor with a chat model served by Ollama.
type OllamaExtractor struct {
	chat   model.BaseChatModel
	logger *zap.Logger
}

// NewOllamaExtractor connects to the configured Ollama endpoint.
func NewOllamaExtractor(ctx context.Context, cfg OllamaConfig, logger *zap.Logger) (*OllamaExtractor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	chat, err := ollama.NewChatModel(ctx, &ollama.ChatModelConfig{
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("init ollama chat model: %w", err)
	}
	return &OllamaExtractor{chat: chat, logger: logger}, nil
}

// Extract submits the text and checklist and returns the model's raw reply.
func (e *OllamaExtractor) Extract(ctx context.Context, text string, checklist []string) (string, error) {
	msgs := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(BuildPrompt(text, checklist)),
	}
	resp, err := e.chat.Generate(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	if resp == nil || resp.Content == "" {
		return "", fmt.Errorf("empty model response")
	}
	e.logger.Debug("model response received", zap.Int("chars", len(resp.Content)))
	return resp.Content, nil
}
