package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/GIL794/algorand-ai-contract-creator/internal/metrics"
	"github.com/GIL794/algorand-ai-contract-creator/internal/models"
)

// openAICompatible serves any backend that speaks the chat completions API.
type openAICompatible struct {
	name    models.Provider
	client  *openaigo.Client
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewOpenAICompatible(name models.Provider, baseURL, apiKey string, timeout time.Duration, m *metrics.Metrics, logger *zap.Logger) Client {
	cfg := openaigo.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	return &openAICompatible{
		name:    name,
		client:  openaigo.NewClientWithConfig(cfg),
		metrics: m,
		logger:  logger.With(zap.String("provider", string(name)), zap.String("base_url", cfg.BaseURL)),
	}
}

func (c *openAICompatible) Name() models.Provider { return c.name }

func (c *openAICompatible) Complete(ctx context.Context, req CompletionRequest) (Completion, error) {
	model := NormalizeModel(c.name, req.Model)
	if strings.TrimSpace(req.SystemPrompt) == "" {
		return Completion{}, fmt.Errorf("%w: system prompt is empty", ErrProviderFailed)
	}

	chat := openaigo.ChatCompletionRequest{
		Model: model,
		Messages: []openaigo.ChatCompletionMessage{
			{Role: openaigo.ChatMessageRoleSystem, Content: req.SystemPrompt},
			{Role: openaigo.ChatMessageRoleUser, Content: req.UserPrompt},
		},
		Temperature: float32(req.Temperature),
	}
	// Reasoning models reject max_tokens.
	if strings.HasPrefix(model, "o") {
		chat.MaxCompletionTokens = req.MaxTokens
	} else {
		chat.MaxTokens = req.MaxTokens
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, chat)
	duration := time.Since(start)
	if err != nil {
		c.logger.Warn("Chat completion failed", zap.String("model", model), zap.Duration("duration", duration), zap.Error(err))
		return Completion{}, fmt.Errorf("%w: %s: %v", ErrProviderFailed, c.name, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		c.logger.Warn("Chat completion returned no content", zap.String("model", model), zap.Duration("duration", duration))
		return Completion{}, fmt.Errorf("%w: %s: empty response", ErrProviderFailed, c.name)
	}

	text := resp.Choices[0].Message.Content
	usage := Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}
	if usage.PromptTokens == 0 && usage.CompletionTokens == 0 {
		usage = Usage{
			PromptTokens:     EstimateTokens(model, req.SystemPrompt+req.UserPrompt),
			CompletionTokens: EstimateTokens(model, text),
			Estimated:        true,
		}
	}

	c.metrics.ProviderCall(string(c.name), model, duration.Seconds(), usage.PromptTokens, usage.CompletionTokens)
	c.logger.Debug("Chat completion received",
		zap.String("model", model),
		zap.Duration("duration", duration),
		zap.Int("prompt_tokens", usage.PromptTokens),
		zap.Int("completion_tokens", usage.CompletionTokens),
		zap.Bool("estimated", usage.Estimated),
	)
	return Completion{Text: text, Model: model, Usage: usage}, nil
}
