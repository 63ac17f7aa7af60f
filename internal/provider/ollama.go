package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"go.uber.org/zap"

	"github.com/GIL794/algorand-ai-contract-creator/internal/metrics"
	"github.com/GIL794/algorand-ai-contract-creator/internal/models"
)

type ollamaClient struct {
	client  *api.Client
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewOllama talks to a local daemon through its native chat API.
func NewOllama(baseURL string, timeout time.Duration, m *metrics.Metrics, logger *zap.Logger) (Client, error) {
	// The native API lives at the root, not under /v1.
	baseURL = strings.TrimSuffix(strings.TrimSuffix(baseURL, "/"), "/v1")
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama base url %q: %w", baseURL, err)
	}

	return &ollamaClient{
		client:  api.NewClient(parsed, &http.Client{Timeout: timeout}),
		metrics: m,
		logger:  logger.With(zap.String("provider", string(models.ProviderOllama)), zap.String("base_url", baseURL)),
	}, nil
}

func (c *ollamaClient) Name() models.Provider { return models.ProviderOllama }

func (c *ollamaClient) Complete(ctx context.Context, req CompletionRequest) (Completion, error) {
	model := NormalizeModel(models.ProviderOllama, req.Model)
	stream := false
	chat := &api.ChatRequest{
		Model: model,
		Messages: []api.Message{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserPrompt},
		},
		Stream: &stream,
		Options: map[string]any{
			"temperature": req.Temperature,
			"num_predict": req.MaxTokens,
		},
	}

	start := time.Now()
	var resp api.ChatResponse
	err := c.client.Chat(ctx, chat, func(r api.ChatResponse) error {
		resp = r
		return nil
	})
	duration := time.Since(start)
	if err != nil {
		c.logger.Warn("Ollama chat failed", zap.String("model", model), zap.Duration("duration", duration), zap.Error(err))
		return Completion{}, fmt.Errorf("%w: %s: %v", ErrProviderFailed, models.ProviderOllama, err)
	}
	if strings.TrimSpace(resp.Message.Content) == "" {
		return Completion{}, fmt.Errorf("%w: %s: empty response", ErrProviderFailed, models.ProviderOllama)
	}

	usage := Usage{PromptTokens: resp.PromptEvalCount, CompletionTokens: resp.EvalCount}
	c.metrics.ProviderCall(string(models.ProviderOllama), model, duration.Seconds(), usage.PromptTokens, usage.CompletionTokens)
	return Completion{Text: resp.Message.Content, Model: model, Usage: usage}, nil
}
