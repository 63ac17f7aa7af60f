// Package provider talks to text-generation backends.
package provider

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/GIL794/algorand-ai-contract-creator/internal/config"
	"github.com/GIL794/algorand-ai-contract-creator/internal/metrics"
	"github.com/GIL794/algorand-ai-contract-creator/internal/models"
)

var (
	// ErrProviderFailed wraps every failed call to a backend.
	ErrProviderFailed = errors.New("provider call failed")
	// ErrNotConfigured is returned for a provider without credentials.
	ErrNotConfigured = errors.New("provider is not configured")
)

type CompletionRequest struct {
	Model        string
	SystemPrompt string
	UserPrompt   string
	Temperature  float64
	MaxTokens    int
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	// Estimated is set when the backend did not report usage.
	Estimated bool
}

type Completion struct {
	Text  string
	Model string
	Usage Usage
}

// Client is a single backend.
type Client interface {
	Name() models.Provider
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
}

const (
	DefaultOpenAIModel     = "gpt-4"
	DefaultPerplexityModel = "sonar"
	DefaultOllamaModel     = "llama3"
)

var (
	openAIModelPattern = regexp.MustCompile(`^(gpt|o[0-9])`)
	perplexityModels   = map[string]bool{"sonar": true, "sonar-pro": true}
)

// NormalizeModel maps a requested model name onto one the provider accepts.
func NormalizeModel(p models.Provider, model string) string {
	model = strings.TrimSpace(model)
	switch p {
	case models.ProviderOpenAI:
		if openAIModelPattern.MatchString(strings.ToLower(model)) {
			return model
		}
		return DefaultOpenAIModel
	case models.ProviderPerplexity:
		if perplexityModels[strings.ToLower(model)] {
			return strings.ToLower(model)
		}
		return DefaultPerplexityModel
	case models.ProviderOllama:
		if model == "" {
			return DefaultOllamaModel
		}
		return model
	default:
		return model
	}
}

// Registry holds one client per configured provider.
type Registry struct {
	clients map[models.Provider]Client
}

// NewRegistry builds a client for every provider that has credentials.
// Ollama needs only a base URL.
func NewRegistry(cfg config.AIConfig, m *metrics.Metrics, logger *zap.Logger) (*Registry, error) {
	r := &Registry{clients: make(map[models.Provider]Client)}
	log := logger.Named("provider")

	if cfg.OpenAIAPIKey != "" {
		r.clients[models.ProviderOpenAI] = NewOpenAICompatible(models.ProviderOpenAI, cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.Timeout, m, log)
	}
	if cfg.PerplexityAPIKey != "" {
		r.clients[models.ProviderPerplexity] = NewOpenAICompatible(models.ProviderPerplexity, cfg.PerplexityBaseURL, cfg.PerplexityAPIKey, cfg.Timeout, m, log)
	}
	if cfg.OllamaBaseURL != "" {
		c, err := NewOllama(cfg.OllamaBaseURL, cfg.Timeout, m, log)
		if err != nil {
			return nil, err
		}
		r.clients[models.ProviderOllama] = c
	}

	names := make([]string, 0, len(r.clients))
	for p := range r.clients {
		names = append(names, string(p))
	}
	log.Info("Provider registry ready", zap.Strings("providers", names))
	return r, nil
}

// NewStaticRegistry wraps already built clients.
func NewStaticRegistry(clients ...Client) *Registry {
	r := &Registry{clients: make(map[models.Provider]Client, len(clients))}
	for _, c := range clients {
		r.clients[c.Name()] = c
	}
	return r
}

func (r *Registry) Get(p models.Provider) (Client, error) {
	c, ok := r.clients[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotConfigured, p)
	}
	return c, nil
}
