// Package generator drives the generate, parse and validate loop against a
// text-generation provider.
package generator

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GIL794/algorand-ai-contract-creator/internal/audit"
	"github.com/GIL794/algorand-ai-contract-creator/internal/metrics"
	"github.com/GIL794/algorand-ai-contract-creator/internal/models"
	"github.com/GIL794/algorand-ai-contract-creator/internal/parser"
	"github.com/GIL794/algorand-ai-contract-creator/internal/provider"
)

// Error prefixes let callers tell the failing stage apart.
const (
	ProviderErrorPrefix   = "provider error: "
	ValidationErrorPrefix = "validation failed: "
)

const (
	explainTemperature = 0.3
	explainMaxTokens   = 800
	jitterFraction     = 0.1
)

// Clients resolves a provider to its client.
type Clients interface {
	Get(p models.Provider) (provider.Client, error)
}

// Validator checks extracted source.
type Validator interface {
	Validate(source string) models.ValidationOutcome
}

type Config struct {
	SystemPrompt   string
	MaxTokens      int
	BaseRetryDelay time.Duration
}

type Orchestrator struct {
	clients   Clients
	validator Validator
	audit     audit.Recorder
	metrics   *metrics.Metrics
	logger    *zap.Logger
	cfg       Config

	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() float64
}

func New(clients Clients, v Validator, rec audit.Recorder, m *metrics.Metrics, logger *zap.Logger, cfg Config) *Orchestrator {
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt()
	}
	if rec == nil {
		rec = audit.Nop{}
	}
	return &Orchestrator{
		clients:   clients,
		validator: v,
		audit:     rec,
		metrics:   m,
		logger:    logger.Named("generator"),
		cfg:       cfg,
		now:       time.Now,
		sleep:     sleepContext,
		jitter:    func() float64 { return rand.Float64()*2 - 1 },
	}
}

// Generate runs at most req.MaxRetries attempts. It never returns an error:
// every failure is described by the result.
func (o *Orchestrator) Generate(ctx context.Context, req models.GenerationRequest) *models.GenerationResult {
	requestID := audit.RequestID(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
		ctx = audit.WithRequestID(ctx, requestID)
	}
	model := provider.NormalizeModel(req.Provider, req.Model)
	log := o.logger.With(
		zap.String("request_id", requestID),
		zap.String("provider", string(req.Provider)),
		zap.String("model", model),
	)

	result := &models.GenerationResult{
		Outcome: models.OutcomeFailure,
		Metadata: models.GenerationMetadata{
			RequestID: requestID,
			Model:     model,
			Provider:  req.Provider,
			Timestamp: o.now().UTC(),
		},
	}

	if err := req.Validate(); err != nil {
		result.Error = err.Error()
		return o.finish(result, log)
	}
	client, err := o.clients.Get(req.Provider)
	if err != nil {
		result.Error = ProviderErrorPrefix + err.Error()
		return o.finish(result, log)
	}

	log.Info("Starting generation", zap.Int("max_attempts", req.MaxRetries))

	for n := 1; n <= req.MaxRetries; n++ {
		if err := ctx.Err(); err != nil {
			result.Error = fmt.Sprintf("generation cancelled after %d attempts: %v", len(result.Attempts), err)
			return o.finish(result, log)
		}

		attempt, artifact := o.attempt(ctx, client, req, model, n, lastError(result.Attempts))
		result.Attempts = append(result.Attempts, attempt)
		result.Metadata.AttemptCount = len(result.Attempts)

		if !attempt.Failed() {
			result.Outcome = models.OutcomeSuccess
			result.Artifact = artifact
			return o.finish(result, log)
		}

		log.Warn("Generation attempt failed",
			zap.Int("attempt", n),
			zap.String("kind", string(attempt.ErrorKind)),
			zap.String("error", attempt.Error),
		)

		if attempt.ErrorKind == models.AttemptErrorProvider && n < req.MaxRetries {
			delay := Backoff(o.cfg.BaseRetryDelay, n, o.jitter())
			if err := o.sleep(ctx, delay); err != nil {
				result.Error = fmt.Sprintf("generation cancelled after %d attempts: %v", len(result.Attempts), err)
				return o.finish(result, log)
			}
		}
	}

	result.Error = fmt.Sprintf("exhausted retries after %d attempts; last error: %s", len(result.Attempts), lastError(result.Attempts))
	return o.finish(result, log)
}

func (o *Orchestrator) attempt(ctx context.Context, client provider.Client, req models.GenerationRequest, model string, n int, previousError string) (models.GenerationAttempt, *models.ParsedArtifact) {
	prompt := BuildUserPrompt(req.Description, previousError)
	attempt := models.GenerationAttempt{Number: n, Prompt: prompt, StartedAt: o.now().UTC()}
	rec := audit.Record{
		Stage:    audit.StageGeneration,
		Summary:  req.Description,
		Attempt:  n,
		Provider: string(req.Provider),
		Model:    model,
	}

	completion, err := client.Complete(ctx, provider.CompletionRequest{
		Model:        model,
		SystemPrompt: o.cfg.SystemPrompt,
		UserPrompt:   prompt,
		Temperature:  req.Temperature,
		MaxTokens:    o.cfg.MaxTokens,
	})
	attempt.Duration = o.now().Sub(attempt.StartedAt)
	if err != nil {
		attempt.Error = ProviderErrorPrefix + err.Error()
		attempt.ErrorKind = models.AttemptErrorProvider
		o.metrics.GenerationAttempt(string(req.Provider), model, "provider_error")
		rec.Outcome, rec.Error = audit.OutcomeFailure, attempt.Error
		o.audit.Record(ctx, rec)
		return attempt, nil
	}

	attempt.RawResponse = completion.Text
	artifact := parser.Parse(completion.Text)
	rec.Snippet = artifact.SourceCode

	outcome := o.validator.Validate(artifact.SourceCode)
	if !outcome.Valid {
		attempt.Error = ValidationErrorPrefix + outcome.Reason
		attempt.ErrorKind = models.AttemptErrorValidation
		o.metrics.GenerationAttempt(string(req.Provider), model, "validation_failed")
		rec.Outcome, rec.Error = audit.OutcomeFailure, attempt.Error
		o.audit.Record(ctx, rec)
		return attempt, nil
	}

	o.metrics.GenerationAttempt(string(req.Provider), model, "success")
	rec.Outcome = audit.OutcomeSuccess
	o.audit.Record(ctx, rec)
	return attempt, &artifact
}

func (o *Orchestrator) finish(result *models.GenerationResult, log *zap.Logger) *models.GenerationResult {
	o.metrics.GenerationResult(string(result.Metadata.Provider), string(result.Outcome))
	if result.Succeeded() {
		log.Info("Generation succeeded", zap.Int("attempts", result.Metadata.AttemptCount))
	} else {
		log.Warn("Generation failed", zap.Int("attempts", result.Metadata.AttemptCount), zap.String("error", result.Error))
	}
	return result
}

// Explain asks the provider for a plain-language summary of source.
func (o *Orchestrator) Explain(ctx context.Context, p models.Provider, model, source string) (string, error) {
	if strings.TrimSpace(source) == "" {
		return "", fmt.Errorf("%w: source is empty", models.ErrInvalidInput)
	}
	client, err := o.clients.Get(p)
	if err != nil {
		return "", err
	}
	completion, err := client.Complete(ctx, provider.CompletionRequest{
		Model:        provider.NormalizeModel(p, model),
		SystemPrompt: explainSystemPrompt,
		UserPrompt:   buildExplainPrompt(source),
		Temperature:  explainTemperature,
		MaxTokens:    explainMaxTokens,
	})
	if err != nil {
		o.logger.Warn("Explanation failed", zap.String("provider", string(p)), zap.Error(err))
		return "", err
	}
	return completion.Text, nil
}

// Backoff returns base*2^(attempt-1) scaled by jitter in [-1, 1] times 10%,
// never less than base.
func Backoff(base time.Duration, attempt int, jitter float64) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(base) * math.Pow(2, float64(attempt-1))
	delay *= 1 + jitterFraction*math.Max(-1, math.Min(1, jitter))
	if delay > float64(math.MaxInt64) {
		return time.Duration(math.MaxInt64)
	}
	if d := time.Duration(delay); d > base {
		return d
	}
	return base
}

func lastError(attempts []models.GenerationAttempt) string {
	if len(attempts) == 0 {
		return ""
	}
	return attempts[len(attempts)-1].Error
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

