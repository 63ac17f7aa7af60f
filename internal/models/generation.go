package models

import (
	"fmt"
	"strings"
	"time"
)

// Provider identifies a text-generation backend.
type Provider string

const (
	ProviderOpenAI     Provider = "openai"
	ProviderPerplexity Provider = "perplexity"
	ProviderOllama     Provider = "ollama"
)

// ParseProvider maps a case-insensitive name to a known Provider.
func ParseProvider(name string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(name))); p {
	case ProviderOpenAI, ProviderPerplexity, ProviderOllama:
		return p, nil
	default:
		return "", fmt.Errorf("%w: unknown provider %q", ErrInvalidInput, name)
	}
}

// GenerationRequest is immutable once built by NewGenerationRequest.
type GenerationRequest struct {
	Description string   `json:"description"`
	Provider    Provider `json:"provider"`
	Model       string   `json:"model"`
	Temperature float64  `json:"temperature"`
	MaxRetries  int      `json:"max_retries"`
}

// NewGenerationRequest checks the ranges a request must satisfy.
func NewGenerationRequest(description string, provider Provider, model string, temperature float64, maxRetries int) (GenerationRequest, error) {
	req := GenerationRequest{
		Description: strings.TrimSpace(description),
		Provider:    provider,
		Model:       strings.TrimSpace(model),
		Temperature: temperature,
		MaxRetries:  maxRetries,
	}
	if err := req.Validate(); err != nil {
		return GenerationRequest{}, err
	}
	return req, nil
}

// Validate reports the first violated constraint.
func (r GenerationRequest) Validate() error {
	if r.Description == "" {
		return fmt.Errorf("%w: description is empty", ErrInvalidInput)
	}
	if _, err := ParseProvider(string(r.Provider)); err != nil {
		return err
	}
	if r.Temperature < 0 || r.Temperature > 1 {
		return fmt.Errorf("%w: temperature %.2f outside [0, 1]", ErrInvalidInput, r.Temperature)
	}
	if r.MaxRetries < 1 {
		return fmt.Errorf("%w: max retries must be at least 1, got %d", ErrInvalidInput, r.MaxRetries)
	}
	return nil
}

// AttemptErrorKind says which stage rejected an attempt.
type AttemptErrorKind string

const (
	AttemptErrorNone       AttemptErrorKind = ""
	AttemptErrorProvider   AttemptErrorKind = "provider"
	AttemptErrorValidation AttemptErrorKind = "validation"
)

// GenerationAttempt records one provider round trip.
type GenerationAttempt struct {
	Number      int              `json:"number"`
	Prompt      string           `json:"prompt"`
	RawResponse string           `json:"raw_response,omitempty"`
	Error       string           `json:"error,omitempty"`
	ErrorKind   AttemptErrorKind `json:"error_kind,omitempty"`
	StartedAt   time.Time        `json:"started_at"`
	Duration    time.Duration    `json:"duration"`
}

// Failed reports whether the attempt ended with an error.
func (a GenerationAttempt) Failed() bool {
	return a.Error != ""
}

// ParsedArtifact is the structured view of a model response.
type ParsedArtifact struct {
	SourceCode      string `json:"source_code"`
	Explanation     string `json:"explanation"`
	DeploymentNotes string `json:"deployment_notes"`
	AuditNotes      string `json:"audit_notes"`
}

// ValidationOutcome is the result of a structural check.
type ValidationOutcome struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// GenerationMetadata describes how a result was obtained.
type GenerationMetadata struct {
	RequestID    string    `json:"request_id"`
	Model        string    `json:"model"`
	Provider     Provider  `json:"provider"`
	AttemptCount int       `json:"attempt_count"`
	Timestamp    time.Time `json:"timestamp"`
}

// GenerationResult is produced once per request and never mutated.
type GenerationResult struct {
	Outcome  Outcome             `json:"outcome"`
	Artifact *ParsedArtifact     `json:"artifact,omitempty"`
	Attempts []GenerationAttempt `json:"attempts"`
	Metadata GenerationMetadata  `json:"metadata"`
	Error    string              `json:"error,omitempty"`
}

// Succeeded reports whether the result carries an artifact.
func (r *GenerationResult) Succeeded() bool {
	return r != nil && r.Outcome == OutcomeSuccess && r.Artifact != nil
}
