package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GIL794/algorand-ai-contract-creator/internal/models"
)

func TestNewGenerationRequest(t *testing.T) {
	req, err := models.NewGenerationRequest("  a voting app \n", models.ProviderOllama, " llama3 ", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, "a voting app", req.Description)
	assert.Equal(t, "llama3", req.Model)

	tests := []struct {
		name        string
		description string
		provider    models.Provider
		temperature float64
		retries     int
	}{
		{"empty description", " ", models.ProviderOpenAI, 0.2, 3},
		{"unknown provider", "x", "claude", 0.2, 3},
		{"temperature below range", "x", models.ProviderOpenAI, -0.1, 3},
		{"temperature above range", "x", models.ProviderOpenAI, 1.01, 3},
		{"no attempts", "x", models.ProviderOpenAI, 0.2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := models.NewGenerationRequest(tt.description, tt.provider, "", tt.temperature, tt.retries)
			assert.ErrorIs(t, err, models.ErrInvalidInput)
		})
	}
}

func TestParseProvider(t *testing.T) {
	p, err := models.ParseProvider(" Perplexity ")
	require.NoError(t, err)
	assert.Equal(t, models.ProviderPerplexity, p)

	_, err = models.ParseProvider("")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestStateSchema_CheckLimit(t *testing.T) {
	s := models.StateSchema{NumUints: 10, NumByteSlices: 6}
	assert.Equal(t, uint64(16), s.Entries())
	assert.NoError(t, s.CheckLimit("local", models.MaxLocalStateEntries))

	s.NumUints++
	err := s.CheckLimit("local", models.MaxLocalStateEntries)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	assert.ErrorContains(t, err, "local schema requests 17 entries, limit is 16")
}

func TestGenerationResult_Succeeded(t *testing.T) {
	var nilResult *models.GenerationResult
	assert.False(t, nilResult.Succeeded())
	assert.False(t, (&models.GenerationResult{Outcome: models.OutcomeSuccess}).Succeeded())
	assert.True(t, (&models.GenerationResult{Outcome: models.OutcomeSuccess, Artifact: &models.ParsedArtifact{}}).Succeeded())
	assert.False(t, (&models.GenerationResult{Outcome: models.OutcomeFailure, Artifact: &models.ParsedArtifact{}}).Succeeded())
}
