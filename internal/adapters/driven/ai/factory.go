// Package ai provides factory functions for creating AI service adapters.
package ai

import (
	"context"
	"fmt"
	"time"

	ollamaembed "github.com/custodia-labs/parley-cli/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/parley-cli/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/custodia-labs/parley-cli/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/custodia-labs/parley-cli/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/parley-cli/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/parley-cli/internal/core/domain"
	"github.com/custodia-labs/parley-cli/internal/core/ports/driven"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// CreateAndValidateEmbeddingService creates an embedding service and validates connectivity.
// Returns nil without error when the provider is not configured.
func CreateAndValidateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return nil, fmt.Errorf("embedding provider: %w. Run 'parley config set embedding.provider ...' to fix", err)
	}
	if svc == nil {
		return nil, nil
	}

	// Validate connectivity.
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("embedding provider unreachable: %w", err)
	}

	return svc, nil
}

// CreateAndValidateGenerationService creates a generation service and validates connectivity.
// Returns nil without error when the provider is not configured.
func CreateAndValidateGenerationService(settings *domain.GenerationSettings) (driven.GenerationService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	svc, err := CreateGenerationService(settings)
	if err != nil {
		return nil, fmt.Errorf("generation provider: %w. Run 'parley config set generation.provider ...' to fix", err)
	}
	if svc == nil {
		return nil, nil
	}

	// Validate connectivity.
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("generation provider unreachable: %w", err)
	}

	return svc, nil
}

// CreateEmbeddingService creates the appropriate embedding service based on settings.
// Returns nil if the provider is not configured.
func CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return createOllamaEmbedding(settings), nil

	case domain.AIProviderOpenAI:
		return createOpenAIEmbedding(settings)

	case domain.AIProviderAnthropic:
		// Anthropic does not support embeddings.
		return nil, fmt.Errorf("anthropic does not support embeddings, use ollama or openai")

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", settings.Provider)
	}
}

// CreateGenerationService creates the appropriate generation service based on settings.
// Returns nil if the provider is not configured.
func CreateGenerationService(settings *domain.GenerationSettings) (driven.GenerationService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return createOllamaGeneration(settings), nil

	case domain.AIProviderOpenAI:
		return createOpenAIGeneration(settings)

	case domain.AIProviderAnthropic:
		return createAnthropicGeneration(settings)

	default:
		return nil, fmt.Errorf("unsupported generation provider: %s", settings.Provider)
	}
}

// createOllamaEmbedding creates an Ollama embedding service.
func createOllamaEmbedding(settings *domain.EmbeddingSettings) driven.EmbeddingService {
	dimensions := domain.EmbeddingDimensions()[settings.Model]
	if dimensions == 0 {
		dimensions = ollamaembed.DefaultDimensions
	}

	return ollamaembed.NewEmbeddingService(ollamaembed.Config{
		BaseURL:    settings.BaseURL,
		Model:      settings.Model,
		Dimensions: dimensions,
	})
}

// createOpenAIEmbedding creates an OpenAI embedding service.
func createOpenAIEmbedding(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	dimensions := domain.EmbeddingDimensions()[settings.Model]

	return openaiembed.NewEmbeddingService(openaiembed.Config{
		APIKey:     settings.APIKey,
		BaseURL:    settings.BaseURL,
		Model:      settings.Model,
		Dimensions: dimensions,
	})
}

// createOllamaGeneration creates an Ollama generation service.
func createOllamaGeneration(settings *domain.GenerationSettings) driven.GenerationService {
	return ollamallm.NewGenerationService(ollamallm.Config{
		BaseURL: settings.BaseURL,
		Model:   settings.Model,
	})
}

// createOpenAIGeneration creates an OpenAI generation service.
func createOpenAIGeneration(settings *domain.GenerationSettings) (driven.GenerationService, error) {
	return openaillm.NewGenerationService(openaillm.Config{
		APIKey:  settings.APIKey,
		BaseURL: settings.BaseURL,
		Model:   settings.Model,
	})
}

// createAnthropicGeneration creates an Anthropic generation service.
func createAnthropicGeneration(settings *domain.GenerationSettings) (driven.GenerationService, error) {
	return anthropicllm.NewGenerationService(anthropicllm.Config{
		APIKey:  settings.APIKey,
		BaseURL: settings.BaseURL,
		Model:   settings.Model,
	})
}
