package domain

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or generation.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is a local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is the OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is the Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	default:
		return unknownDescription
	}
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// GenerationSettings holds generation provider configuration.
type GenerationSettings struct {
	// Provider is the generation service provider.
	Provider AIProvider

	// Model is the model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI/Anthropic).
	APIKey string

	// MaxTokens caps answer length. Zero uses the provider default.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic).
	Temperature float64
}

// IsConfigured returns true if the generation provider is set up.
func (g GenerationSettings) IsConfigured() bool {
	if !g.Provider.IsValid() {
		return false
	}
	if g.Provider.RequiresAPIKey() && g.APIKey == "" {
		return false
	}
	return true
}

// ChunkerSettings holds document chunking configuration.
type ChunkerSettings struct {
	// MaxTokens is the token budget per chunk.
	MaxTokens int

	// OverlapTokens is how many tokens consecutive chunks share.
	OverlapTokens int

	// Splitter selects the boundary strategy: sentence, paragraph, or fixed.
	Splitter string
}

// RetrieverSettings holds retrieval configuration.
type RetrieverSettings struct {
	// TopK is the number of chunks to retrieve per question.
	TopK int

	// MinScore drops results below this similarity threshold.
	MinScore float64

	// Diversify limits results to one chunk per document before filling
	// remaining slots by score.
	Diversify bool
}

// MemorySettings holds conversation memory configuration.
type MemorySettings struct {
	// MaxTurns is the hard cap on live turns per session.
	MaxTurns int

	// MaxTokens is the soft cap on total context tokens.
	MaxTokens int

	// Window is how many recent turns are sent verbatim to the model.
	Window int
}

// AppSettings holds all application settings.
type AppSettings struct {
	// Embedding holds embedding provider settings.
	Embedding EmbeddingSettings

	// Generation holds generation provider settings.
	Generation GenerationSettings

	// Chunker holds chunking settings.
	Chunker ChunkerSettings

	// Retriever holds retrieval settings.
	Retriever RetrieverSettings

	// Memory holds conversation memory settings.
	Memory MemorySettings
}

// DefaultAppSettings returns settings with sensible defaults.
// Providers are left unconfigured; users must set them up via
// 'parley config set' before asking questions.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Embedding:  EmbeddingSettings{},
		Generation: GenerationSettings{},
		Chunker: ChunkerSettings{
			MaxTokens:     200,
			OverlapTokens: 40,
			Splitter:      "sentence",
		},
		Retriever: RetrieverSettings{
			TopK:      6,
			MinScore:  0,
			Diversify: true,
		},
		Memory: MemorySettings{
			MaxTurns:  20,
			MaxTokens: 2000,
			Window:    10,
		},
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
	}
}

// AllGenerationProviders returns providers that support generation.
func AllGenerationProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderAnthropic,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// DefaultGenerationModels returns default models for each generation provider.
func DefaultGenerationModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}
