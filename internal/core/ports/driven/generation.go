package driven

import "context"

// Segment is one role-tagged piece of a generation request: system
// instructions, retrieved context, conversation history, or the user
// query, in the order they should be presented to the model.
type Segment struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the segment text.
	Content string
}

// GenerateOptions configures text generation behaviour.
// Provider-specific parameters are passed through opaquely.
type GenerateOptions struct {
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64

	// StopWords are sequences that stop generation when encountered.
	StopWords []string
}

// GenerationService produces raw text from an ordered list of
// role-tagged segments. Like EmbeddingService it is a capability
// interface selected by configuration.
//
// Implementations may include:
//   - OpenAI (GPT-4 class models)
//   - Anthropic (Claude)
//   - Ollama (local models)
//
// Failures are reported as *domain.ProviderError with Kind
// domain.ErrGenerationProvider.
type GenerationService interface {
	// Generate produces a completion from the ordered segments.
	Generate(ctx context.Context, segments []Segment, opts GenerateOptions) (string, error)

	// ModelName returns the name of the model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight
	// test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
