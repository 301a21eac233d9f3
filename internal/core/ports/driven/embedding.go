package driven

import "context"

// EmbeddingService generates vector embeddings from text.
// This is a capability interface: the concrete provider is selected by
// configuration, never hardcoded.
//
// Implementations may include:
//   - OpenAI (text-embedding-3-small, text-embedding-3-large)
//   - Ollama (nomic-embed-text, all-minilm)
//   - Local models via inference servers
//
// Failures are reported as *domain.ProviderError with Kind
// domain.ErrEmbeddingProvider. Transient failures (timeouts, 429, 5xx)
// may be retried by the caller with backoff; permanent failures
// propagate immediately.
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	// The result has the same length and order as texts. Implementations
	// may batch internally; callers must not assume per-item latency.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size (e.g., 384, 768, 1536).
	// This must match the VectorIndex configuration.
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	// Index entries are keyed per (model, chunk); a model change
	// requires re-embedding.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight
	// test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
