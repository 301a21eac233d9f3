// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - EmbeddingService: Converts text to fixed-dimension vectors
//   - GenerationService: Produces answer text from role-tagged segments
//   - VectorIndex: Stores embeddings and answers top-k similarity queries
//   - DocumentStore: Document, chunk, and version persistence
//   - TurnStore: Conversation turn persistence
//   - ConfigStore: Application configuration
//   - PromptStore: LLM prompt templates
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
