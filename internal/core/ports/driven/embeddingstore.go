package driven

import "context"

// EmbeddingStore persists index entries keyed by (model, chunk) so the
// in-memory vector index can be rebuilt without re-embedding the
// corpus. Entries for one model are invisible to another: a model
// change requires re-ingestion.
type EmbeddingStore interface {
	// SaveEmbeddings stores entries for a model, replacing any existing
	// entries with the same chunk ID.
	SaveEmbeddings(ctx context.Context, modelID string, entries []VectorEntry) error

	// LoadEmbeddings returns all stored entries for a model.
	LoadEmbeddings(ctx context.Context, modelID string) ([]VectorEntry, error)

	// DeleteEmbeddings removes entries for a document. A version of 0
	// removes entries of every version; a model of "" removes entries
	// of every model.
	DeleteEmbeddings(ctx context.Context, modelID, documentID string, version int) error
}
