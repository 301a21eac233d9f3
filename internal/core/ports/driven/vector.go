package driven

import "context"

// VectorEntry is one (chunk, vector) pair submitted for indexing.
type VectorEntry struct {
	// ChunkID identifies the chunk.
	ChunkID string

	// DocumentID and Version identify the owning document version,
	// used by DeleteByDocument.
	DocumentID string
	Version    int

	// Vector is the embedding. Implementations normalise it at insert
	// time so similarity is consistent regardless of provider scale.
	Vector []float32
}

// VectorHit is a similarity search result.
type VectorHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// Score is the cosine similarity (0-1 for non-negative overlaps).
	Score float64
}

// VectorIndex provides semantic similarity search over embeddings.
//
// Consistency contract:
//   - Upsert entries are visible to queries on the same handle as soon
//     as Upsert returns (read-your-writes, no staleness window).
//   - DeleteByDocument tombstones entries immediately; physical
//     reclamation may be deferred to background compaction, but
//     tombstoned entries never surface in query results.
//   - Query results are ranked by descending similarity with ties
//     broken by lower chunk ID so results are reproducible.
//
// Concurrency: safe for concurrent readers; writers for a given
// document version are serialised by the ingestion service.
type VectorIndex interface {
	// Upsert inserts or replaces entries. Returns
	// domain.ErrDimensionMismatch if a vector's length disagrees with
	// the index dimension.
	Upsert(ctx context.Context, entries []VectorEntry) error

	// DeleteByDocument tombstones all entries for the given document
	// version. A version of 0 tombstones every version.
	DeleteByDocument(ctx context.Context, documentID string, version int) error

	// Query returns up to k live entries with similarity >= minScore.
	// Returns domain.ErrEmptyIndex if the index has zero live entries.
	// Fewer than k results is not an error.
	Query(ctx context.Context, vector []float32, k int, minScore float64) ([]VectorHit, error)

	// Dimension returns the fixed vector dimension for this index.
	Dimension() int

	// Close flushes pending writes and releases resources.
	Close() error
}
