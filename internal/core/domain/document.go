package domain

import (
	"fmt"
	"time"
)

// Document represents an ingested document.
// It is the canonical representation after an external parser has
// extracted plain text from the original bytes.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// SourceURI is the original location (file path, URL, etc).
	SourceURI string

	// Version is a monotonic counter incremented on each re-upload.
	// Chunks are derived from exactly one (ID, Version) pair and are
	// invalidated when a newer version is ingested.
	Version int

	// Text is the full extracted text. Immutable once chunked
	// under a given version.
	Text string

	// FormatHint describes the original format (pdf, docx, html, ...).
	// Informational only; the core never reads raw bytes.
	FormatHint string

	// CreatedAt is when the document was first ingested.
	CreatedAt time.Time

	// UpdatedAt is when the current version was ingested.
	UpdatedAt time.Time
}

// Span is a half-open [Start, End) character range into a document's
// extracted text. It is the canonical citation anchor; mapping back to
// original-format coordinates (PDF pages, DOM positions) belongs to the
// external parser layer.
type Span struct {
	Start int
	End   int
}

// Len returns the number of characters covered by the span.
func (s Span) Len() int { return s.End - s.Start }

// Chunk represents a searchable unit within a document version.
// Documents are split into overlapping chunks for granular retrieval.
type Chunk struct {
	// ID is deterministically derived from (DocumentID, Version, Seq),
	// so re-chunking the same version is idempotent. See ChunkID.
	ID string

	// DocumentID links to the owning Document.
	DocumentID string

	// Version is the document version this chunk was derived from.
	Version int

	// Seq is the ordinal position within the document.
	// Strictly increasing; spans of consecutive chunks are
	// non-decreasing and may overlap by the configured overlap.
	Seq int

	// Text is the chunk content.
	Text string

	// Span locates Text within the document's extracted text.
	Span Span

	// TokenCount is the number of tokens in Text under the
	// chunker's token counter.
	TokenCount int
}

// ChunkID derives the stable identifier for a chunk.
// The format is "documentID:vVersion:seq".
func ChunkID(documentID string, version, seq int) string {
	return fmt.Sprintf("%s:v%d:%d", documentID, version, seq)
}

// Embedding pairs a chunk with its vector representation under a
// specific embedding model. One embedding exists per (chunk, model) pair
// and is recomputed if the model changes.
type Embedding struct {
	ChunkID string
	ModelID string
	Vector  []float32
}
