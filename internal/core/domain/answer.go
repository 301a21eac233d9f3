package domain

// RetrievalResult is an ephemeral scored hit from the retriever.
// It is reconstructed per query and never persisted.
type RetrievalResult struct {
	ChunkID string
	Score   float64
	Rank    int
}

// Citation maps a reference marker in a generated answer back to the
// source chunk and span that supports it.
type Citation struct {
	// Marker is the 1-based reference number the model emitted, e.g. 2
	// for "[2]".
	Marker int

	// ChunkID is the cited chunk.
	ChunkID string

	// DocumentID is the owning document.
	DocumentID string

	// SourceURI is the document's original location, for display.
	SourceURI string

	// Span locates the cited text within the document.
	Span Span
}

// Answer is the result of synthesising a response to a query.
type Answer struct {
	// Text is the generated answer.
	Text string

	// Citations are the resolved reference markers, ordered by marker.
	Citations []Citation

	// CitationsIncomplete is set when the generated text contained a
	// marker that did not resolve to any supplied chunk. The answer is
	// still delivered; the unresolved marker is simply dropped.
	CitationsIncomplete bool
}
