package driving

import (
	"context"

	"github.com/custodia-labs/parley-cli/internal/core/domain"
)

// IngestInput is the ingestion boundary contract: an external parser
// collaborator supplies extracted plain text plus positional metadata.
// The core never reads raw bytes.
type IngestInput struct {
	// DocumentID identifies the document. Re-using an ID re-ingests
	// the document at the next version. Empty means derive from
	// SourceURI.
	DocumentID string

	// SourceURI is the original location of the document.
	SourceURI string

	// Text is the extracted plain text.
	Text string

	// FormatHint describes the original format (pdf, docx, html, ...).
	FormatHint string
}

// IngestService manages the document side of the corpus.
type IngestService interface {
	// Ingest chunks, embeds, and indexes a document. Re-ingesting an
	// existing document bumps its version and tombstones the prior
	// version's index entries. Ingestion is serialised per document
	// ID; different documents may ingest in parallel.
	Ingest(ctx context.Context, input IngestInput) (*domain.Document, error)

	// DeleteDocument removes a document: index entries are
	// tombstoned, chunks dropped, and citations referencing it in any
	// session history are flagged stale.
	DeleteDocument(ctx context.Context, documentID string) error

	// ListDocuments returns all ingested documents.
	ListDocuments(ctx context.Context) ([]domain.Document, error)
}
