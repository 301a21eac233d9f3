package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/parley-cli/internal/core/domain"
	"github.com/custodia-labs/parley-cli/internal/core/ports/driven"
	"github.com/custodia-labs/parley-cli/internal/core/ports/driving"
	"github.com/custodia-labs/parley-cli/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

// IngestConfig configures ingestion.
type IngestConfig struct {
	// EmbedBatchSize caps how many chunk texts are sent to the
	// embedding provider per call.
	EmbedBatchSize int

	// Retry bounds backoff for transient embedding failures.
	Retry RetryPolicy
}

// DefaultEmbedBatchSize is the default embedding batch size.
const DefaultEmbedBatchSize = 32

// IngestService turns extracted document text into indexed chunks.
// Ingestion is serialised per document ID; different documents may be
// ingested concurrently.
type IngestService struct {
	chunker    *Chunker
	embedder   driven.EmbeddingService
	index      driven.VectorIndex
	docStore   driven.DocumentStore
	turnStore  driven.TurnStore
	embedStore driven.EmbeddingStore
	cfg        IngestConfig

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewIngestService creates an ingestion service. embedStore is
// optional: when nil, embeddings live only in the index and the corpus
// must be re-embedded after a restart.
func NewIngestService(
	chunker *Chunker,
	embedder driven.EmbeddingService,
	index driven.VectorIndex,
	docStore driven.DocumentStore,
	turnStore driven.TurnStore,
	embedStore driven.EmbeddingStore,
	cfg IngestConfig,
) *IngestService {
	if cfg.EmbedBatchSize <= 0 {
		cfg.EmbedBatchSize = DefaultEmbedBatchSize
	}
	return &IngestService{
		chunker:    chunker,
		embedder:   embedder,
		index:      index,
		docStore:   docStore,
		turnStore:  turnStore,
		embedStore: embedStore,
		cfg:        cfg,
		locks:      make(map[string]*sync.Mutex),
	}
}

// Ingest chunks, embeds, and indexes a document. Re-ingesting an
// existing document ID bumps its version, tombstones the prior
// version's index entries, and flags stale citations in conversation
// histories.
func (s *IngestService) Ingest(ctx context.Context, input driving.IngestInput) (*domain.Document, error) {
	docID := input.DocumentID
	if docID == "" {
		docID = deriveDocumentID(input.SourceURI)
	}
	if docID == "" {
		return nil, fmt.Errorf("%w: no document ID or source URI", domain.ErrMalformedInput)
	}

	unlock := s.lockDocument(docID)
	defer unlock()

	logger.Section("Ingest")
	logger.Debug("Document %s from %s", docID, input.SourceURI)

	now := time.Now().UTC()
	doc := &domain.Document{
		ID:         docID,
		SourceURI:  input.SourceURI,
		Version:    1,
		Text:       input.Text,
		FormatHint: input.FormatHint,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	prevVersion := 0
	existing, err := s.docStore.GetDocument(ctx, docID)
	switch {
	case err == nil:
		prevVersion = existing.Version
		doc.Version = existing.Version + 1
		doc.CreatedAt = existing.CreatedAt
	case errors.Is(err, domain.ErrNotFound):
		// First ingestion.
	default:
		return nil, &domain.StageError{Stage: domain.StageIngest, Err: fmt.Errorf("get document: %w", err)}
	}

	chunks, err := s.chunker.Chunk(doc)
	if err != nil {
		return nil, &domain.StageError{Stage: domain.StageIngest, Err: err}
	}
	logger.Debug("Chunked into %d chunks (version %d)", len(chunks), doc.Version)

	entries, err := s.embedChunks(ctx, chunks)
	if err != nil {
		return nil, &domain.StageError{Stage: domain.StageIngest, Err: err}
	}

	// Tombstone the previous version before the new one becomes
	// visible, so no query ever sees two versions of one document.
	if prevVersion > 0 {
		if err := s.index.DeleteByDocument(ctx, docID, prevVersion); err != nil {
			return nil, &domain.StageError{Stage: domain.StageIngest, Err: fmt.Errorf("tombstone previous version: %w", err)}
		}
	}

	if err := s.index.Upsert(ctx, entries); err != nil {
		return nil, &domain.StageError{Stage: domain.StageIngest, Err: fmt.Errorf("index upsert: %w", err)}
	}

	if s.embedStore != nil {
		modelID := s.embedder.ModelName()
		if prevVersion > 0 {
			if err := s.embedStore.DeleteEmbeddings(ctx, modelID, docID, prevVersion); err != nil {
				return nil, &domain.StageError{Stage: domain.StageIngest, Err: fmt.Errorf("drop previous embeddings: %w", err)}
			}
		}
		if err := s.embedStore.SaveEmbeddings(ctx, modelID, entries); err != nil {
			return nil, &domain.StageError{Stage: domain.StageIngest, Err: fmt.Errorf("save embeddings: %w", err)}
		}
	}

	if err := s.docStore.SaveDocument(ctx, doc); err != nil {
		return nil, &domain.StageError{Stage: domain.StageIngest, Err: fmt.Errorf("save document: %w", err)}
	}
	if err := s.docStore.SaveChunks(ctx, chunks); err != nil {
		return nil, &domain.StageError{Stage: domain.StageIngest, Err: fmt.Errorf("save chunks: %w", err)}
	}

	if prevVersion > 0 {
		if err := s.docStore.DeleteChunks(ctx, docID, prevVersion); err != nil {
			return nil, &domain.StageError{Stage: domain.StageIngest, Err: fmt.Errorf("drop previous chunks: %w", err)}
		}
		if err := s.turnStore.MarkCitationsStale(ctx, docID); err != nil {
			logger.Warn("Failed to flag stale citations for %s: %v", docID, err)
		}
	}

	logger.Info("Ingested %s version %d (%d chunks)", docID, doc.Version, len(chunks))
	return doc, nil
}

// DeleteDocument tombstones a document's index entries, removes its
// chunks, and flags citations referencing it as stale.
func (s *IngestService) DeleteDocument(ctx context.Context, documentID string) error {
	unlock := s.lockDocument(documentID)
	defer unlock()

	if _, err := s.docStore.GetDocument(ctx, documentID); err != nil {
		return fmt.Errorf("get document: %w", err)
	}

	// Version 0 tombstones every version.
	if err := s.index.DeleteByDocument(ctx, documentID, 0); err != nil {
		return fmt.Errorf("tombstone document: %w", err)
	}
	if s.embedStore != nil {
		if err := s.embedStore.DeleteEmbeddings(ctx, "", documentID, 0); err != nil {
			return fmt.Errorf("delete embeddings: %w", err)
		}
	}
	if err := s.docStore.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if err := s.turnStore.MarkCitationsStale(ctx, documentID); err != nil {
		return fmt.Errorf("flag stale citations: %w", err)
	}

	logger.Info("Deleted document %s", documentID)
	return nil
}

// ListDocuments returns all ingested documents.
func (s *IngestService) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	return s.docStore.ListDocuments(ctx)
}

// embedChunks embeds chunk texts in batches and pairs them with their
// chunk IDs for indexing.
func (s *IngestService) embedChunks(ctx context.Context, chunks []domain.Chunk) ([]driven.VectorEntry, error) {
	entries := make([]driven.VectorEntry, 0, len(chunks))

	for start := 0; start < len(chunks); start += s.cfg.EmbedBatchSize {
		end := start + s.cfg.EmbedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		var vectors [][]float32
		err := retry(ctx, s.cfg.Retry, "embed chunks", func(ctx context.Context) error {
			var embedErr error
			vectors, embedErr = s.embedder.EmbedBatch(ctx, texts)
			return embedErr
		})
		if err != nil {
			return nil, fmt.Errorf("embed batch: %w", err)
		}
		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("embed batch: got %d vectors for %d texts", len(vectors), len(batch))
		}

		for i, c := range batch {
			entries = append(entries, driven.VectorEntry{
				ChunkID:    c.ID,
				DocumentID: c.DocumentID,
				Version:    c.Version,
				Vector:     vectors[i],
			})
		}
	}

	return entries, nil
}

// lockDocument serialises ingestion per document ID.
func (s *IngestService) lockDocument(docID string) func() {
	s.mu.Lock()
	lock, ok := s.locks[docID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[docID] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// deriveDocumentID builds a stable document ID from a source URI:
// the base name without extension, normalised to lower case.
func deriveDocumentID(sourceURI string) string {
	if sourceURI == "" {
		return ""
	}
	path := sourceURI
	if u, err := url.Parse(sourceURI); err == nil && u.Path != "" {
		path = u.Path
	}
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.ToLower(strings.ReplaceAll(base, " ", "-"))
}
