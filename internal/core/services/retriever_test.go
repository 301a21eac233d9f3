package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/parley-cli/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/parley-cli/internal/core/domain"
	"github.com/custodia-labs/parley-cli/internal/core/ports/driven"
)

// seedChunks stores one chunk per hit so the retriever can resolve them.
func seedChunks(t *testing.T, store *memory.DocumentStore, hits []driven.VectorHit, docFor func(chunkID string) string) {
	t.Helper()
	for _, h := range hits {
		err := store.SaveChunks(context.Background(), []domain.Chunk{
			{ID: h.ChunkID, DocumentID: docFor(h.ChunkID), Version: 1, Text: "text for " + h.ChunkID},
		})
		require.NoError(t, err)
	}
}

func TestRetriever_ReturnsTopK(t *testing.T) {
	hits := []driven.VectorHit{
		{ChunkID: "a:v1:0", Score: 0.9},
		{ChunkID: "b:v1:0", Score: 0.8},
		{ChunkID: "c:v1:0", Score: 0.7},
	}
	store := memory.NewDocumentStore()
	seedChunks(t, store, hits, func(id string) string { return id[:1] })

	r := NewRetriever(&mockEmbeddingService{}, &mockVectorIndex{hits: hits}, store, RetrieverConfig{})

	results, err := r.Retrieve(context.Background(), "query", 2, RetrieveFilters{})

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a:v1:0", results[0].ChunkID)
	assert.Equal(t, "b:v1:0", results[1].ChunkID)
	assert.Equal(t, 0, results[0].Rank)
	assert.Equal(t, 1, results[1].Rank)
}

func TestRetriever_EmptyIndex(t *testing.T) {
	r := NewRetriever(&mockEmbeddingService{}, &mockVectorIndex{}, memory.NewDocumentStore(), RetrieverConfig{})

	_, err := r.Retrieve(context.Background(), "query", 3, RetrieveFilters{})

	assert.ErrorIs(t, err, domain.ErrEmptyIndex)
}

func TestRetriever_DiversifyKeepsBestPerDocument(t *testing.T) {
	// Three hits from doc-a, one from doc-b.
	hits := []driven.VectorHit{
		{ChunkID: "doc-a:v1:0", Score: 0.95},
		{ChunkID: "doc-a:v1:1", Score: 0.90},
		{ChunkID: "doc-a:v1:2", Score: 0.85},
		{ChunkID: "doc-b:v1:0", Score: 0.60},
	}
	store := memory.NewDocumentStore()
	seedChunks(t, store, hits, func(id string) string { return id[:5] })

	r := NewRetriever(&mockEmbeddingService{}, &mockVectorIndex{hits: hits}, store, RetrieverConfig{Diversify: true})

	results, err := r.Retrieve(context.Background(), "query", 3, RetrieveFilters{})

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "doc-a:v1:0", results[0].ChunkID)
	assert.Equal(t, "doc-b:v1:0", results[1].ChunkID)
}

func TestRetriever_NoDiversifyKeepsDuplicateDocuments(t *testing.T) {
	hits := []driven.VectorHit{
		{ChunkID: "doc-a:v1:0", Score: 0.95},
		{ChunkID: "doc-a:v1:1", Score: 0.90},
	}
	store := memory.NewDocumentStore()
	seedChunks(t, store, hits, func(id string) string { return id[:5] })

	r := NewRetriever(&mockEmbeddingService{}, &mockVectorIndex{hits: hits}, store, RetrieverConfig{Diversify: false})

	results, err := r.Retrieve(context.Background(), "query", 2, RetrieveFilters{})

	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestRetriever_SkipsOrphanedIndexEntries(t *testing.T) {
	hits := []driven.VectorHit{
		{ChunkID: "gone:v1:0", Score: 0.99},
		{ChunkID: "doc-a:v1:0", Score: 0.80},
	}
	store := memory.NewDocumentStore()
	// Only doc-a's chunk is stored; gone:v1:0 is an index orphan.
	require.NoError(t, store.SaveChunks(context.Background(), []domain.Chunk{
		{ID: "doc-a:v1:0", DocumentID: "doc-a", Version: 1, Text: "text"},
	}))

	r := NewRetriever(&mockEmbeddingService{}, &mockVectorIndex{hits: hits}, store, RetrieverConfig{})

	results, err := r.Retrieve(context.Background(), "query", 2, RetrieveFilters{})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc-a:v1:0", results[0].ChunkID)
}

func TestRetriever_DocumentFilter(t *testing.T) {
	hits := []driven.VectorHit{
		{ChunkID: "doc-a:v1:0", Score: 0.95},
		{ChunkID: "doc-b:v1:0", Score: 0.90},
	}
	store := memory.NewDocumentStore()
	seedChunks(t, store, hits, func(id string) string { return id[:5] })

	r := NewRetriever(&mockEmbeddingService{}, &mockVectorIndex{hits: hits}, store, RetrieverConfig{})

	results, err := r.Retrieve(context.Background(), "query", 2, RetrieveFilters{DocumentIDs: []string{"doc-b"}})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc-b:v1:0", results[0].ChunkID)
}

func TestRetriever_FewerHitsThanKIsNotAnError(t *testing.T) {
	hits := []driven.VectorHit{{ChunkID: "doc-a:v1:0", Score: 0.9}}
	store := memory.NewDocumentStore()
	seedChunks(t, store, hits, func(id string) string { return id[:5] })

	r := NewRetriever(&mockEmbeddingService{}, &mockVectorIndex{hits: hits}, store, RetrieverConfig{})

	results, err := r.Retrieve(context.Background(), "query", 10, RetrieveFilters{})

	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestRetriever_EmbedFailurePropagates(t *testing.T) {
	embedder := &mockEmbeddingService{embedErr: &domain.ProviderError{
		Kind:     domain.ErrEmbeddingProvider,
		Provider: "mock",
		Err:      errBoom,
	}}
	r := NewRetriever(embedder, &mockVectorIndex{}, memory.NewDocumentStore(), RetrieverConfig{})

	_, err := r.Retrieve(context.Background(), "query", 3, RetrieveFilters{})

	assert.ErrorIs(t, err, domain.ErrEmbeddingProvider)
}
