package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/parley-cli/internal/core/ports/driven"
)

func TestEmbeddingStore_SaveAndLoad(t *testing.T) {
	store := newTestStore(t)
	embeds := store.EmbeddingStore()
	ctx := context.Background()

	entries := []driven.VectorEntry{
		{ChunkID: "guide:v1:0", DocumentID: "guide", Version: 1, Vector: []float32{0.6, 0.8}},
		{ChunkID: "guide:v1:1", DocumentID: "guide", Version: 1, Vector: []float32{1, 0}},
	}
	require.NoError(t, embeds.SaveEmbeddings(ctx, "nomic-embed-text", entries))

	got, err := embeds.LoadEmbeddings(ctx, "nomic-embed-text")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "guide:v1:0", got[0].ChunkID)
	assert.Equal(t, []float32{0.6, 0.8}, got[0].Vector)
	assert.Equal(t, 1, got[0].Version)
}

func TestEmbeddingStore_ModelsAreIsolated(t *testing.T) {
	store := newTestStore(t)
	embeds := store.EmbeddingStore()
	ctx := context.Background()

	require.NoError(t, embeds.SaveEmbeddings(ctx, "model-a", []driven.VectorEntry{
		{ChunkID: "guide:v1:0", DocumentID: "guide", Version: 1, Vector: []float32{1, 0}},
	}))

	got, err := embeds.LoadEmbeddings(ctx, "model-b")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEmbeddingStore_SaveReplaces(t *testing.T) {
	store := newTestStore(t)
	embeds := store.EmbeddingStore()
	ctx := context.Background()

	entry := driven.VectorEntry{ChunkID: "guide:v1:0", DocumentID: "guide", Version: 1, Vector: []float32{1, 0}}
	require.NoError(t, embeds.SaveEmbeddings(ctx, "m", []driven.VectorEntry{entry}))

	entry.Vector = []float32{0, 1}
	require.NoError(t, embeds.SaveEmbeddings(ctx, "m", []driven.VectorEntry{entry}))

	got, err := embeds.LoadEmbeddings(ctx, "m")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []float32{0, 1}, got[0].Vector)
}

func TestEmbeddingStore_DeleteByDocumentAndVersion(t *testing.T) {
	store := newTestStore(t)
	embeds := store.EmbeddingStore()
	ctx := context.Background()

	require.NoError(t, embeds.SaveEmbeddings(ctx, "m", []driven.VectorEntry{
		{ChunkID: "guide:v1:0", DocumentID: "guide", Version: 1, Vector: []float32{1, 0}},
		{ChunkID: "guide:v2:0", DocumentID: "guide", Version: 2, Vector: []float32{0, 1}},
		{ChunkID: "other:v1:0", DocumentID: "other", Version: 1, Vector: []float32{1, 1}},
	}))

	// Drop only version 1 of guide.
	require.NoError(t, embeds.DeleteEmbeddings(ctx, "m", "guide", 1))
	got, err := embeds.LoadEmbeddings(ctx, "m")
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Drop guide entirely, any model.
	require.NoError(t, embeds.DeleteEmbeddings(ctx, "", "guide", 0))
	got, err = embeds.LoadEmbeddings(ctx, "m")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "other:v1:0", got[0].ChunkID)
}
