package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/parley-cli/internal/core/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_Migrations(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Reopening must not fail or re-apply migrations.
	store, err = NewStore(dir)
	require.NoError(t, err)
	defer store.Close()

	var version int
	row := store.db.QueryRow("SELECT MAX(version) FROM schema_migrations")
	require.NoError(t, row.Scan(&version))
	assert.Equal(t, 2, version)
}

func TestDocumentStore_SaveAndGet(t *testing.T) {
	store := newTestStore(t)
	docs := store.DocumentStore()
	ctx := context.Background()

	doc := &domain.Document{
		ID:        "guide",
		SourceURI: "file:///docs/guide.md",
		Version:   1,
		Text:      "The sky is blue. Water is wet.",
	}
	require.NoError(t, docs.SaveDocument(ctx, doc))

	got, err := docs.GetDocument(ctx, "guide")
	require.NoError(t, err)
	assert.Equal(t, "guide", got.ID)
	assert.Equal(t, 1, got.Version)
	assert.Equal(t, doc.Text, got.Text)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestDocumentStore_GetMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.DocumentStore().GetDocument(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentStore_SaveUpdatesVersion(t *testing.T) {
	store := newTestStore(t)
	docs := store.DocumentStore()
	ctx := context.Background()

	doc := &domain.Document{ID: "guide", Version: 1, Text: "old"}
	require.NoError(t, docs.SaveDocument(ctx, doc))

	doc.Version = 2
	doc.Text = "new"
	require.NoError(t, docs.SaveDocument(ctx, doc))

	got, err := docs.GetDocument(ctx, "guide")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
	assert.Equal(t, "new", got.Text)

	list, err := docs.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestDocumentStore_Chunks(t *testing.T) {
	store := newTestStore(t)
	docs := store.DocumentStore()
	ctx := context.Background()

	chunks := []domain.Chunk{
		{ID: domain.ChunkID("guide", 1, 0), DocumentID: "guide", Version: 1, Seq: 0,
			Text: "The sky is blue.", Span: domain.Span{Start: 0, End: 16}, TokenCount: 4},
		{ID: domain.ChunkID("guide", 1, 1), DocumentID: "guide", Version: 1, Seq: 1,
			Text: "Water is wet.", Span: domain.Span{Start: 17, End: 30}, TokenCount: 3},
	}
	require.NoError(t, docs.SaveChunks(ctx, chunks))

	got, err := docs.GetChunk(ctx, "guide:v1:1")
	require.NoError(t, err)
	assert.Equal(t, "Water is wet.", got.Text)
	assert.Equal(t, 17, got.Span.Start)

	list, err := docs.GetChunks(ctx, "guide", 1)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 0, list[0].Seq)
	assert.Equal(t, 1, list[1].Seq)
}

func TestDocumentStore_DeleteChunksByVersion(t *testing.T) {
	store := newTestStore(t)
	docs := store.DocumentStore()
	ctx := context.Background()

	chunks := []domain.Chunk{
		{ID: domain.ChunkID("guide", 1, 0), DocumentID: "guide", Version: 1, Seq: 0, Text: "v1"},
		{ID: domain.ChunkID("guide", 2, 0), DocumentID: "guide", Version: 2, Seq: 0, Text: "v2"},
	}
	require.NoError(t, docs.SaveChunks(ctx, chunks))

	require.NoError(t, docs.DeleteChunks(ctx, "guide", 1))

	_, err := docs.GetChunk(ctx, "guide:v1:0")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = docs.GetChunk(ctx, "guide:v2:0")
	assert.NoError(t, err)
}

func TestDocumentStore_DeleteDocumentRemovesChunks(t *testing.T) {
	store := newTestStore(t)
	docs := store.DocumentStore()
	ctx := context.Background()

	require.NoError(t, docs.SaveDocument(ctx, &domain.Document{ID: "guide", Version: 1, Text: "x"}))
	require.NoError(t, docs.SaveChunks(ctx, []domain.Chunk{
		{ID: domain.ChunkID("guide", 1, 0), DocumentID: "guide", Version: 1, Text: "x"},
	}))

	require.NoError(t, docs.DeleteDocument(ctx, "guide"))

	_, err := docs.GetDocument(ctx, "guide")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = docs.GetChunk(ctx, "guide:v1:0")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTurnStore_Sessions(t *testing.T) {
	store := newTestStore(t)
	turns := store.TurnStore()
	ctx := context.Background()

	session := domain.Session{ID: "s1", CreatedAt: time.Now().UTC()}
	require.NoError(t, turns.CreateSession(ctx, session))

	got, err := turns.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.ID)

	err = turns.CreateSession(ctx, session)
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	_, err = turns.GetSession(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTurnStore_AppendAndList(t *testing.T) {
	store := newTestStore(t)
	turns := store.TurnStore()
	ctx := context.Background()

	require.NoError(t, turns.CreateSession(ctx, domain.Session{ID: "s1"}))
	require.NoError(t, turns.AppendTurn(ctx, "s1", domain.Turn{
		ID: 1, Role: domain.RoleUser, Content: "why is the sky blue?",
	}))
	require.NoError(t, turns.AppendTurn(ctx, "s1", domain.Turn{
		ID: 2, Role: domain.RoleAssistant, Content: "Rayleigh scattering. [1]",
		Citations: []domain.TurnCitation{
			{ChunkID: "guide:v1:0", DocumentID: "guide", Span: domain.Span{Start: 0, End: 16}},
		},
	}))

	list, err := turns.ListTurns(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, domain.RoleUser, list[0].Role)
	assert.Equal(t, domain.RoleAssistant, list[1].Role)
	require.Len(t, list[1].Citations, 1)
	assert.Equal(t, "guide:v1:0", list[1].Citations[0].ChunkID)
	assert.False(t, list[1].Citations[0].Stale)
}

func TestTurnStore_DeleteTurns(t *testing.T) {
	store := newTestStore(t)
	turns := store.TurnStore()
	ctx := context.Background()

	require.NoError(t, turns.CreateSession(ctx, domain.Session{ID: "s1"}))
	for i := int64(1); i <= 4; i++ {
		require.NoError(t, turns.AppendTurn(ctx, "s1", domain.Turn{
			ID: i, Role: domain.RoleUser, Content: "q",
		}))
	}

	require.NoError(t, turns.DeleteTurns(ctx, "s1", []int64{1, 2}))

	list, err := turns.ListTurns(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(3), list[0].ID)
}

func TestTurnStore_ClearSession(t *testing.T) {
	store := newTestStore(t)
	turns := store.TurnStore()
	ctx := context.Background()

	require.NoError(t, turns.CreateSession(ctx, domain.Session{ID: "s1"}))
	require.NoError(t, turns.AppendTurn(ctx, "s1", domain.Turn{ID: 1, Role: domain.RoleUser, Content: "q"}))

	require.NoError(t, turns.ClearSession(ctx, "s1"))

	list, err := turns.ListTurns(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, list)

	// Session itself survives a clear.
	_, err = turns.GetSession(ctx, "s1")
	assert.NoError(t, err)
}

func TestTurnStore_MarkCitationsStale(t *testing.T) {
	store := newTestStore(t)
	turns := store.TurnStore()
	ctx := context.Background()

	require.NoError(t, turns.CreateSession(ctx, domain.Session{ID: "s1"}))
	require.NoError(t, turns.AppendTurn(ctx, "s1", domain.Turn{
		ID: 1, Role: domain.RoleAssistant, Content: "a [1] b [2]",
		Citations: []domain.TurnCitation{
			{ChunkID: "guide:v1:0", DocumentID: "guide"},
			{ChunkID: "other:v1:0", DocumentID: "other"},
		},
	}))

	require.NoError(t, turns.MarkCitationsStale(ctx, "guide"))

	list, err := turns.ListTurns(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Len(t, list[0].Citations, 2)
	assert.True(t, list[0].Citations[0].Stale)
	assert.False(t, list[0].Citations[1].Stale)
}
