package driven

import (
	"context"

	"github.com/custodia-labs/parley-cli/internal/core/domain"
)

// DocumentStore persists documents and chunks.
// Keyed by document_id for documents and chunk ID for chunks; chunk
// rows carry (document_id, version) so a whole version can be dropped.
type DocumentStore interface {
	// SaveDocument stores or updates a document.
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// GetDocument retrieves a document by ID.
	// Returns domain.ErrNotFound if it does not exist.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// ListDocuments returns all documents.
	ListDocuments(ctx context.Context) ([]domain.Document, error)

	// DeleteDocument removes a document and all its chunks.
	DeleteDocument(ctx context.Context, id string) error

	// SaveChunks stores chunks for a document version.
	SaveChunks(ctx context.Context, chunks []domain.Chunk) error

	// GetChunk retrieves a specific chunk by ID.
	// Returns domain.ErrNotFound if it does not exist.
	GetChunk(ctx context.Context, id string) (*domain.Chunk, error)

	// GetChunks retrieves all chunks for a document version,
	// ordered by sequence.
	GetChunks(ctx context.Context, documentID string, version int) ([]domain.Chunk, error)

	// DeleteChunks removes all chunks for a document version.
	// A version of 0 removes chunks of every version.
	DeleteChunks(ctx context.Context, documentID string, version int) error
}

// TurnStore persists conversation sessions and turns.
// Turns are keyed (session_id, turn_id) and immutable once appended;
// retention edits remove rows, they never rewrite content.
type TurnStore interface {
	// CreateSession stores a new session.
	CreateSession(ctx context.Context, session domain.Session) error

	// GetSession retrieves a session by ID.
	// Returns domain.ErrNotFound if it does not exist.
	GetSession(ctx context.Context, id string) (*domain.Session, error)

	// AppendTurn stores a turn for a session.
	AppendTurn(ctx context.Context, sessionID string, turn domain.Turn) error

	// ListTurns returns all live turns for a session in turn order.
	ListTurns(ctx context.Context, sessionID string) ([]domain.Turn, error)

	// DeleteTurns removes the identified turns from a session.
	// Used by the retention policy after summarisation.
	DeleteTurns(ctx context.Context, sessionID string, ids []int64) error

	// ClearSession removes all turns for a session, keeping the session.
	ClearSession(ctx context.Context, sessionID string) error

	// MarkCitationsStale flags, across all sessions, every stored
	// citation pointing at the given document. Called when a document
	// is deleted or re-ingested at a new version.
	MarkCitationsStale(ctx context.Context, documentID string) error
}
