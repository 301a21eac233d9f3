// Package sqlite provides durable storage for documents, chunks, and
// conversation turns, backed by modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/parley-cli/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/parley-cli/internal/core/domain"
	"github.com/custodia-labs/parley-cli/internal/core/ports/driven"
)

// Store is a unified SQLite-based storage that provides access to the
// document and turn store interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.parley/data/corpus.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".parley", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "corpus.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// DocumentStore returns a DocumentStore interface backed by this store.
func (s *Store) DocumentStore() driven.DocumentStore {
	return &documentStore{store: s}
}

// TurnStore returns a TurnStore interface backed by this store.
func (s *Store) TurnStore() driven.TurnStore {
	return &turnStore{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}
		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Document Store ====================

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

// SaveDocument stores or updates a document.
func (s *documentStore) SaveDocument(ctx context.Context, doc *domain.Document) error {
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = now
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO documents (id, source_uri, version, format_hint, text, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source_uri = excluded.source_uri,
			version = excluded.version,
			format_hint = excluded.format_hint,
			text = excluded.text,
			updated_at = excluded.updated_at
	`, doc.ID, doc.SourceURI, doc.Version, doc.FormatHint, doc.Text,
		doc.CreatedAt, doc.UpdatedAt)

	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *documentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, source_uri, version, format_hint, text, created_at, updated_at
		FROM documents WHERE id = ?
	`, id)
	return scanDocument(row)
}

// ListDocuments returns all documents ordered by ID.
func (s *documentStore) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, source_uri, version, format_hint, text, created_at, updated_at
		FROM documents ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// DeleteDocument removes a document and all its chunks.
func (s *documentStore) DeleteDocument(ctx context.Context, id string) error {
	if _, err := s.store.db.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", id); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	if _, err := s.store.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return nil
}

// SaveChunks stores chunks for a document version.
func (s *documentStore) SaveChunks(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, chunk := range chunks {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO chunks (id, document_id, version, seq, text, span_start, span_end, token_count)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				text = excluded.text,
				span_start = excluded.span_start,
				span_end = excluded.span_end,
				token_count = excluded.token_count
		`, chunk.ID, chunk.DocumentID, chunk.Version, chunk.Seq, chunk.Text,
			chunk.Span.Start, chunk.Span.End, chunk.TokenCount)
		if err != nil {
			return fmt.Errorf("saving chunk %s: %w", chunk.ID, err)
		}
	}

	return tx.Commit()
}

// GetChunk retrieves a specific chunk by ID.
func (s *documentStore) GetChunk(ctx context.Context, id string) (*domain.Chunk, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, document_id, version, seq, text, span_start, span_end, token_count
		FROM chunks WHERE id = ?
	`, id)

	var chunk domain.Chunk
	err := row.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Version, &chunk.Seq,
		&chunk.Text, &chunk.Span.Start, &chunk.Span.End, &chunk.TokenCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}
	return &chunk, nil
}

// GetChunks retrieves all chunks for a document version ordered by
// sequence.
func (s *documentStore) GetChunks(ctx context.Context, documentID string, version int) ([]domain.Chunk, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, document_id, version, seq, text, span_start, span_end, token_count
		FROM chunks WHERE document_id = ? AND version = ? ORDER BY seq
	`, documentID, version)
	if err != nil {
		return nil, fmt.Errorf("listing chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk
	for rows.Next() {
		var chunk domain.Chunk
		err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Version, &chunk.Seq,
			&chunk.Text, &chunk.Span.Start, &chunk.Span.End, &chunk.TokenCount)
		if err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

// DeleteChunks removes all chunks for a document version.
// A version of 0 removes chunks of every version.
func (s *documentStore) DeleteChunks(ctx context.Context, documentID string, version int) error {
	var err error
	if version == 0 {
		_, err = s.store.db.ExecContext(ctx,
			"DELETE FROM chunks WHERE document_id = ?", documentID)
	} else {
		_, err = s.store.db.ExecContext(ctx,
			"DELETE FROM chunks WHERE document_id = ? AND version = ?", documentID, version)
	}
	if err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	return nil
}

// scanner abstracts sql.Row and sql.Rows for shared scanning.
type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*domain.Document, error) {
	var doc domain.Document
	var createdAt, updatedAt sql.NullTime
	err := row.Scan(&doc.ID, &doc.SourceURI, &doc.Version, &doc.FormatHint,
		&doc.Text, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}
	if createdAt.Valid {
		doc.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		doc.UpdatedAt = updatedAt.Time
	}
	return &doc, nil
}

// ==================== Turn Store ====================

// turnStore implements driven.TurnStore.
type turnStore struct {
	store *Store
}

var _ driven.TurnStore = (*turnStore)(nil)

// CreateSession stores a new session.
func (s *turnStore) CreateSession(ctx context.Context, session domain.Session) error {
	_, err := s.store.db.ExecContext(ctx,
		"INSERT INTO sessions (id, created_at) VALUES (?, ?)",
		session.ID, session.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("creating session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by ID.
func (s *turnStore) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT id, created_at FROM sessions WHERE id = ?", id)

	var session domain.Session
	var createdAt sql.NullTime
	if err := row.Scan(&session.ID, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning session: %w", err)
	}
	if createdAt.Valid {
		session.CreatedAt = createdAt.Time
	}
	return &session, nil
}

// AppendTurn stores a turn for a session.
func (s *turnStore) AppendTurn(ctx context.Context, sessionID string, turn domain.Turn) error {
	citationsJSON, err := json.Marshal(turn.Citations)
	if err != nil {
		return fmt.Errorf("marshalling citations: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO turns (session_id, turn_id, role, content, citations, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, sessionID, turn.ID, string(turn.Role), turn.Content, string(citationsJSON), turn.CreatedAt)
	if err != nil {
		return fmt.Errorf("appending turn: %w", err)
	}
	return nil
}

// ListTurns returns all live turns for a session in turn order.
func (s *turnStore) ListTurns(ctx context.Context, sessionID string) ([]domain.Turn, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT turn_id, role, content, citations, created_at
		FROM turns WHERE session_id = ? ORDER BY turn_id
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing turns: %w", err)
	}
	defer rows.Close()

	var turns []domain.Turn
	for rows.Next() {
		var turn domain.Turn
		var role, citationsJSON string
		var createdAt sql.NullTime
		if err := rows.Scan(&turn.ID, &role, &turn.Content, &citationsJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		turn.Role = domain.Role(role)
		if err := json.Unmarshal([]byte(citationsJSON), &turn.Citations); err != nil {
			return nil, fmt.Errorf("unmarshalling citations: %w", err)
		}
		if createdAt.Valid {
			turn.CreatedAt = createdAt.Time
		}
		turns = append(turns, turn)
	}
	return turns, rows.Err()
}

// DeleteTurns removes the identified turns from a session.
func (s *turnStore) DeleteTurns(ctx context.Context, sessionID string, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM turns WHERE session_id = ? AND turn_id = ?", sessionID, id); err != nil {
			return fmt.Errorf("deleting turn %d: %w", id, err)
		}
	}
	return tx.Commit()
}

// ClearSession removes all turns for a session, keeping the session.
func (s *turnStore) ClearSession(ctx context.Context, sessionID string) error {
	if _, err := s.store.db.ExecContext(ctx,
		"DELETE FROM turns WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}

// MarkCitationsStale flags every stored citation pointing at the given
// document, across all sessions. Citations are stored as JSON, so rows
// are rewritten with only the Stale flag changed.
func (s *turnStore) MarkCitationsStale(ctx context.Context, documentID string) error {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT session_id, turn_id, citations
		FROM turns WHERE citations LIKE ?
	`, "%"+documentID+"%")
	if err != nil {
		return fmt.Errorf("finding citations: %w", err)
	}
	defer rows.Close()

	type update struct {
		sessionID string
		turnID    int64
		citations []domain.TurnCitation
	}
	var updates []update

	for rows.Next() {
		var u update
		var citationsJSON string
		if err := rows.Scan(&u.sessionID, &u.turnID, &citationsJSON); err != nil {
			return fmt.Errorf("scanning turn: %w", err)
		}
		if err := json.Unmarshal([]byte(citationsJSON), &u.citations); err != nil {
			return fmt.Errorf("unmarshalling citations: %w", err)
		}

		changed := false
		for i := range u.citations {
			if u.citations[i].DocumentID == documentID && !u.citations[i].Stale {
				u.citations[i].Stale = true
				changed = true
			}
		}
		if changed {
			updates = append(updates, u)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, u := range updates {
		citationsJSON, err := json.Marshal(u.citations)
		if err != nil {
			return fmt.Errorf("marshalling citations: %w", err)
		}
		if _, err := s.store.db.ExecContext(ctx,
			"UPDATE turns SET citations = ? WHERE session_id = ? AND turn_id = ?",
			string(citationsJSON), u.sessionID, u.turnID); err != nil {
			return fmt.Errorf("updating turn %d: %w", u.turnID, err)
		}
	}
	return nil
}
