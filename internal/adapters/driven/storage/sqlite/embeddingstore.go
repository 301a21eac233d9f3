package sqlite

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/custodia-labs/parley-cli/internal/core/ports/driven"
)

// embeddingStore implements driven.EmbeddingStore.
type embeddingStore struct {
	store *Store
}

var _ driven.EmbeddingStore = (*embeddingStore)(nil)

// EmbeddingStore returns an EmbeddingStore interface backed by this store.
func (s *Store) EmbeddingStore() driven.EmbeddingStore {
	return &embeddingStore{store: s}
}

// SaveEmbeddings stores entries for a model, replacing existing rows
// with the same chunk ID.
func (s *embeddingStore) SaveEmbeddings(ctx context.Context, modelID string, entries []driven.VectorEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, entry := range entries {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO embeddings (model_id, chunk_id, document_id, version, vector)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(model_id, chunk_id) DO UPDATE SET
				document_id = excluded.document_id,
				version = excluded.version,
				vector = excluded.vector
		`, modelID, entry.ChunkID, entry.DocumentID, entry.Version, encodeVector(entry.Vector))
		if err != nil {
			return fmt.Errorf("saving embedding %s: %w", entry.ChunkID, err)
		}
	}

	return tx.Commit()
}

// LoadEmbeddings returns all stored entries for a model.
func (s *embeddingStore) LoadEmbeddings(ctx context.Context, modelID string) ([]driven.VectorEntry, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT chunk_id, document_id, version, vector
		FROM embeddings WHERE model_id = ? ORDER BY chunk_id
	`, modelID)
	if err != nil {
		return nil, fmt.Errorf("loading embeddings: %w", err)
	}
	defer rows.Close()

	var entries []driven.VectorEntry
	for rows.Next() {
		var entry driven.VectorEntry
		var blob []byte
		if err := rows.Scan(&entry.ChunkID, &entry.DocumentID, &entry.Version, &blob); err != nil {
			return nil, fmt.Errorf("scanning embedding: %w", err)
		}
		entry.Vector = decodeVector(blob)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// DeleteEmbeddings removes entries for a document. A version of 0
// removes every version; a model of "" removes entries of every model.
func (s *embeddingStore) DeleteEmbeddings(ctx context.Context, modelID, documentID string, version int) error {
	query := "DELETE FROM embeddings WHERE document_id = ?"
	args := []any{documentID}
	if modelID != "" {
		query += " AND model_id = ?"
		args = append(args, modelID)
	}
	if version != 0 {
		query += " AND version = ?"
		args = append(args, version)
	}

	if _, err := s.store.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("deleting embeddings: %w", err)
	}
	return nil
}

// encodeVector packs a vector as little-endian float32 bytes.
func encodeVector(vector []float32) []byte {
	buf := make([]byte, 4*len(vector))
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

// decodeVector unpacks a little-endian float32 blob.
func decodeVector(buf []byte) []float32 {
	vector := make([]float32, len(buf)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return vector
}
