package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/parley-cli/internal/core/domain"
	"github.com/custodia-labs/parley-cli/internal/core/ports/driven"
	"github.com/custodia-labs/parley-cli/internal/logger"
)

// Default retriever configuration.
const (
	DefaultRetrieveK  = 6
	DefaultOversample = 4
)

// RetrieverConfig configures retrieval behaviour.
type RetrieverConfig struct {
	// Oversample multiplies k when querying the index, so that
	// deduplication does not starve coverage. Naive top-k tends to
	// return near-duplicate chunks from the same document.
	Oversample int

	// MinScore excludes hits below this similarity.
	MinScore float64

	// Diversify keeps only the highest-scoring chunk per document.
	Diversify bool

	// Retry bounds backoff for transient embedding failures.
	Retry RetryPolicy
}

// RetrieveFilters restricts a retrieval to a subset of the corpus.
type RetrieveFilters struct {
	// DocumentIDs, when non-empty, limits results to these documents.
	DocumentIDs []string
}

// Retriever finds the chunks most semantically similar to a query.
type Retriever struct {
	embedder driven.EmbeddingService
	index    driven.VectorIndex
	docStore driven.DocumentStore
	cfg      RetrieverConfig
}

// NewRetriever creates a retriever, applying defaults for zero fields.
func NewRetriever(
	embedder driven.EmbeddingService,
	index driven.VectorIndex,
	docStore driven.DocumentStore,
	cfg RetrieverConfig,
) *Retriever {
	if cfg.Oversample <= 0 {
		cfg.Oversample = DefaultOversample
	}
	return &Retriever{
		embedder: embedder,
		index:    index,
		docStore: docStore,
		cfg:      cfg,
	}
}

// Retrieve embeds the query, searches the index with oversampling,
// optionally diversifies per document, and truncates to k results.
//
// Returns domain.ErrEmptyIndex if the index has zero live entries.
// Fewer than k live entries is not an error: all of them are returned.
func (r *Retriever) Retrieve(
	ctx context.Context, queryText string, k int, filters RetrieveFilters,
) ([]domain.RetrievalResult, error) {
	if k <= 0 {
		k = DefaultRetrieveK
	}

	logger.Section("Retrieval")
	logger.Debug("Query: %q, k=%d, oversample=%d", queryText, k, r.cfg.Oversample)

	var vector []float32
	err := retry(ctx, r.cfg.Retry, "embed query", func(ctx context.Context) error {
		var embedErr error
		vector, embedErr = r.embedder.Embed(ctx, queryText)
		return embedErr
	})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := r.index.Query(ctx, vector, k*r.cfg.Oversample, r.cfg.MinScore)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyIndex) {
			return nil, err
		}
		return nil, fmt.Errorf("index query: %w", err)
	}
	logger.Debug("Index returned %d candidates", len(hits))

	results := make([]domain.RetrievalResult, 0, k)
	seenDocs := make(map[string]bool)
	allowed := allowedSet(filters.DocumentIDs)

	for _, hit := range hits {
		chunk, err := r.docStore.GetChunk(ctx, hit.ChunkID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				// Index entry outlived its chunk; skip rather than fail.
				logger.Warn("Chunk %s in index but not in store, skipping", hit.ChunkID)
				continue
			}
			return nil, fmt.Errorf("get chunk %s: %w", hit.ChunkID, err)
		}

		if allowed != nil && !allowed[chunk.DocumentID] {
			continue
		}
		if r.cfg.Diversify && seenDocs[chunk.DocumentID] {
			continue
		}
		seenDocs[chunk.DocumentID] = true

		results = append(results, domain.RetrievalResult{
			ChunkID: hit.ChunkID,
			Score:   hit.Score,
			Rank:    len(results),
		})
		if len(results) == k {
			break
		}
	}

	logger.Info("Retrieved %d results", len(results))
	return results, nil
}

func allowedSet(ids []string) map[string]bool {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
