package memindex

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/parley-cli/internal/core/domain"
	"github.com/custodia-labs/parley-cli/internal/core/ports/driven"
	"github.com/custodia-labs/parley-cli/internal/logger"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Default configuration values.
const (
	// DefaultExactScanThreshold is the live-entry count below which
	// queries always use the exact linear scan.
	DefaultExactScanThreshold = 10000

	// DefaultCompactionInterval is how often tombstoned entries are
	// physically reclaimed.
	DefaultCompactionInterval = time.Minute

	// compactBatch is how many entries one lock acquisition reclaims,
	// keeping compaction pauses short for concurrent queries.
	compactBatch = 256
)

// entry wraps an embedding with index-internal bookkeeping.
type entry struct {
	chunkID    string
	documentID string
	version    int
	vector     []float32 // L2-normalised at insert
	tombstone  bool
}

// Index is an in-memory vector index.
type Index struct {
	mu      sync.RWMutex
	dim     int
	entries map[string]*entry
	live    int

	exactThreshold int
	approx         *hyperplanes

	compactEvery time.Duration
	stop         chan struct{}
	done         chan struct{}
	closeOnce    sync.Once
}

// Option configures the index.
type Option func(*Index)

// WithExactScanThreshold sets the live-entry count below which queries
// use the exact linear scan.
func WithExactScanThreshold(n int) Option {
	return func(ix *Index) {
		if n >= 0 {
			ix.exactThreshold = n
		}
	}
}

// WithApprox configures the approximate strategy: planes controls
// bucket granularity, probes how many buckets a query visits. More
// probes raise recall at the cost of scan width; operators set probes
// to meet their recall floor.
func WithApprox(planes, probes int) Option {
	return func(ix *Index) {
		ix.approx = newHyperplanes(ix.dim, planes, probes)
	}
}

// WithCompactionInterval sets how often tombstones are reclaimed.
func WithCompactionInterval(d time.Duration) Option {
	return func(ix *Index) {
		if d > 0 {
			ix.compactEvery = d
		}
	}
}

// New creates an index with the fixed vector dimension.
func New(dimension int, opts ...Option) (*Index, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("memindex: dimension must be positive, got %d", dimension)
	}

	ix := &Index{
		dim:            dimension,
		entries:        make(map[string]*entry),
		exactThreshold: DefaultExactScanThreshold,
		compactEvery:   DefaultCompactionInterval,
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(ix)
	}
	if ix.approx == nil {
		ix.approx = newHyperplanes(dimension, 0, 0)
	}

	go ix.compactLoop()
	return ix, nil
}

// Upsert inserts or replaces entries. Entries are visible to queries
// on this handle as soon as Upsert returns.
func (ix *Index) Upsert(_ context.Context, batch []driven.VectorEntry) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	for _, ve := range batch {
		if len(ve.Vector) != ix.dim {
			return fmt.Errorf("%w: got %d, index dimension %d",
				domain.ErrDimensionMismatch, len(ve.Vector), ix.dim)
		}

		if old, ok := ix.entries[ve.ChunkID]; ok {
			ix.approx.remove(old)
			if !old.tombstone {
				ix.live--
			}
		}

		e := &entry{
			chunkID:    ve.ChunkID,
			documentID: ve.DocumentID,
			version:    ve.Version,
			vector:     normalise(ve.Vector),
		}
		ix.entries[ve.ChunkID] = e
		ix.approx.add(e)
		ix.live++
	}
	return nil
}

// DeleteByDocument tombstones all entries for the document version.
// A version of 0 tombstones every version. Physical reclamation is
// deferred to background compaction.
func (ix *Index) DeleteByDocument(_ context.Context, documentID string, version int) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	for _, e := range ix.entries {
		if e.tombstone || e.documentID != documentID {
			continue
		}
		if version != 0 && e.version != version {
			continue
		}
		e.tombstone = true
		ix.approx.remove(e)
		ix.live--
	}
	return nil
}

// Query returns up to k live entries with similarity >= minScore,
// ranked by descending similarity with ties broken by lower chunk ID.
func (ix *Index) Query(_ context.Context, vector []float32, k int, minScore float64) ([]driven.VectorHit, error) {
	if len(vector) != ix.dim {
		return nil, fmt.Errorf("%w: got %d, index dimension %d",
			domain.ErrDimensionMismatch, len(vector), ix.dim)
	}
	if k <= 0 {
		return nil, nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.live == 0 {
		return nil, domain.ErrEmptyIndex
	}

	query := normalise(vector)

	var candidates []*entry
	if ix.live <= ix.exactThreshold {
		candidates = ix.allLive()
	} else {
		candidates = ix.approx.candidates(query)
		if len(candidates) < k {
			// Probe budget found too little; fall back to exact.
			candidates = ix.allLive()
		}
	}

	hits := make([]driven.VectorHit, 0, len(candidates))
	for _, e := range candidates {
		score := dot(query, e.vector)
		if score < minScore {
			continue
		}
		hits = append(hits, driven.VectorHit{ChunkID: e.chunkID, Score: score})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Dimension returns the fixed vector dimension.
func (ix *Index) Dimension() int { return ix.dim }

// Len returns the number of live entries.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.live
}

// Close stops background compaction.
func (ix *Index) Close() error {
	ix.closeOnce.Do(func() {
		close(ix.stop)
		<-ix.done
	})
	return nil
}

// Compact reclaims tombstoned entries now and reports how many were
// removed. Normally driven by the background loop; exposed for tests
// and shutdown.
func (ix *Index) Compact() int {
	reclaimed := 0
	for {
		ix.mu.RLock()
		victims := make([]string, 0, compactBatch)
		for id, e := range ix.entries {
			if e.tombstone {
				victims = append(victims, id)
				if len(victims) == compactBatch {
					break
				}
			}
		}
		ix.mu.RUnlock()

		if len(victims) == 0 {
			return reclaimed
		}

		ix.mu.Lock()
		for _, id := range victims {
			if e, ok := ix.entries[id]; ok && e.tombstone {
				delete(ix.entries, id)
				reclaimed++
			}
		}
		ix.mu.Unlock()
	}
}

// compactLoop reclaims tombstones periodically. It holds the write
// lock only for short batches so foreground queries are never blocked
// for long.
func (ix *Index) compactLoop() {
	defer close(ix.done)

	ticker := time.NewTicker(ix.compactEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ix.stop:
			return
		case <-ticker.C:
			if reclaimed := ix.Compact(); reclaimed > 0 {
				logger.Debug("Index compaction reclaimed %d entries", reclaimed)
			}
		}
	}
}

// allLive snapshots the live entries. Caller holds at least a read lock.
func (ix *Index) allLive() []*entry {
	out := make([]*entry, 0, ix.live)
	for _, e := range ix.entries {
		if !e.tombstone {
			out = append(out, e)
		}
	}
	return out
}

// normalise returns a unit-length copy so similarity is consistent
// regardless of provider-specific scale. Zero vectors are returned
// unchanged and score 0 against everything.
func normalise(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		copy(out, v)
		return out
	}
	norm := math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// dot computes the inner product. Both inputs are unit length, so
// this is cosine similarity.
func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
