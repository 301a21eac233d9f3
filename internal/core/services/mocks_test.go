package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/custodia-labs/parley-cli/internal/core/domain"
	"github.com/custodia-labs/parley-cli/internal/core/ports/driven"
)

// --- Mock implementations ---

var errBoom = errors.New("boom")

// mockEmbeddingService implements driven.EmbeddingService for testing.
// It embeds text deterministically so tests can assert ordering.
type mockEmbeddingService struct {
	dims     int
	embedErr error

	mu    sync.Mutex
	calls int
}

func (m *mockEmbeddingService) dim() int {
	if m.dims > 0 {
		return m.dims
	}
	return 4
}

func (m *mockEmbeddingService) vectorFor(text string) []float32 {
	v := make([]float32, m.dim())
	for i, r := range text {
		v[i%len(v)] += float32(r)
	}
	v[0] += 1
	return v
}

func (m *mockEmbeddingService) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	return m.vectorFor(text), nil
}

func (m *mockEmbeddingService) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = m.vectorFor(t)
	}
	return out, nil
}

func (m *mockEmbeddingService) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockEmbeddingService) Dimensions() int            { return m.dim() }
func (m *mockEmbeddingService) ModelName() string          { return "mock-embed" }
func (m *mockEmbeddingService) Ping(context.Context) error { return nil }
func (m *mockEmbeddingService) Close() error               { return nil }

// mockVectorIndex implements driven.VectorIndex for testing, recording
// upserts and deletions.
type mockVectorIndex struct {
	hits      []driven.VectorHit
	queryErr  error
	upsertErr error

	mu       sync.Mutex
	upserted []driven.VectorEntry
	deleted  []string // "docID:version"
}

func (m *mockVectorIndex) Upsert(_ context.Context, entries []driven.VectorEntry) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserted = append(m.upserted, entries...)
	return nil
}

func (m *mockVectorIndex) DeleteByDocument(_ context.Context, documentID string, version int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, fmt.Sprintf("%s:%d", documentID, version))
	return nil
}

func (m *mockVectorIndex) Query(_ context.Context, _ []float32, k int, _ float64) ([]driven.VectorHit, error) {
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	if len(m.hits) == 0 {
		return nil, domain.ErrEmptyIndex
	}
	if k > len(m.hits) {
		return m.hits, nil
	}
	return m.hits[:k], nil
}

func (m *mockVectorIndex) Dimension() int { return 4 }
func (m *mockVectorIndex) Close() error   { return nil }

// mockGenerationService implements driven.GenerationService for
// testing, recording the segments of each request.
type mockGenerationService struct {
	output string
	genErr error

	// transientFailures fails this many calls with a transient
	// provider error before succeeding.
	transientFailures int

	mu       sync.Mutex
	requests [][]driven.Segment
}

func (m *mockGenerationService) Generate(_ context.Context, segments []driven.Segment, _ driven.GenerateOptions) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, segments)
	failing := m.transientFailures > 0
	if failing {
		m.transientFailures--
	}
	m.mu.Unlock()

	if failing {
		return "", &domain.ProviderError{
			Kind:      domain.ErrGenerationProvider,
			Provider:  "mock",
			Transient: true,
			Err:       errBoom,
		}
	}
	if m.genErr != nil {
		return "", m.genErr
	}
	return m.output, nil
}

func (m *mockGenerationService) lastRequest() []driven.Segment {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return nil
	}
	return m.requests[len(m.requests)-1]
}

func (m *mockGenerationService) requestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *mockGenerationService) ModelName() string          { return "mock-gen" }
func (m *mockGenerationService) Ping(context.Context) error { return nil }
func (m *mockGenerationService) Close() error               { return nil }

// mockPromptStore implements driven.PromptStore for testing.
type mockPromptStore struct{}

func (m *mockPromptStore) Load(name string) (string, error) {
	switch name {
	case driven.PromptAnswerSystem:
		return "Answer from the context. Cite with [n].", nil
	case driven.PromptSummarise:
		return "Summarise:\n%s", nil
	}
	return "", errors.New("unknown prompt: " + name)
}

func (m *mockPromptStore) Reload() {}

// mockEmbeddingStore implements driven.EmbeddingStore for testing,
// recording saves and deletions.
type mockEmbeddingStore struct {
	mu      sync.Mutex
	saved   map[string][]driven.VectorEntry // by model
	deleted []string                        // "modelID/docID:version"
}

func newMockEmbeddingStore() *mockEmbeddingStore {
	return &mockEmbeddingStore{saved: make(map[string][]driven.VectorEntry)}
}

func (m *mockEmbeddingStore) SaveEmbeddings(_ context.Context, modelID string, entries []driven.VectorEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved[modelID] = append(m.saved[modelID], entries...)
	return nil
}

func (m *mockEmbeddingStore) LoadEmbeddings(_ context.Context, modelID string) ([]driven.VectorEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved[modelID], nil
}

func (m *mockEmbeddingStore) DeleteEmbeddings(_ context.Context, modelID, documentID string, version int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, fmt.Sprintf("%s/%s:%d", modelID, documentID, version))
	return nil
}
