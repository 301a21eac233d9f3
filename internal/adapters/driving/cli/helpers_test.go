package cli

import (
	"context"
	"errors"
	"time"

	"github.com/custodia-labs/parley-cli/internal/core/domain"
	"github.com/custodia-labs/parley-cli/internal/core/ports/driving"
)

// setupTestServices swaps the package-level services for mocks and
// returns a cleanup func that restores the originals.
func setupTestServices() func() {
	oldAsk := askService
	oldSession := sessionSvc
	oldIngest := ingestService
	oldTurns := turnStore

	mock := &mockConversation{}
	askService = mock
	sessionSvc = mock
	ingestService = &mockIngest{}
	turnStore = &mockTurnStore{}

	return func() {
		askService = oldAsk
		sessionSvc = oldSession
		ingestService = oldIngest
		turnStore = oldTurns
	}
}

type mockConversation struct {
	askErr error
}

func (m *mockConversation) Ask(_ context.Context, _, question string) (*domain.Answer, error) {
	if m.askErr != nil {
		return nil, m.askErr
	}
	return &domain.Answer{
		Text: "The answer to " + question + " is in the report [1].",
		Citations: []domain.Citation{
			{
				Marker:     1,
				ChunkID:    "doc-1:v1:0",
				DocumentID: "doc-1",
				SourceURI:  "file:///tmp/report.txt",
				Span:       domain.Span{Start: 0, End: 42},
			},
		},
	}, nil
}

func (m *mockConversation) CreateSession(_ context.Context) (string, error) {
	return "sess-test", nil
}

func (m *mockConversation) ResetSession(_ context.Context, _ string) error {
	return nil
}

type mockIngest struct {
	ingestErr error
	lastInput driving.IngestInput
}

func (m *mockIngest) Ingest(_ context.Context, input driving.IngestInput) (*domain.Document, error) {
	m.lastInput = input
	if m.ingestErr != nil {
		return nil, m.ingestErr
	}
	id := input.DocumentID
	if id == "" {
		id = "doc-derived"
	}
	return &domain.Document{ID: id, SourceURI: input.SourceURI, Version: 1}, nil
}

func (m *mockIngest) DeleteDocument(_ context.Context, documentID string) error {
	if documentID == "missing" {
		return domain.ErrNotFound
	}
	return nil
}

func (m *mockIngest) ListDocuments(_ context.Context) ([]domain.Document, error) {
	return []domain.Document{
		{
			ID:        "doc-1",
			SourceURI: "file:///tmp/report.txt",
			Version:   2,
			UpdatedAt: time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC),
		},
	}, nil
}

type mockTurnStore struct{}

func (m *mockTurnStore) CreateSession(_ context.Context, _ domain.Session) error { return nil }

func (m *mockTurnStore) GetSession(_ context.Context, id string) (*domain.Session, error) {
	return &domain.Session{ID: id}, nil
}

func (m *mockTurnStore) AppendTurn(_ context.Context, _ string, _ domain.Turn) error { return nil }

func (m *mockTurnStore) ListTurns(_ context.Context, sessionID string) ([]domain.Turn, error) {
	if sessionID == "empty" {
		return nil, nil
	}
	return []domain.Turn{
		{ID: 1, Role: domain.RoleSummary, Content: "Earlier discussion of the report."},
		{ID: 2, Role: domain.RoleUser, Content: "What does the report say?"},
		{
			ID:      3,
			Role:    domain.RoleAssistant,
			Content: "It says things [1].",
			Citations: []domain.TurnCitation{
				{ChunkID: "doc-1:v1:0", DocumentID: "doc-1", Stale: true},
			},
		},
	}, nil
}

func (m *mockTurnStore) DeleteTurns(_ context.Context, _ string, _ []int64) error { return nil }
func (m *mockTurnStore) ClearSession(_ context.Context, _ string) error           { return nil }
func (m *mockTurnStore) MarkCitationsStale(_ context.Context, _ string) error     { return nil }

var errMockFailure = errors.New("mock failure")
