package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/parley-cli/internal/core/domain"
	"github.com/custodia-labs/parley-cli/internal/core/ports/driven"
)

// Ensure TurnStore implements the interface.
var _ driven.TurnStore = (*TurnStore)(nil)

// TurnStore is an in-memory implementation of driven.TurnStore.
type TurnStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
	turns    map[string][]domain.Turn
}

// NewTurnStore creates a new in-memory turn store.
func NewTurnStore() *TurnStore {
	return &TurnStore{
		sessions: make(map[string]domain.Session),
		turns:    make(map[string][]domain.Turn),
	}
}

// CreateSession stores a new session.
func (s *TurnStore) CreateSession(_ context.Context, session domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; ok {
		return domain.ErrAlreadyExists
	}
	s.sessions[session.ID] = session
	return nil
}

// GetSession retrieves a session by ID.
func (s *TurnStore) GetSession(_ context.Context, id string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &session, nil
}

// AppendTurn stores a turn for a session.
func (s *TurnStore) AppendTurn(_ context.Context, sessionID string, turn domain.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return domain.ErrNotFound
	}
	s.turns[sessionID] = append(s.turns[sessionID], turn)
	return nil
}

// ListTurns returns all live turns for a session in turn order.
func (s *TurnStore) ListTurns(_ context.Context, sessionID string) ([]domain.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	turns := make([]domain.Turn, len(s.turns[sessionID]))
	copy(turns, s.turns[sessionID])
	sort.Slice(turns, func(i, j int) bool { return turns[i].ID < turns[j].ID })
	return turns, nil
}

// DeleteTurns removes the identified turns from a session.
func (s *TurnStore) DeleteTurns(_ context.Context, sessionID string, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doomed := make(map[int64]bool, len(ids))
	for _, id := range ids {
		doomed[id] = true
	}

	kept := s.turns[sessionID][:0]
	for _, turn := range s.turns[sessionID] {
		if !doomed[turn.ID] {
			kept = append(kept, turn)
		}
	}
	s.turns[sessionID] = kept
	return nil
}

// ClearSession removes all turns for a session, keeping the session.
func (s *TurnStore) ClearSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return domain.ErrNotFound
	}
	delete(s.turns, sessionID)
	return nil
}

// MarkCitationsStale flags every stored citation pointing at the
// given document, across all sessions.
func (s *TurnStore) MarkCitationsStale(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sessionID, turns := range s.turns {
		for i := range turns {
			for j := range turns[i].Citations {
				if turns[i].Citations[j].DocumentID == documentID {
					turns[i].Citations[j].Stale = true
				}
			}
		}
		s.turns[sessionID] = turns
	}
	return nil
}
