package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/parley-cli/internal/core/domain"
	"github.com/custodia-labs/parley-cli/internal/core/ports/driven"
	"github.com/custodia-labs/parley-cli/internal/core/ports/driving"
	"github.com/custodia-labs/parley-cli/internal/logger"
)

// Ensure AskService implements the interfaces.
var (
	_ driving.AskService     = (*AskService)(nil)
	_ driving.SessionService = (*AskService)(nil)
)

// AskService orchestrates the question-answering pipeline: retrieval,
// synthesis, and conversation memory, with per-session turn
// sequencing.
type AskService struct {
	retriever   *Retriever
	synthesizer *Synthesizer
	memory      *Memory
	turnStore   driven.TurnStore
	k           int

	mu       sync.Mutex
	inFlight map[string]bool

	// retentionWG tracks background retention passes, for tests and
	// orderly shutdown.
	retentionWG sync.WaitGroup
}

// NewAskService creates the ask orchestrator. k is the number of
// chunks retrieved per question (0 uses the default).
func NewAskService(
	retriever *Retriever,
	synthesizer *Synthesizer,
	memory *Memory,
	turnStore driven.TurnStore,
	k int,
) *AskService {
	if k <= 0 {
		k = DefaultRetrieveK
	}
	return &AskService{
		retriever:   retriever,
		synthesizer: synthesizer,
		memory:      memory,
		turnStore:   turnStore,
		k:           k,
		inFlight:    make(map[string]bool),
	}
}

// Ask answers a question within a session. Turns within a session are
// strictly sequential: if another Ask is in flight for the same
// session, domain.ErrSessionBusy is returned.
//
// Stage failures are reported as *domain.StageError so callers can
// distinguish a failed retrieval from a failed generation.
func (s *AskService) Ask(ctx context.Context, sessionID, question string) (*domain.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: empty question", domain.ErrMalformedInput)
	}

	if _, err := s.turnStore.GetSession(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("get session %s: %w", sessionID, err)
	}

	release, err := s.acquireSession(sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	memoryContext, err := s.memory.Context(ctx, sessionID, 0)
	if err != nil {
		return nil, fmt.Errorf("memory context: %w", err)
	}

	results, err := s.retriever.Retrieve(ctx, question, s.k, RetrieveFilters{})
	if err != nil {
		return nil, &domain.StageError{Stage: domain.StageRetrieval, Err: err}
	}

	answer, err := s.synthesizer.Synthesize(ctx, question, results, memoryContext)
	if err != nil {
		return nil, &domain.StageError{Stage: domain.StageGeneration, Err: err}
	}

	// Record the exchange only after synthesis succeeded, so a
	// cancelled or failed call leaves no partial turn behind.
	if _, err := s.memory.Append(ctx, sessionID, domain.RoleUser, question, nil); err != nil {
		return nil, fmt.Errorf("record question: %w", err)
	}
	citations := make([]domain.TurnCitation, 0, len(answer.Citations))
	for _, c := range answer.Citations {
		citations = append(citations, domain.TurnCitation{
			ChunkID:    c.ChunkID,
			DocumentID: c.DocumentID,
			Span:       c.Span,
		})
	}
	if _, err := s.memory.Append(ctx, sessionID, domain.RoleAssistant, answer.Text, citations); err != nil {
		return nil, fmt.Errorf("record answer: %w", err)
	}

	// Retention (summarisation) is a generation call; run it in the
	// background with its own timeout rather than blocking the reply.
	s.retentionWG.Add(1)
	go func() {
		defer s.retentionWG.Done()
		if err := s.memory.EnforceRetention(context.Background(), sessionID); err != nil {
			logger.Warn("Retention for session %s failed: %v", sessionID, err)
		}
	}()

	return answer, nil
}

// CreateSession starts a new empty session and returns its ID.
func (s *AskService) CreateSession(ctx context.Context) (string, error) {
	session := domain.Session{
		ID:        uuid.New().String(),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.turnStore.CreateSession(ctx, session); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return session.ID, nil
}

// ResetSession discards a session's turn history, keeping the session.
func (s *AskService) ResetSession(ctx context.Context, sessionID string) error {
	if _, err := s.turnStore.GetSession(ctx, sessionID); err != nil {
		return fmt.Errorf("get session %s: %w", sessionID, err)
	}
	if err := s.turnStore.ClearSession(ctx, sessionID); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	s.memory.Forget(sessionID)
	return nil
}

// Wait blocks until background retention passes have finished.
// Used by tests and during shutdown.
func (s *AskService) Wait() {
	s.retentionWG.Wait()
}

// acquireSession marks a session as having a turn in flight.
func (s *AskService) acquireSession(sessionID string) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[sessionID] {
		return nil, domain.ErrSessionBusy
	}
	s.inFlight[sessionID] = true
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.inFlight, sessionID)
	}, nil
}
