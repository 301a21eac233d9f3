package driving

import (
	"context"

	"github.com/custodia-labs/parley-cli/internal/core/domain"
)

// AskService answers natural-language questions over the ingested
// corpus within a conversation session.
type AskService interface {
	// Ask retrieves relevant chunks for question, synthesises an
	// answer with citations, and records both the question and the
	// answer as turns in the session's memory.
	//
	// Turns within a session are strictly sequential: a concurrent
	// Ask on the same session returns domain.ErrSessionBusy.
	Ask(ctx context.Context, sessionID, question string) (*domain.Answer, error)
}

// SessionService manages conversation sessions.
type SessionService interface {
	// CreateSession starts a new empty session and returns its ID.
	CreateSession(ctx context.Context) (string, error)

	// ResetSession discards a session's turn history.
	ResetSession(ctx context.Context, sessionID string) error
}
