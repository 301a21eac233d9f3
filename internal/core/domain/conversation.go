package domain

import "time"

// Role identifies the author of a conversation turn.
type Role string

const (
	// RoleUser is a question from the user.
	RoleUser Role = "user"

	// RoleAssistant is a generated answer.
	RoleAssistant Role = "assistant"

	// RoleSummary is a synthetic turn produced when older turns are
	// collapsed by the memory retention policy. At most one summary
	// turn is live per session at any time.
	RoleSummary Role = "system-summary"
)

// TurnCitation is a soft reference from an assistant turn to a chunk
// that supported the answer. It is tolerated to become stale when the
// cited document is later re-ingested or deleted; stale references are
// flagged, never silently left pointing at invalid data.
type TurnCitation struct {
	ChunkID    string
	DocumentID string
	Span       Span
	Stale      bool
}

// Turn is one message within a conversation session.
// Turns are immutable once created; eviction removes turns from the
// live window, it never edits content.
type Turn struct {
	// ID is monotonic per session, assigned by the memory.
	ID int64

	// Role is user, assistant, or system-summary.
	Role Role

	// Content is the message text.
	Content string

	// Citations are the chunks the assistant cited, empty for
	// user and summary turns.
	Citations []TurnCitation

	// CreatedAt is when the turn was appended.
	CreatedAt time.Time
}

// Session identifies one independent conversation.
type Session struct {
	ID        string
	CreatedAt time.Time
}
