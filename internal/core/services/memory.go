package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/parley-cli/internal/core/domain"
	"github.com/custodia-labs/parley-cli/internal/core/ports/driven"
	"github.com/custodia-labs/parley-cli/internal/logger"
)

// Default memory configuration.
const (
	DefaultMaxTurns       = 20
	DefaultMemoryTokens   = 2000
	DefaultContextWindow  = 10
	DefaultSummaryTimeout = 30 * time.Second
)

// MemoryConfig configures the conversation retention policy.
type MemoryConfig struct {
	// MaxTurns is the hard cap on live non-summary turns. Oldest turns
	// beyond it are evicted after summarisation, never before.
	MaxTurns int

	// MaxTokens is the soft cap that triggers summarisation of the
	// oldest turns into a single summary turn.
	MaxTokens int

	// Window is the default number of recent turns returned by Context.
	Window int

	// SummaryTimeout bounds the summarisation generation call.
	SummaryTimeout time.Duration

	// Retry bounds backoff for transient generation failures during
	// summarisation.
	Retry RetryPolicy
}

// Memory is the bounded, ordered conversation history for all sessions.
// Turns are append-only and immutable; the retention policy collapses
// the oldest turns into a synthetic summary turn rather than dropping
// them silently.
type Memory struct {
	store   driven.TurnStore
	gen     driven.GenerationService
	prompts driven.PromptStore
	cfg     MemoryConfig

	mu     sync.Mutex
	nextID map[string]int64
}

// NewMemory creates a conversation memory. The generation service is
// optional: without it, evicted turns are summarised by a plain-text
// digest instead of a model call.
func NewMemory(
	store driven.TurnStore,
	gen driven.GenerationService,
	prompts driven.PromptStore,
	cfg MemoryConfig,
) *Memory {
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = DefaultMaxTurns
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMemoryTokens
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultContextWindow
	}
	if cfg.SummaryTimeout <= 0 {
		cfg.SummaryTimeout = DefaultSummaryTimeout
	}
	return &Memory{
		store:   store,
		gen:     gen,
		prompts: prompts,
		cfg:     cfg,
		nextID:  make(map[string]int64),
	}
}

// Append records a new immutable turn for the session and returns it
// with its assigned ID.
func (m *Memory) Append(
	ctx context.Context, sessionID string, role domain.Role, content string, citations []domain.TurnCitation,
) (domain.Turn, error) {
	id, err := m.allocateID(ctx, sessionID)
	if err != nil {
		return domain.Turn{}, err
	}

	turn := domain.Turn{
		ID:        id,
		Role:      role,
		Content:   content,
		Citations: citations,
		CreatedAt: time.Now().UTC(),
	}
	if err := m.store.AppendTurn(ctx, sessionID, turn); err != nil {
		return domain.Turn{}, fmt.Errorf("append turn: %w", err)
	}
	return turn, nil
}

// Context returns the latest summary turn (if present) followed by the
// most recent window turns, in chronological order. A window of 0 uses
// the configured default.
func (m *Memory) Context(ctx context.Context, sessionID string, window int) ([]domain.Turn, error) {
	if window <= 0 {
		window = m.cfg.Window
	}

	turns, err := m.store.ListTurns(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}

	summary, rest := splitSummary(turns)

	if len(rest) > window {
		rest = rest[len(rest)-window:]
	}

	out := make([]domain.Turn, 0, len(rest)+1)
	if summary != nil {
		out = append(out, *summary)
	}
	return append(out, rest...), nil
}

// EnforceRetention applies the retention policy to a session: if the
// token soft cap is exceeded, the oldest turns (and any previous
// summary) are collapsed into one new summary turn; then the hard turn
// cap evicts anything still over.
//
// Summarisation is a generation call and runs under its own timeout, so
// callers may invoke this from a background goroutine after each turn.
func (m *Memory) EnforceRetention(ctx context.Context, sessionID string) error {
	turns, err := m.store.ListTurns(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("list turns: %w", err)
	}

	summary, rest := splitSummary(turns)

	victims := m.selectVictims(rest)
	if len(victims) == 0 {
		return nil
	}

	logger.Debug("Retention: summarising %d turns for session %s", len(victims), sessionID)

	text := m.summarise(ctx, summary, victims)
	if _, err := m.Append(ctx, sessionID, domain.RoleSummary, text, nil); err != nil {
		return fmt.Errorf("append summary: %w", err)
	}

	ids := make([]int64, 0, len(victims)+1)
	if summary != nil {
		ids = append(ids, summary.ID)
	}
	for _, t := range victims {
		ids = append(ids, t.ID)
	}
	if err := m.store.DeleteTurns(ctx, sessionID, ids); err != nil {
		return fmt.Errorf("evict turns: %w", err)
	}

	return nil
}

// selectVictims returns the oldest turns to collapse: enough to bring
// the session under both caps, while always keeping the two most
// recent turns (the latest exchange).
func (m *Memory) selectVictims(rest []domain.Turn) []domain.Turn {
	const keepMin = 2

	tokens := 0
	for _, t := range rest {
		tokens += countTokens(t.Content)
	}

	over := tokens > m.cfg.MaxTokens || len(rest) > m.cfg.MaxTurns
	if !over || len(rest) <= keepMin {
		return nil
	}

	cut := 0
	for cut < len(rest)-keepMin {
		overTokens := tokens > m.cfg.MaxTokens
		overTurns := len(rest)-cut > m.cfg.MaxTurns
		if !overTokens && !overTurns {
			break
		}
		tokens -= countTokens(rest[cut].Content)
		cut++
	}
	return rest[:cut]
}

// summarise produces the summary turn content. It prefers a generation
// call; on failure or without a generation service it degrades to a
// plain-text digest. The result is never empty.
func (m *Memory) summarise(ctx context.Context, prev *domain.Turn, victims []domain.Turn) string {
	var b strings.Builder
	if prev != nil {
		b.WriteString(prev.Content)
		b.WriteString("\n")
	}
	for _, t := range victims {
		fmt.Fprintf(&b, "%s: %s\n", t.Role, t.Content)
	}
	transcript := b.String()

	if m.gen != nil {
		ctx, cancel := context.WithTimeout(ctx, m.cfg.SummaryTimeout)
		defer cancel()

		tmpl, err := m.prompts.Load(driven.PromptSummarise)
		if err == nil {
			var out string
			err = retry(ctx, m.cfg.Retry, "summarise turns", func(ctx context.Context) error {
				var genErr error
				out, genErr = m.gen.Generate(ctx, []driven.Segment{
					{Role: "user", Content: fmt.Sprintf(tmpl, transcript)},
				}, driven.GenerateOptions{Temperature: 0})
				return genErr
			})
			if err == nil && strings.TrimSpace(out) != "" {
				return strings.TrimSpace(out)
			}
		}
		if err != nil {
			logger.Warn("Summarisation failed, using digest: %v", err)
		}
	}

	return digest(prev, victims)
}

// digest is the non-LLM fallback summary: a truncated line per turn.
func digest(prev *domain.Turn, victims []domain.Turn) string {
	const maxLine = 120

	var b strings.Builder
	b.WriteString("Earlier in this conversation:\n")
	if prev != nil {
		b.WriteString(prev.Content)
		b.WriteString("\n")
	}
	for _, t := range victims {
		line := strings.TrimSpace(t.Content)
		if idx := strings.IndexByte(line, '\n'); idx >= 0 {
			line = line[:idx]
		}
		if len(line) > maxLine {
			line = line[:maxLine] + "..."
		}
		fmt.Fprintf(&b, "- %s: %s\n", t.Role, line)
	}
	return strings.TrimSpace(b.String())
}

// allocateID hands out the next monotonic turn ID for a session,
// recovering from the store on first use.
func (m *Memory) allocateID(ctx context.Context, sessionID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, ok := m.nextID[sessionID]
	if !ok {
		turns, err := m.store.ListTurns(ctx, sessionID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return 0, fmt.Errorf("recover turn counter: %w", err)
		}
		for _, t := range turns {
			if t.ID >= next {
				next = t.ID + 1
			}
		}
		if next == 0 {
			next = 1
		}
	}
	m.nextID[sessionID] = next + 1
	return next, nil
}

// Forget drops the in-memory turn counter for a session.
// Called when a session is reset.
func (m *Memory) Forget(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.nextID, sessionID)
}

// splitSummary separates the latest summary turn from the ordinary
// turns, preserving order. Older summaries should not exist, but if
// they do only the latest is kept.
func splitSummary(turns []domain.Turn) (*domain.Turn, []domain.Turn) {
	var summary *domain.Turn
	rest := make([]domain.Turn, 0, len(turns))
	for i := range turns {
		if turns[i].Role == domain.RoleSummary {
			summary = &turns[i]
			continue
		}
		rest = append(rest, turns[i])
	}
	return summary, rest
}
