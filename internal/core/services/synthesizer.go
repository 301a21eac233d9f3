package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/custodia-labs/parley-cli/internal/core/domain"
	"github.com/custodia-labs/parley-cli/internal/core/ports/driven"
	"github.com/custodia-labs/parley-cli/internal/logger"
)

// markerPattern matches the [n] reference markers the model is
// instructed to emit after cited claims.
var markerPattern = regexp.MustCompile(`\[(\d+)\]`)

// SynthesizerConfig configures answer generation.
type SynthesizerConfig struct {
	// MaxTokens is the generation budget passed to the provider.
	MaxTokens int

	// Temperature is passed through to the provider.
	Temperature float64

	// Retry bounds backoff for transient generation failures.
	Retry RetryPolicy
}

// Synthesizer merges retrieved chunks and conversation context into a
// generation request and maps the generated citations back to source
// spans.
type Synthesizer struct {
	gen      driven.GenerationService
	docStore driven.DocumentStore
	prompts  driven.PromptStore
	cfg      SynthesizerConfig
}

// NewSynthesizer creates an answer synthesizer.
func NewSynthesizer(
	gen driven.GenerationService,
	docStore driven.DocumentStore,
	prompts driven.PromptStore,
	cfg SynthesizerConfig,
) *Synthesizer {
	return &Synthesizer{
		gen:      gen,
		docStore: docStore,
		prompts:  prompts,
		cfg:      cfg,
	}
}

// Synthesize builds the generation request from the conversation
// context, the query, and the retrieved chunks tagged with [n]
// markers, then resolves the markers in the generated text back to
// source chunks.
//
// It fails only if the generation call itself fails. Citation
// resolution never raises: a marker that does not resolve to a
// supplied chunk is dropped and the answer is flagged
// CitationsIncomplete.
func (s *Synthesizer) Synthesize(
	ctx context.Context, query string, results []domain.RetrievalResult, memoryContext []domain.Turn,
) (*domain.Answer, error) {
	segments, supplied, err := s.buildRequest(ctx, query, results, memoryContext)
	if err != nil {
		return nil, err
	}

	logger.Section("Synthesis")
	logger.Debug("Generation request: %d segments, %d context chunks", len(segments), len(supplied))

	var raw string
	err = retry(ctx, s.cfg.Retry, "generate answer", func(ctx context.Context) error {
		var genErr error
		raw, genErr = s.gen.Generate(ctx, segments, driven.GenerateOptions{
			MaxTokens:   s.cfg.MaxTokens,
			Temperature: s.cfg.Temperature,
		})
		return genErr
	})
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	answer := s.resolveCitations(ctx, raw, supplied)
	logger.Info("Answer: %d citations, incomplete=%t", len(answer.Citations), answer.CitationsIncomplete)
	return answer, nil
}

// buildRequest assembles the ordered role-tagged segments and returns
// the chunks supplied as context, indexed by marker number.
func (s *Synthesizer) buildRequest(
	ctx context.Context, query string, results []domain.RetrievalResult, memoryContext []domain.Turn,
) ([]driven.Segment, map[int]domain.Chunk, error) {
	system, err := s.prompts.Load(driven.PromptAnswerSystem)
	if err != nil {
		return nil, nil, fmt.Errorf("load system prompt: %w", err)
	}

	segments := make([]driven.Segment, 0, len(memoryContext)+3)
	segments = append(segments, driven.Segment{Role: "system", Content: system})

	supplied := make(map[int]domain.Chunk, len(results))
	if len(results) > 0 {
		var b strings.Builder
		b.WriteString("Retrieved context:\n")
		for i, r := range results {
			chunk, err := s.docStore.GetChunk(ctx, r.ChunkID)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					// Deleted between retrieval and synthesis; the
					// marker slot stays empty and will not resolve.
					continue
				}
				return nil, nil, fmt.Errorf("get chunk %s: %w", r.ChunkID, err)
			}
			marker := i + 1
			supplied[marker] = *chunk
			fmt.Fprintf(&b, "[%d] %s\n", marker, chunk.Text)
		}
		segments = append(segments, driven.Segment{Role: "system", Content: b.String()})
	}

	for _, turn := range memoryContext {
		role := string(turn.Role)
		if turn.Role == domain.RoleSummary {
			role = "system"
		}
		segments = append(segments, driven.Segment{Role: role, Content: turn.Content})
	}

	segments = append(segments, driven.Segment{Role: "user", Content: query})
	return segments, supplied, nil
}

// resolveCitations parses [n] markers from the generated text and maps
// each to its source chunk. Unresolvable markers are dropped and flag
// the answer as incomplete.
func (s *Synthesizer) resolveCitations(
	ctx context.Context, raw string, supplied map[int]domain.Chunk,
) *domain.Answer {
	answer := &domain.Answer{Text: raw}

	seen := make(map[int]bool)
	for _, match := range markerPattern.FindAllStringSubmatch(raw, -1) {
		marker, err := strconv.Atoi(match[1])
		if err != nil || seen[marker] {
			continue
		}
		seen[marker] = true

		chunk, ok := supplied[marker]
		if !ok {
			logger.Warn("Generated marker [%d] does not match any supplied chunk", marker)
			answer.CitationsIncomplete = true
			continue
		}

		answer.Citations = append(answer.Citations, domain.Citation{
			Marker:     marker,
			ChunkID:    chunk.ID,
			DocumentID: chunk.DocumentID,
			SourceURI:  s.sourceURI(ctx, chunk.DocumentID),
			Span:       chunk.Span,
		})
	}

	// Markers ordered by number for a stable citation footer.
	sort.Slice(answer.Citations, func(i, j int) bool {
		return answer.Citations[i].Marker < answer.Citations[j].Marker
	})
	return answer
}

// sourceURI looks up the document's source for display. Best effort:
// citation resolution never fails the answer.
func (s *Synthesizer) sourceURI(ctx context.Context, documentID string) string {
	doc, err := s.docStore.GetDocument(ctx, documentID)
	if err != nil {
		return ""
	}
	return doc.SourceURI
}
