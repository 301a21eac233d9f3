package services

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/custodia-labs/parley-cli/internal/core/domain"
)

// Splitter selects the boundary unit the chunker prefers.
type Splitter string

const (
	// SplitterSentence prefers sentence boundaries.
	SplitterSentence Splitter = "sentence"
	// SplitterParagraph prefers blank-line paragraph boundaries.
	SplitterParagraph Splitter = "paragraph"
	// SplitterFixed ignores natural boundaries and packs fixed-width
	// token windows.
	SplitterFixed Splitter = "fixed"
)

// Default chunker configuration.
const (
	DefaultMaxTokens       = 200
	DefaultOverlapTokens   = 40
	DefaultMaxDocumentSize = 10 << 20 // 10 MiB of extracted text
)

// ChunkerConfig configures the chunker.
type ChunkerConfig struct {
	// MaxTokens is the upper bound of tokens per chunk.
	MaxTokens int

	// OverlapTokens is the token span shared between consecutive chunks.
	OverlapTokens int

	// Splitter is the preferred boundary unit.
	Splitter Splitter

	// MaxDocumentSize is the maximum accepted extracted-text size in
	// bytes. Larger documents fail with domain.ErrMalformedInput.
	MaxDocumentSize int
}

// Chunker splits document text into overlapping chunks with stable
// provenance metadata. It is a pure function over its input: chunk IDs
// derive from (document, version, sequence), so re-chunking the same
// version yields identical IDs and spans.
type Chunker struct {
	cfg ChunkerConfig
}

// NewChunker creates a chunker, applying defaults for zero fields.
func NewChunker(cfg ChunkerConfig) *Chunker {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.OverlapTokens < 0 {
		cfg.OverlapTokens = 0
	}
	// Overlap below chunk size, or chunking cannot advance.
	if cfg.OverlapTokens >= cfg.MaxTokens {
		cfg.OverlapTokens = cfg.MaxTokens / 4
	}
	if cfg.Splitter == "" {
		cfg.Splitter = SplitterSentence
	}
	if cfg.MaxDocumentSize <= 0 {
		cfg.MaxDocumentSize = DefaultMaxDocumentSize
	}
	return &Chunker{cfg: cfg}
}

// unit is a span of text that should not be split unless it alone
// exceeds the chunk budget.
type unit struct {
	span   domain.Span
	tokens int
}

// Chunk splits the document's text into chunks of at most MaxTokens
// with OverlapTokens shared between consecutive chunks.
func (c *Chunker) Chunk(doc *domain.Document) ([]domain.Chunk, error) {
	if strings.TrimSpace(doc.Text) == "" {
		return nil, fmt.Errorf("%w: document %s has no text", domain.ErrMalformedInput, doc.ID)
	}
	if len(doc.Text) > c.cfg.MaxDocumentSize {
		return nil, fmt.Errorf("%w: document %s exceeds %d bytes",
			domain.ErrMalformedInput, doc.ID, c.cfg.MaxDocumentSize)
	}

	units := c.segment(doc.Text)

	chunks := make([]domain.Chunk, 0, len(units))
	seq := 0
	i := 0
	for i < len(units) {
		first := i
		tokens := units[i].tokens
		i++
		for i < len(units) && tokens+units[i].tokens <= c.cfg.MaxTokens {
			tokens += units[i].tokens
			i++
		}

		span := domain.Span{Start: units[first].span.Start, End: units[i-1].span.End}
		chunks = append(chunks, domain.Chunk{
			ID:         domain.ChunkID(doc.ID, doc.Version, seq),
			DocumentID: doc.ID,
			Version:    doc.Version,
			Seq:        seq,
			Text:       doc.Text[span.Start:span.End],
			Span:       span,
			TokenCount: tokens,
		})
		seq++

		if i >= len(units) {
			break
		}

		// Rewind to share trailing units as overlap. Never rewind past
		// the second unit of the chunk just emitted, so consecutive
		// chunk starts stay strictly increasing.
		overlap := 0
		back := i
		for back > first+1 && overlap+units[back-1].tokens <= c.cfg.OverlapTokens {
			overlap += units[back-1].tokens
			back--
		}
		i = back
	}

	return chunks, nil
}

// segment splits text into atomic units according to the configured
// splitter. Units larger than the chunk budget are force-split
// fixed-width so the packer can always make progress.
func (c *Chunker) segment(text string) []unit {
	var spans []domain.Span
	switch c.cfg.Splitter {
	case SplitterParagraph:
		spans = paragraphSpans(text)
	case SplitterFixed:
		spans = []domain.Span{trimmedSpan(text, 0, len(text))}
	default:
		spans = sentenceSpans(text)
	}

	units := make([]unit, 0, len(spans))
	for _, s := range spans {
		tokens := countTokens(text[s.Start:s.End])
		if tokens <= c.cfg.MaxTokens {
			units = append(units, unit{span: s, tokens: tokens})
			continue
		}
		// No natural boundary fits the budget; fall back to
		// fixed-width windows of whole words.
		units = append(units, fixedUnits(text, s, c.cfg.MaxTokens)...)
	}
	return units
}

// countTokens counts whitespace-delimited tokens.
// A deliberate simplification: provider tokenisers differ, and chunk
// budgets only need to be consistent, not exact.
func countTokens(s string) int {
	return len(strings.Fields(s))
}

// sentenceSpans splits text on sentence terminators (. ! ? and
// newlines) keeping the terminator with the sentence.
func sentenceSpans(text string) []domain.Span {
	var spans []domain.Span
	start := 0
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			end := i + 1
			s := trimmedSpan(text, start, end)
			if s.Len() > 0 {
				spans = append(spans, s)
			}
			start = end
		}
	}
	if s := trimmedSpan(text, start, len(text)); s.Len() > 0 {
		spans = append(spans, s)
	}
	return spans
}

// paragraphSpans splits text on blank lines.
func paragraphSpans(text string) []domain.Span {
	var spans []domain.Span
	start := 0
	for {
		idx := strings.Index(text[start:], "\n\n")
		if idx < 0 {
			break
		}
		if s := trimmedSpan(text, start, start+idx); s.Len() > 0 {
			spans = append(spans, s)
		}
		start += idx + 2
	}
	if s := trimmedSpan(text, start, len(text)); s.Len() > 0 {
		spans = append(spans, s)
	}
	return spans
}

// fixedUnits splits an oversized span into windows of at most
// maxTokens whole words.
func fixedUnits(text string, s domain.Span, maxTokens int) []unit {
	var units []unit
	inWord := false
	wordStart := 0
	unitStart := -1
	tokens := 0
	var unitEnd int

	flush := func() {
		if tokens > 0 {
			units = append(units, unit{
				span:   domain.Span{Start: unitStart, End: unitEnd},
				tokens: tokens,
			})
		}
		unitStart = -1
		tokens = 0
	}

	for i := s.Start; i <= s.End; i++ {
		isSpace := i == s.End || unicode.IsSpace(rune(text[i]))
		switch {
		case !inWord && !isSpace:
			inWord = true
			wordStart = i
		case inWord && isSpace:
			inWord = false
			if tokens == maxTokens {
				flush()
			}
			if unitStart < 0 {
				unitStart = wordStart
			}
			tokens++
			unitEnd = i
		}
	}
	flush()
	return units
}

// trimmedSpan narrows [start, end) to exclude leading and trailing
// whitespace.
func trimmedSpan(text string, start, end int) domain.Span {
	for start < end && unicode.IsSpace(rune(text[start])) {
		start++
	}
	for end > start && unicode.IsSpace(rune(text[end-1])) {
		end--
	}
	return domain.Span{Start: start, End: end}
}
