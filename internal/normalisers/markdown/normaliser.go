// Package markdown reduces Markdown documents to plain text.
package markdown

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/parley-cli/internal/core/domain"
)

// Pre-compiled expressions for markdown stripping.
var (
	codeBlocks    = regexp.MustCompile("(?s)```[^`]*```")
	inlineCode    = regexp.MustCompile("`[^`]+`")
	images        = regexp.MustCompile(`!\[[^\]]*\]\([^)]+\)`)
	links         = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	headings      = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	blockquotes   = regexp.MustCompile(`(?m)^>\s*`)
	horizontal    = regexp.MustCompile(`(?m)^[-*_]{3,}\s*$`)
	listMarkers   = regexp.MustCompile(`(?m)^\s*[-*+]\s+`)
	numberedLists = regexp.MustCompile(`(?m)^\s*\d+\.\s+`)
	multiNewlines = regexp.MustCompile(`\n{3,}`)
)

// Normaliser handles Markdown documents.
type Normaliser struct{}

// New creates a new Markdown normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// Format names the input format.
func (n *Normaliser) Format() string { return "markdown" }

// Extensions returns the file extensions this normaliser handles.
func (n *Normaliser) Extensions() []string {
	return []string{"md", "markdown"}
}

// Normalise strips markdown formatting, keeping readable text. Link
// text survives, URLs and code blocks do not.
func (n *Normaliser) Normalise(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", domain.ErrMalformedInput
	}
	content := strings.ReplaceAll(string(data), "\r\n", "\n")

	content = codeBlocks.ReplaceAllString(content, "")
	content = inlineCode.ReplaceAllString(content, "")
	content = images.ReplaceAllString(content, "")
	content = links.ReplaceAllString(content, "$1")
	content = headings.ReplaceAllString(content, "")
	content = blockquotes.ReplaceAllString(content, "")
	content = horizontal.ReplaceAllString(content, "")
	content = listMarkers.ReplaceAllString(content, "")
	content = numberedLists.ReplaceAllString(content, "")

	content = strings.ReplaceAll(content, "**", "")
	content = strings.ReplaceAll(content, "__", "")
	content = strings.ReplaceAll(content, "*", "")

	content = multiNewlines.ReplaceAllString(content, "\n\n")
	return strings.TrimSpace(content), nil
}
