// Package html reduces HTML documents to readable plain text.
package html

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/parley-cli/internal/core/domain"
)

// Pre-compiled expressions for HTML stripping.
var (
	scriptTags    = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleTags     = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	noscriptTags  = regexp.MustCompile(`(?is)<noscript[^>]*>.*?</noscript>`)
	headTags      = regexp.MustCompile(`(?is)<head[^>]*>.*?</head>`)
	svgTags       = regexp.MustCompile(`(?is)<svg[^>]*>.*?</svg>`)
	comments      = regexp.MustCompile(`(?s)<!--.*?-->`)
	openBlocks    = regexp.MustCompile(`(?i)<(p|div|h[1-6]|li|tr|blockquote|pre|table|section|article)[^>]*>`)
	closeBlocks   = regexp.MustCompile(`(?i)</(p|div|br|hr|h[1-6]|li|tr|blockquote|pre|table|section|article)>`)
	brTags        = regexp.MustCompile(`(?i)<br\s*/?>`)
	hrTags        = regexp.MustCompile(`(?i)<hr\s*/?>`)
	allTags       = regexp.MustCompile(`<[^>]+>`)
	multiSpaces   = regexp.MustCompile(`[ \t]+`)
	multiNewlines = regexp.MustCompile(`\n{3,}`)
)

// Normaliser handles HTML documents.
type Normaliser struct{}

// New creates a new HTML normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// Format names the input format.
func (n *Normaliser) Format() string { return "html" }

// Extensions returns the file extensions this normaliser handles.
func (n *Normaliser) Extensions() []string {
	return []string{"html", "htm", "xhtml"}
}

// Normalise strips tags and non-content elements, decodes entities,
// and keeps block boundaries as newlines so sentence and paragraph
// chunking still find natural breaks.
func (n *Normaliser) Normalise(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", domain.ErrMalformedInput
	}
	content := string(data)

	content = scriptTags.ReplaceAllString(content, "")
	content = styleTags.ReplaceAllString(content, "")
	content = noscriptTags.ReplaceAllString(content, "")
	content = headTags.ReplaceAllString(content, "")
	content = svgTags.ReplaceAllString(content, "")
	content = comments.ReplaceAllString(content, "")

	// Block boundaries become newlines before the tags are dropped.
	content = openBlocks.ReplaceAllString(content, "\n")
	content = closeBlocks.ReplaceAllString(content, "\n")
	content = brTags.ReplaceAllString(content, "\n")
	content = hrTags.ReplaceAllString(content, "\n")
	content = allTags.ReplaceAllString(content, "")

	content = html.UnescapeString(content)
	content = multiSpaces.ReplaceAllString(content, " ")
	content = multiNewlines.ReplaceAllString(content, "\n\n")

	lines := strings.Split(content, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n"), nil
}
