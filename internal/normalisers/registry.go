package normalisers

import (
	"path/filepath"
	"strings"

	"github.com/custodia-labs/parley-cli/internal/normalisers/docx"
	"github.com/custodia-labs/parley-cli/internal/normalisers/html"
	"github.com/custodia-labs/parley-cli/internal/normalisers/markdown"
	"github.com/custodia-labs/parley-cli/internal/normalisers/plaintext"
)

// Normaliser extracts plain text from one document format.
type Normaliser interface {
	// Format names the input format, used as the ingestion hint.
	Format() string

	// Extensions returns the file extensions this normaliser handles,
	// without the leading dot.
	Extensions() []string

	// Normalise reduces raw file content to extracted plain text.
	Normalise(data []byte) (string, error)
}

// Registry selects a normaliser by file extension.
type Registry struct {
	byExt    map[string]Normaliser
	fallback Normaliser
}

// NewRegistry creates a registry with the default normalisers
// registered: markdown, html, docx, and a plain-text fallback.
func NewRegistry() *Registry {
	r := &Registry{
		byExt:    make(map[string]Normaliser),
		fallback: plaintext.New(),
	}
	r.Register(markdown.New())
	r.Register(html.New())
	r.Register(docx.New())
	return r
}

// Register adds a normaliser for its extensions, replacing any earlier
// registration for the same extension.
func (r *Registry) Register(n Normaliser) {
	for _, ext := range n.Extensions() {
		r.byExt[strings.ToLower(ext)] = n
	}
}

// ForPath returns the normaliser for the file's extension. Unknown
// extensions get the plain-text fallback.
func (r *Registry) ForPath(path string) Normaliser {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if n, ok := r.byExt[ext]; ok {
		return n
	}
	return r.fallback
}
