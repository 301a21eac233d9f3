// Package plaintext passes text files through unchanged. It is the
// fallback for extensions no other normaliser claims.
package plaintext

import (
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/parley-cli/internal/core/domain"
)

// Normaliser handles plain text documents.
type Normaliser struct{}

// New creates a new plain text normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// Format names the input format.
func (n *Normaliser) Format() string { return "text" }

// Extensions returns the file extensions this normaliser handles.
func (n *Normaliser) Extensions() []string {
	return []string{"txt", "text", "log", "csv", "json", "yaml", "yml", "toml"}
}

// Normalise passes the content through, normalising line endings.
// Content that is not valid UTF-8 is rejected rather than indexed as
// garbage.
func (n *Normaliser) Normalise(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", domain.ErrMalformedInput
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	return strings.TrimSpace(text), nil
}
