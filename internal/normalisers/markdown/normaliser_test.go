package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/parley-cli/internal/core/domain"
)

func TestNormalise_StripsFormatting(t *testing.T) {
	n := New()

	input := `# Title

Some **bold** and *italic* text with a [link](https://example.com).

- first item
- second item

> a quote

` + "```go\ncode block\n```" + `

1. numbered
`

	text, err := n.Normalise([]byte(input))

	require.NoError(t, err)
	assert.Contains(t, text, "Title")
	assert.Contains(t, text, "Some bold and italic text with a link.")
	assert.Contains(t, text, "first item")
	assert.Contains(t, text, "a quote")
	assert.Contains(t, text, "numbered")
	assert.NotContains(t, text, "https://example.com")
	assert.NotContains(t, text, "code block")
	assert.NotContains(t, text, "#")
	assert.NotContains(t, text, "**")
}

func TestNormalise_KeepsLinkText(t *testing.T) {
	n := New()

	text, err := n.Normalise([]byte("See [the manual](docs/manual.md) for details."))

	require.NoError(t, err)
	assert.Equal(t, "See the manual for details.", text)
}

func TestNormalise_InvalidUTF8(t *testing.T) {
	n := New()

	_, err := n.Normalise([]byte{0xff, 0xfe, 0xfd})

	assert.ErrorIs(t, err, domain.ErrMalformedInput)
}

func TestExtensions(t *testing.T) {
	assert.ElementsMatch(t, []string{"md", "markdown"}, New().Extensions())
	assert.Equal(t, "markdown", New().Format())
}
