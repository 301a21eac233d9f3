package html

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalise_StripsTags(t *testing.T) {
	n := New()

	input := `<html><head><title>Ignored</title><style>body { color: red }</style></head>
<body>
<script>alert("nope")</script>
<h1>Heading</h1>
<p>First paragraph with <b>bold</b> text.</p>
<p>Second &amp; final paragraph.</p>
</body></html>`

	text, err := n.Normalise([]byte(input))

	require.NoError(t, err)
	assert.Contains(t, text, "Heading")
	assert.Contains(t, text, "First paragraph with bold text.")
	assert.Contains(t, text, "Second & final paragraph.")
	assert.NotContains(t, text, "Ignored")
	assert.NotContains(t, text, "alert")
	assert.NotContains(t, text, "color: red")
	assert.NotContains(t, text, "<")
}

func TestNormalise_BlockBoundariesBecomeNewlines(t *testing.T) {
	n := New()

	text, err := n.Normalise([]byte("<p>One.</p><p>Two.</p>"))

	require.NoError(t, err)
	assert.Equal(t, "One.\nTwo.", text)
}

func TestNormalise_DecodesEntities(t *testing.T) {
	n := New()

	text, err := n.Normalise([]byte("<p>fish &amp; chips &lt;now&gt;</p>"))

	require.NoError(t, err)
	assert.Equal(t, "fish & chips <now>", text)
}

func TestNormalise_CollapsesWhitespace(t *testing.T) {
	n := New()

	text, err := n.Normalise([]byte("<div>spaced      out\t\ttext</div>"))

	require.NoError(t, err)
	assert.Equal(t, "spaced out text", text)
}
