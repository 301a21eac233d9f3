package docx

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/parley-cli/internal/core/domain"
)

// buildDocx assembles a minimal docx container around the document XML.
func buildDocx(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	f, err := w.Create("word/document.xml")
	require.NoError(t, err)
	_, err = f.Write([]byte(documentXML))
	require.NoError(t, err)

	require.NoError(t, w.Close())
	return buf.Bytes()
}

const sampleDocument = `<?xml version="1.0"?>
<document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <body>
    <p><r><t>First paragraph.</t></r><r><t> Continued run.</t></r></p>
    <p><r><t>Second paragraph.</t></r></p>
  </body>
</document>`

func TestNormalise_ExtractsParagraphs(t *testing.T) {
	n := New()

	text, err := n.Normalise(buildDocx(t, sampleDocument))

	require.NoError(t, err)
	assert.Equal(t, "First paragraph. Continued run.\nSecond paragraph.", text)
}

func TestNormalise_NotAZip(t *testing.T) {
	n := New()

	_, err := n.Normalise([]byte("just some text"))

	assert.ErrorIs(t, err, domain.ErrMalformedInput)
}

func TestNormalise_MissingDocumentPart(t *testing.T) {
	n := New()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("word/other.xml")
	require.NoError(t, err)
	_, err = f.Write([]byte("<x/>"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = n.Normalise(buf.Bytes())

	assert.ErrorIs(t, err, domain.ErrMalformedInput)
}

func TestNormalise_MalformedXML(t *testing.T) {
	n := New()

	_, err := n.Normalise(buildDocx(t, "<document><body><p>unclosed"))

	assert.ErrorIs(t, err, domain.ErrMalformedInput)
}
