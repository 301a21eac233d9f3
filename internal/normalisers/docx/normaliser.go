// Package docx extracts text from Office Open XML word documents.
package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/custodia-labs/parley-cli/internal/core/domain"
)

// Normaliser handles .docx documents.
type Normaliser struct{}

// New creates a new docx normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// Format names the input format.
func (n *Normaliser) Format() string { return "docx" }

// Extensions returns the file extensions this normaliser handles.
func (n *Normaliser) Extensions() []string {
	return []string{"docx"}
}

// documentXML mirrors the parts of word/document.xml we read.
type documentXML struct {
	Body struct {
		Paragraphs []paragraph `xml:"p"`
	} `xml:"body"`
}

type paragraph struct {
	Runs []run `xml:"r"`
}

type run struct {
	Text []textElement `xml:"t"`
}

type textElement struct {
	Content string `xml:",chardata"`
}

// Normalise unpacks the zip container and joins the text runs of
// word/document.xml, one line per paragraph.
func (n *Normaliser) Normalise(data []byte) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: not a docx container", domain.ErrMalformedInput)
	}

	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("%w: unreadable document part", domain.ErrMalformedInput)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("%w: unreadable document part", domain.ErrMalformedInput)
		}

		return parseDocumentXML(content)
	}
	return "", fmt.Errorf("%w: no word/document.xml in container", domain.ErrMalformedInput)
}

// parseDocumentXML extracts text content from the document XML.
func parseDocumentXML(content []byte) (string, error) {
	var doc documentXML
	if err := xml.Unmarshal(content, &doc); err != nil {
		return "", fmt.Errorf("%w: malformed document xml", domain.ErrMalformedInput)
	}

	var b strings.Builder
	for i, para := range doc.Body.Paragraphs {
		if i > 0 {
			b.WriteString("\n")
		}
		for _, r := range para.Runs {
			for _, t := range r.Text {
				b.WriteString(t.Content)
			}
		}
	}
	return strings.TrimSpace(b.String()), nil
}
