// Package normalisers extracts plain text from document formats before
// ingestion. Each normaliser knows how to reduce one family of formats
// to the extracted text the core pipeline works on.
//
// Normalisers are registered with the Registry at startup and selected
// by file extension, falling back to plain text.
package normalisers
