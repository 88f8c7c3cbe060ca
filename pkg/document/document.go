// Package document holds the page-ordered plain text produced by the
// upstream text-extraction service and the helpers that normalize it
// into a line sequence for segmentation and extraction.
package document

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Document is a complete, in-memory transcription of a source document.
// Lines are immutable once the document is constructed.
type Document struct {
	// Name identifies the document in logs and reports, usually its file name.
	Name string

	lines []string
}

// New builds a Document from raw extracted text. Line endings are
// normalized to "\n" and the text is converted to Unicode NFC so that
// glyphs emitted in decomposed form by PDF extractors compare equal to
// their composed spelling.
func New(name string, text string) *Document {
	return &Document{
		Name:  name,
		lines: SplitLines(text),
	}
}

// FromLines builds a Document from an already split line sequence.
// The slice is copied.
func FromLines(name string, lines []string) *Document {
	copied := make([]string, len(lines))
	copy(copied, lines)
	return &Document{Name: name, lines: copied}
}

// SplitLines normalizes text and splits it on newlines.
func SplitLines(text string) []string {
	normalized := norm.NFC.String(text)
	normalized = strings.ReplaceAll(normalized, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")
	return strings.Split(normalized, "\n")
}

// Lines returns the document's lines. Callers must not modify the slice.
func (d *Document) Lines() []string {
	return d.lines
}

// Len returns the number of lines in the document.
func (d *Document) Len() int {
	return len(d.lines)
}

// Line returns the line with the given 1-based line number, or "" when
// the number is out of range.
func (d *Document) Line(lineNumber int) string {
	if lineNumber < 1 || lineNumber > len(d.lines) {
		return ""
	}
	return d.lines[lineNumber-1]
}

// Slice returns the lines in the half-open index range [start, end).
// Indices are clamped to the document bounds.
func (d *Document) Slice(start, end int) []string {
	if start < 0 {
		start = 0
	}
	if end > len(d.lines) {
		end = len(d.lines)
	}
	if start >= end {
		return nil
	}
	return d.lines[start:end]
}

// Text reassembles the document into a single newline-delimited string.
func (d *Document) Text() string {
	return strings.Join(d.lines, "\n")
}
