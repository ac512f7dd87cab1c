// Package extract turns document files into plain text for indexing.
//
// Plain text, Markdown, and source files pass through with UTF-8
// validation. PDF, DOCX, and XLSX are parsed in-process. Binary media
// (images, audio, video, archives) is reported as having no indexable
// content so callers can skip it without treating that as a failure.
package extract

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/localrag/localrag/internal/errors"
)

// ErrNoContent is returned when a file holds no indexable text,
// e.g. images, audio, video, or compiled binaries.
var ErrNoContent = errors.New(errors.ErrCodeNoContent, "file has no indexable text content", nil)

// Extractor converts file bytes into indexable plain text.
type Extractor struct{}

// New returns a new Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract returns the text content of a file. The extension steers
// format-specific parsers; content sniffing catches binary media that
// hides behind a text-looking name. Returns ErrNoContent for files
// with nothing to index.
func (e *Extractor) Extract(path string, content []byte) (string, error) {
	if len(content) == 0 {
		// Empty files index as documents with zero chunks.
		return "", nil
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".pdf":
		return extractPDF(content)
	case ".docx":
		return extractDOCX(content)
	case ".xlsx":
		return extractXLSX(content)
	}

	kind := mimetype.Detect(content)
	if !isTextual(kind) {
		return "", ErrNoContent
	}
	return extractPlain(content)
}

// isTextual reports whether a detected MIME type carries extractable text.
func isTextual(kind *mimetype.MIME) bool {
	for m := kind; m != nil; m = m.Parent() {
		switch {
		case m.Is("text/plain"):
			return true
		case strings.HasPrefix(m.String(), "text/"):
			return true
		case m.Is("application/json"), m.Is("application/xml"), m.Is("application/x-yaml"):
			return true
		}
	}
	return false
}
