package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/localrag/localrag/internal/errors"
)

const docxDocumentPath = "word/document.xml"

// wtTag matches <w:t>text</w:t> including variants with attributes such
// as <w:t xml:space="preserve">. Matching the text nodes directly keeps
// the extractor working on real-world documents where paragraph and run
// elements carry revision attributes.
var wtTag = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)

func extractDOCX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeFileUnread, fmt.Errorf("open docx: not a zip: %w", err))
	}

	var docXML []byte
	for _, f := range zr.File {
		if f.Name != docxDocumentPath {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", errors.Wrap(errors.ErrCodeFileUnread, fmt.Errorf("open %s: %w", f.Name, err))
		}
		docXML, err = io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return "", errors.Wrap(errors.ErrCodeFileUnread, fmt.Errorf("read %s: %w", f.Name, err))
		}
		break
	}
	if docXML == nil {
		return "", errors.Newf(errors.ErrCodeFileUnread, "docx: %s not found", docxDocumentPath)
	}

	parts := wtTag.FindAllSubmatch(docXML, -1)
	if len(parts) == 0 {
		return "", nil
	}
	var b strings.Builder
	for i, p := range parts {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.Write(bytes.TrimSpace(p[1]))
	}
	return strings.TrimSpace(b.String()), nil
}
