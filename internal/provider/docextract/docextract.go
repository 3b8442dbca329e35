// Package docextract implements provider.DocumentExtractor for PDF and
// DOCX files. PDF pages are extracted with ledongthuc/pdf (page-wise,
// grounded on the pack's own indirect dependency on that library); DOCX
// paragraphs are extracted with nguyenthenguyen/docx, an out-of-pack
// ecosystem library chosen because no example in the retrieval pack wires
// a DOCX parser.
package docextract

import (
	"bytes"
	"fmt"
	"html"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"

	"mailrelay.app/engine/internal/provider"
)

// Extractor implements provider.DocumentExtractor for .pdf and .docx files.
type Extractor struct{}

// New returns a PDF/DOCX Extractor.
func New() *Extractor {
	return &Extractor{}
}

var _ provider.DocumentExtractor = (*Extractor)(nil)

func (e *Extractor) Extract(filename string, data []byte) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return extractPDF(data)
	case ".docx":
		return extractDOCX(data)
	default:
		return "", fmt.Errorf("docextract: unsupported extension for %q", filename)
	}
}

func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("docextract: open pdf: %w", err)
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String(), nil
}

var docxTag = regexp.MustCompile(`<[^>]+>`)

// extractDOCX returns the document's paragraphs joined by line breaks.
// GetContent yields the raw document.xml, so paragraph closes become
// newlines before the remaining markup is stripped.
func extractDOCX(data []byte) (string, error) {
	reader, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("docextract: open docx: %w", err)
	}
	defer reader.Close()

	content := reader.Editable().GetContent()
	content = strings.ReplaceAll(content, "</w:p>", "\n")
	content = docxTag.ReplaceAllString(content, "")
	return strings.TrimSpace(html.UnescapeString(content)), nil
}
