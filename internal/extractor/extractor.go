// Package extractor turns document bytes into plain text for chunking.
package extractor

import (
	"fmt"
	"strings"

	"github.com/dshills/mgrep/internal/router"
	"github.com/dshills/mgrep/pkg/types"
)

// Extractor converts raw document bytes of a given sub-type to plain text
type Extractor interface {
	Extract(content []byte, subtype string) (string, error)
}

// TextExtractor handles the pdf, docx, markdown and text sub-types
type TextExtractor struct{}

// New creates a TextExtractor
func New() *TextExtractor {
	return &TextExtractor{}
}

// Extract dispatches on subtype. Failures wrap types.ErrExtractionFailed.
func (e *TextExtractor) Extract(content []byte, subtype string) (string, error) {
	switch subtype {
	case router.SubtypePDF:
		return extractPDF(content)
	case router.SubtypeDOCX:
		return extractDOCX(content)
	case router.SubtypeMarkdown:
		return stripMarkdown(decodeText(content)), nil
	case router.SubtypeText:
		return decodeText(content), nil
	default:
		return "", fmt.Errorf("%w: no handler for document type %q", types.ErrUnsupportedType, subtype)
	}
}

// decodeText decodes UTF-8, dropping invalid sequences
func decodeText(content []byte) string {
	return strings.ToValidUTF8(string(content), "")
}
