package extractor

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/dshills/mgrep/pkg/types"
)

// extractPDF returns the text of every non-blank page, each preceded by a
// "--- Page N ---" marker and separated by a blank line.
func extractPDF(content []byte) (text string, err error) {
	// The pdf reader panics on some malformed streams
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: pdf: %v", types.ErrExtractionFailed, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("%w: pdf: %v", types.ErrExtractionFailed, err)
	}

	parts := make([]string, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("%w: pdf page %d: %v", types.ErrExtractionFailed, i, err)
		}
		if strings.TrimSpace(pageText) == "" {
			continue
		}

		parts = append(parts, fmt.Sprintf("--- Page %d ---\n%s", i, pageText))
	}

	return strings.Join(parts, "\n\n"), nil
}
