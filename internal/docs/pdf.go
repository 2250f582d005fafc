// Package docs extracts text from uploaded policy documents.
package docs

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ExtractPDFText pulls plain text from a PDF file body. Per-page extraction
// failures are skipped so one bad page does not lose the whole document.
func ExtractPDFText(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty PDF body")
	}
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parse PDF: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err == nil {
		out, readErr := io.ReadAll(plain)
		if readErr == nil && len(bytes.TrimSpace(out)) > 0 {
			return string(out), nil
		}
	}

	// Fall back to page-by-page extraction.
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
		b.WriteString("\n\n")
	}

	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", fmt.Errorf("no extractable text in PDF")
	}
	return text, nil
}
