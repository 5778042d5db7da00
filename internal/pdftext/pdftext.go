// Package pdftext extracts plain text from PDF judgments for identifier
// fallback when the HTML page yields nothing usable.
package pdftext

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
)

// Extract returns the concatenated plain text of every page in the PDF.
func Extract(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	rc, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rc); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return buf.String(), nil
}

// ExtractHead returns at most limit characters of extracted text. Identifier
// patterns sit on the first page, so callers rarely need the full document.
func ExtractHead(data []byte, limit int) (string, error) {
	text, err := Extract(data)
	if err != nil {
		return "", err
	}
	if limit > 0 && len(text) > limit {
		text = text[:limit]
	}
	return text, nil
}
