package services

import (
	"bytes"
	"fmt"
	"log"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFExtractor pulls the raw text out of an uploaded question paper.
// Row-based extraction is tried first because it preserves the line
// structure the question parser depends on.
type PDFExtractor struct{}

// NewPDFExtractor creates a new PDF extractor
func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// sanitizePDF truncates trailing garbage after the last %%EOF marker. Papers
// downloaded from university portals frequently carry appended HTML.
func sanitizePDF(content []byte) []byte {
	if !bytes.HasPrefix(content, []byte("%PDF-")) {
		return content
	}

	eofMarker := []byte("%%EOF")
	lastEOF := bytes.LastIndex(content, eofMarker)
	if lastEOF == -1 {
		return content
	}

	pdfEnd := lastEOF + len(eofMarker)
	for pdfEnd < len(content) && (content[pdfEnd] == '\n' || content[pdfEnd] == '\r') {
		pdfEnd++
	}

	if extra := len(content) - pdfEnd; extra > 10 {
		log.Printf("PDFExtractor: removing %d bytes of trailing garbage after %%EOF", extra)
		return content[:pdfEnd]
	}
	return content
}

// ExtractText extracts text from PDF bytes, keeping one line per visual row.
// A very short result usually means a scanned paper that needs OCR; that
// case is returned as an error so the caller can route to the OCR path.
func (p *PDFExtractor) ExtractText(content []byte) (string, int, error) {
	if len(content) == 0 {
		return "", 0, fmt.Errorf("empty PDF content")
	}

	content = sanitizePDF(content)
	reader := bytes.NewReader(content)

	pdfReader, err := pdf.NewReader(reader, int64(len(content)))
	if err != nil {
		return "", 0, fmt.Errorf("failed to parse PDF: %w", err)
	}

	numPages := pdfReader.NumPage()
	if numPages == 0 {
		return "", 0, fmt.Errorf("PDF has no pages")
	}

	var textBuilder strings.Builder

	for i := 1; i <= numPages; i++ {
		page := pdfReader.Page(i)
		if page.V.IsNull() {
			log.Printf("PDFExtractor: page %d is null, skipping", i)
			continue
		}

		rows, err := page.GetTextByRow()
		if err != nil {
			log.Printf("PDFExtractor: row extraction failed for page %d, trying plain text: %v", i, err)
			text, plainErr := page.GetPlainText(nil)
			if plainErr != nil {
				log.Printf("PDFExtractor: plain text extraction also failed for page %d: %v", i, plainErr)
				continue
			}
			textBuilder.WriteString(text)
			textBuilder.WriteString("\n")
			continue
		}

		for _, row := range rows {
			var rowText strings.Builder
			for _, word := range row.Content {
				rowText.WriteString(word.S)
			}
			line := strings.TrimSpace(rowText.String())
			if line != "" {
				textBuilder.WriteString(line)
				textBuilder.WriteString("\n")
			}
		}
		textBuilder.WriteString("\n")
	}

	extracted := strings.TrimSpace(textBuilder.String())
	if len(extracted) < 50 {
		return "", numPages, fmt.Errorf("insufficient text extracted from PDF (only %d characters) - paper may be scanned and require OCR", len(extracted))
	}

	log.Printf("PDFExtractor: extracted %d characters from %d pages", len(extracted), numPages)
	return extracted, numPages, nil
}

// GetPageCount returns the total number of pages in the PDF
func (p *PDFExtractor) GetPageCount(content []byte) (int, error) {
	if len(content) == 0 {
		return 0, fmt.Errorf("empty PDF content")
	}

	content = sanitizePDF(content)
	pdfReader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return 0, fmt.Errorf("failed to parse PDF: %w", err)
	}
	return pdfReader.NumPage(), nil
}
