// Package extract reads document files into plain text with a page count.
package extract

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
)

// WordsPerPage is used to estimate page counts for formats without pages.
const WordsPerPage = 500

// Content is the extracted text of one file.
type Content struct {
	Text  string
	Pages int
}

// Extractor extracts text from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Supported reports whether ext (with leading dot) has a dedicated extractor.
// Unknown extensions are still extracted as plain text.
func Supported(ext string) bool {
	switch strings.ToLower(ext) {
	case ".pdf", ".docx", ".odt", ".rtf", ".xlsx", ".pptx", ".odp", ".ods", ".txt", ".md", ".rst":
		return true
	}
	return false
}

// Extract reads the file at path and returns its text and page count.
func (e *Extractor) Extract(path string) (*Content, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(data, strings.ToLower(filepath.Ext(path)))
}

// ExtractBytes extracts text from data based on ext, which includes the
// leading dot (e.g. ".pdf"). PDF, spreadsheet and presentation formats report
// their real page, sheet or slide count; everything else is estimated from
// the word count.
func (e *Extractor) ExtractBytes(data []byte, ext string) (*Content, error) {
	var (
		text  string
		pages int
		err   error
	)
	switch ext {
	case ".pdf":
		text, pages, err = extractPDF(data)
	case ".docx":
		text, err = extractDOCX(data)
	case ".odt", ".rtf":
		text, err = extractCat(data)
	case ".xlsx":
		text, pages, err = extractExcel(data)
	case ".pptx":
		text, pages, err = extractPPTX(data)
	case ".odp":
		text, pages, err = extractODF(data, odpPageTag)
	case ".ods":
		text, pages, err = extractODF(data, odsPageTag)
	default:
		text = extractPlain(data)
	}
	if err != nil {
		return nil, err
	}
	if pages < 1 {
		pages = EstimatePages(text)
	}
	return &Content{Text: text, Pages: pages}, nil
}

// EstimatePages returns ceil(words / WordsPerPage), at least 1.
func EstimatePages(text string) int {
	words := len(strings.Fields(text))
	pages := int(math.Ceil(float64(words) / WordsPerPage))
	if pages < 1 {
		return 1
	}
	return pages
}
