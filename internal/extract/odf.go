package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/lu4p/cat"
)

const odfContentPath = "content.xml"

var (
	odfTextP    = regexp.MustCompile(`<text:p[^>]*>([^<]*)</text:p>`)
	odfTextSpan = regexp.MustCompile(`<text:span[^>]*>([^<]*)</text:span>`)
	odfTextH    = regexp.MustCompile(`<text:h[^>]*>([^<]*)</text:h>`)

	// Slides in a presentation, sheets in a spreadsheet.
	odpPageTag = regexp.MustCompile(`<draw:page[\s>]`)
	odsPageTag = regexp.MustCompile(`<table:table[\s>]`)
)

// extractODF extracts OpenDocument presentations and spreadsheets from
// content.xml. pageTag counts the slides or sheets reported as pages.
func extractODF(data []byte, pageTag *regexp.Regexp) (string, int, error) {
	zr, err := openZip(data, "OpenDocument")
	if err != nil {
		return "", 0, err
	}
	content, err := readZipEntry(zr, odfContentPath)
	if err != nil {
		return "", 0, fmt.Errorf("extract OpenDocument: %w", err)
	}
	if content == nil {
		return "", 0, fmt.Errorf("extract OpenDocument: %s not found", odfContentPath)
	}
	s := string(content)
	var b strings.Builder
	joinMatches(&b, odfTextH, s)
	joinMatches(&b, odfTextP, s)
	joinMatches(&b, odfTextSpan, s)
	return b.String(), len(pageTag.FindAllStringIndex(s, -1)), nil
}

// extractCat handles OpenDocument text and RTF.
func extractCat(data []byte) (string, error) {
	text, err := cat.FromBytes(data)
	if err != nil {
		return "", fmt.Errorf("extract document: %w", err)
	}
	return strings.TrimSpace(text), nil
}
