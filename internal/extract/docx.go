package extract

import (
	"archive/zip"
	"fmt"
	"regexp"
	"strings"
)

const (
	docxDocumentXMLPath = "word/document.xml"
	contentTypesPath    = "[Content_Types].xml"
	docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
)

// wtTag matches <w:t>text</w:t> with any attributes.
var wtTag = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)

// The main part override may list PartName before or after ContentType.
var (
	partNameFirst = regexp.MustCompile(`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"`)
	partNameLast  = regexp.MustCompile(`<Override[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"[^>]+PartName="([^"]+)"`)
)

// docxMainPart resolves the main document part from [Content_Types].xml,
// falling back to word/document.xml.
func docxMainPart(zr *zip.Reader) string {
	types, err := readZipEntry(zr, contentTypesPath)
	if err != nil || types == nil {
		return docxDocumentXMLPath
	}
	for _, re := range []*regexp.Regexp{partNameFirst, partNameLast} {
		if m := re.FindSubmatch(types); len(m) > 1 {
			return strings.TrimPrefix(string(m[1]), "/")
		}
	}
	return docxDocumentXMLPath
}

// extractDOCX joins every <w:t> run of the main document part. Paragraph
// and run attributes are ignored.
func extractDOCX(data []byte) (string, error) {
	zr, err := openZip(data, "DOCX")
	if err != nil {
		return "", err
	}
	part := docxMainPart(zr)
	body, err := readZipEntry(zr, part)
	if err != nil {
		return "", fmt.Errorf("extract DOCX: %w", err)
	}
	if body == nil {
		return "", fmt.Errorf("extract DOCX: %s not found", part)
	}
	var b strings.Builder
	joinMatches(&b, wtTag, string(body))
	return b.String(), nil
}
