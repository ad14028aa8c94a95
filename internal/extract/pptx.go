package extract

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// slidePath matches ppt/slides/slideN.xml and captures N.
var slidePath = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// atTag matches <a:t>text</a:t> with any attributes.
var atTag = regexp.MustCompile(`<a:t[^>]*>([^<]*)</a:t>`)

// extractPPTX joins the <a:t> runs of every slide in slide order. Each slide
// counts as one page.
func extractPPTX(data []byte) (string, int, error) {
	zr, err := openZip(data, "PPTX")
	if err != nil {
		return "", 0, err
	}
	type slide struct {
		num  int
		name string
	}
	var slides []slide
	for _, f := range zr.File {
		m := slidePath.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{num: n, name: f.Name})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	var b strings.Builder
	for _, s := range slides {
		xml, err := readZipEntry(zr, s.name)
		if err != nil {
			return "", 0, fmt.Errorf("extract PPTX: %w", err)
		}
		joinMatches(&b, atTag, string(xml))
	}
	return b.String(), len(slides), nil
}
