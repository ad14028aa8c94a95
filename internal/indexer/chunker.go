// Package indexer splits document text into overlapping, page-tagged chunks.
package indexer

import (
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hyperjump/docrag/internal/config"
	"github.com/hyperjump/docrag/internal/models"
)

// Chunker splits text into sentence-packed word windows.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker from the chunking fields of cfg.
func NewChunker(cfg config.RAGConfig) *Chunker {
	cfg = cfg.Normalize()
	return &Chunker{
		chunkSize:    cfg.ChunkSize,
		chunkOverlap: cfg.ChunkOverlap,
	}
}

// token is a whitespace-delimited word with its byte span in the source text.
type token struct {
	text       string
	start, end int
}

// Chunk splits text into chunks of at most chunkSize words. Sentences are packed
// whole while they fit; a sentence longer than chunkSize is packed word by
// word. Each chunk after the first begins with the last
// chunkOverlap words of its predecessor. Pages are interpolated linearly over
// estimatedPages (values below 1 are treated as 1). Output is deterministic.
func (c *Chunker) Chunk(docID, text string, estimatedPages int) []*models.Chunk {
	if estimatedPages < 1 {
		estimatedPages = 1
	}
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return nil
	}

	var (
		chunks  []*models.Chunk
		window  []int // token indexes of the chunk being built
		fresh   int   // tokens in window not carried over from the previous chunk
		firstAt = -1  // index of the first fresh token
	)
	flush := func() {
		if fresh == 0 {
			return
		}
		chunks = append(chunks, c.newChunk(docID, len(chunks), tokens, window, firstAt, estimatedPages))
		carry := c.chunkOverlap
		if carry > len(window) {
			carry = len(window)
		}
		window = append([]int(nil), window[len(window)-carry:]...)
		fresh = 0
		firstAt = -1
	}
	add := func(piece []int) {
		if fresh > 0 && len(window)+len(piece) > c.chunkSize {
			flush()
		}
		if over := len(window) + len(piece) - c.chunkSize; over > 0 {
			window = window[over:]
		}
		if firstAt < 0 {
			firstAt = piece[0]
		}
		window = append(window, piece...)
		fresh += len(piece)
	}

	for _, sentence := range sentences(tokens) {
		if len(sentence) <= c.chunkSize {
			add(sentence)
			continue
		}
		for i := range sentence {
			add(sentence[i : i+1])
		}
	}
	flush()
	return chunks
}

func (c *Chunker) newChunk(docID string, index int, tokens []token, window []int, firstAt, pages int) *models.Chunk {
	words := make([]string, len(window))
	for i, ti := range window {
		words[i] = tokens[ti].text
	}
	first, last := tokens[window[0]], tokens[window[len(window)-1]]
	return &models.Chunk{
		ID:         fmt.Sprintf("%s_%d", docID, index),
		DocumentID: docID,
		ChunkIndex: index,
		PageNumber: pageFor(firstAt, len(tokens), pages),
		Text:       strings.Join(words, " "),
		WordCount:  len(words),
		StartChar:  first.start,
		EndChar:    last.end,
	}
}

// pageFor maps the token at position pos of total onto [1, pages] by ceil(f × pages).
func pageFor(pos, total, pages int) int {
	f := float64(pos+1) / float64(total)
	p := int(math.Ceil(f * float64(pages)))
	if p < 1 {
		return 1
	}
	if p > pages {
		return pages
	}
	return p
}

// tokenize splits text on unicode whitespace, keeping byte offsets.
func tokenize(text string) []token {
	var tokens []token
	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				tokens = append(tokens, token{text: text[start:i], start: start, end: i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		tokens = append(tokens, token{text: text[start:], start: start, end: len(text)})
	}
	return tokens
}

// sentences groups token indexes into sentences. A token ends a sentence when
// its last rune, ignoring closing quotes and brackets, is '.', '!' or '?'.
func sentences(tokens []token) [][]int {
	var (
		out [][]int
		cur []int
	)
	for i, tok := range tokens {
		cur = append(cur, i)
		if endsSentence(tok.text) {
			out = append(out, cur)
			cur = nil
		}
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

func endsSentence(word string) bool {
	word = strings.TrimRight(word, `"')]}»”’`)
	r, _ := utf8.DecodeLastRuneInString(word)
	switch r {
	case '.', '!', '?':
		return true
	}
	return false
}
