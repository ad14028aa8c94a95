// Package search builds lexical indexes over chunks and ranks chunks against queries.
package search

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/hyperjump/docrag/internal/analysis"
	"github.com/hyperjump/docrag/internal/config"
	"github.com/hyperjump/docrag/internal/models"
)

// Vocabulary is the lexical index of one chunk set. DocFreq and IDF share keys.
type Vocabulary struct {
	DocFreq map[string]int
	IDF     map[string]float64
}

// Engine builds indexes and scores queries. Its only mutable state is the
// RAGConfig and the analyzer derived from it.
type Engine struct {
	mu       sync.RWMutex
	config   config.RAGConfig
	analyzer *analysis.Analyzer
}

// NewEngine creates an engine using cfg.
func NewEngine(cfg config.RAGConfig) *Engine {
	cfg = cfg.Normalize()
	return &Engine{
		config:   cfg,
		analyzer: analysis.MustNew(cfg.FilterStopwords),
	}
}

// SetConfig replaces the engine configuration.
func (e *Engine) SetConfig(cfg config.RAGConfig) {
	cfg = cfg.Normalize()
	e.mu.Lock()
	defer e.mu.Unlock()
	if cfg.FilterStopwords != e.config.FilterStopwords {
		e.analyzer = analysis.MustNew(cfg.FilterStopwords)
	}
	e.config = cfg
}

// Config returns the current configuration.
func (e *Engine) Config() config.RAGConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.config
}

func (e *Engine) snapshot() (config.RAGConfig, *analysis.Analyzer) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.config, e.analyzer
}

// IDF is the smoothed inverse document frequency log((1+n)/(1+df)) + 1.
// It is positive for every df in [0, n] and strictly decreasing in df.
func IDF(n, df int) float64 {
	return math.Log(float64(1+n)/float64(1+df)) + 1
}

// BuildIndex counts, for every term, the number of chunks containing it and
// derives its IDF weight.
func (e *Engine) BuildIndex(chunks []*models.Chunk) Vocabulary {
	_, analyzer := e.snapshot()
	df := make(map[string]int)
	for _, ch := range chunks {
		for _, term := range analyzer.UniqueTerms(ch.Text) {
			df[term]++
		}
	}
	idf := make(map[string]float64, len(df))
	for term, n := range df {
		idf[term] = IDF(len(chunks), n)
	}
	return Vocabulary{DocFreq: df, IDF: idf}
}

// Search scores every chunk as the sum of tf × idf over the distinct query
// terms it contains, optionally divided by a pivoted length norm. Chunks
// scoring at or below MinScore are dropped; the top TopK are returned by
// descending score, ties going to the earlier chunk.
func (e *Engine) Search(query string, chunks []*models.Chunk, index *models.DocumentIndex) []*models.SearchResult {
	cfg, analyzer := e.snapshot()
	if index == nil || len(chunks) == 0 {
		return nil
	}

	var terms []string
	for _, t := range analyzer.UniqueTerms(query) {
		if _, ok := index.IDF[t]; ok {
			terms = append(terms, t)
		}
	}
	if len(terms) == 0 {
		return nil
	}

	results := make([]*models.SearchResult, 0)
	for _, ch := range chunks {
		freqs, _ := analyzer.TermFrequencies(ch.Text)
		var (
			score   float64
			matched []string
		)
		for _, t := range terms {
			if tf := freqs[t]; tf > 0 {
				score += float64(tf) * index.IDF[t]
				matched = append(matched, t)
			}
		}
		if score == 0 {
			continue
		}
		score /= lengthNorm(cfg.LengthNormalization, ch.WordCount, index.AvgChunkLength)
		if score <= cfg.MinScore {
			continue
		}
		sort.Strings(matched)
		results = append(results, &models.SearchResult{Chunk: ch, Score: score, MatchedTerms: matched})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > cfg.TopK {
		results = results[:cfg.TopK]
	}
	return results
}

// lengthNorm is 1 - b + b·(length/avg), with length and avg in whitespace
// words. It returns 1 when b or either length is zero.
func lengthNorm(b float64, length int, avg float64) float64 {
	if b <= 0 || length <= 0 || avg <= 0 {
		return 1
	}
	return 1 - b + b*float64(length)/avg
}

// BuildContext renders results in the given order, each prefixed with its page
// number, joined by the configured separator.
func (e *Engine) BuildContext(results []*models.SearchResult) string {
	if len(results) == 0 {
		return ""
	}
	cfg, _ := e.snapshot()
	parts := make([]string, 0, len(results))
	for _, r := range results {
		parts = append(parts, fmt.Sprintf("[Page %d]\n%s", r.Chunk.PageNumber, r.Chunk.Text))
	}
	return strings.Join(parts, cfg.ContextSeparator)
}
