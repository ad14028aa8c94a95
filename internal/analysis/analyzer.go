// Package analysis turns text into index terms: runs of letters and digits,
// lowercased, with optional English stopword removal.
package analysis

import (
	"regexp"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/token/stop"
	regexptokenizer "github.com/blevesearch/bleve/v2/analysis/tokenizer/regexp"
)

// termPattern splits on every non-alphanumeric rune, so "user_id", "don't"
// and "3.14" each yield two terms.
var termPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

// Analyzer produces normalized terms. Indexing and querying must use
// analyzers built with the same options.
type Analyzer struct {
	analyzer *analysis.DefaultAnalyzer
}

// New builds an analyzer. When filterStopwords is true, English stopwords
// (bleve's stop_en list) are dropped.
func New(filterStopwords bool) (*Analyzer, error) {
	filters := []analysis.TokenFilter{lowercase.NewLowerCaseFilter()}
	if filterStopwords {
		stopwords := analysis.NewTokenMap()
		if err := stopwords.LoadBytes(en.EnglishStopWords); err != nil {
			return nil, err
		}
		filters = append(filters, stop.NewStopTokensFilter(stopwords))
	}
	return &Analyzer{
		analyzer: &analysis.DefaultAnalyzer{
			Tokenizer:    regexptokenizer.NewRegexpTokenizer(termPattern),
			TokenFilters: filters,
		},
	}, nil
}

// MustNew is New that panics on error. The stopword list is compiled in,
// so an error here is a programming mistake.
func MustNew(filterStopwords bool) *Analyzer {
	a, err := New(filterStopwords)
	if err != nil {
		panic(err)
	}
	return a
}

// Terms returns the terms of text in order, repeats included.
func (a *Analyzer) Terms(text string) []string {
	if text == "" {
		return nil
	}
	stream := a.analyzer.Analyze([]byte(text))
	terms := make([]string, 0, len(stream))
	for _, tok := range stream {
		if len(tok.Term) == 0 {
			continue
		}
		terms = append(terms, string(tok.Term))
	}
	return terms
}

// TermFrequencies counts each term of text.
func (a *Analyzer) TermFrequencies(text string) (freqs map[string]int, length int) {
	terms := a.Terms(text)
	freqs = make(map[string]int, len(terms))
	for _, t := range terms {
		freqs[t]++
	}
	return freqs, len(terms)
}

// UniqueTerms returns the distinct terms of text in first-seen order.
func (a *Analyzer) UniqueTerms(text string) []string {
	terms := a.Terms(text)
	seen := make(map[string]struct{}, len(terms))
	out := terms[:0]
	for _, t := range terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
