package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnalyzer_Terms(t *testing.T) {
	a := MustNew(false)
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"lowercases and drops punctuation", "The cat sat. The dog ran.", []string{"the", "cat", "sat", "the", "dog", "ran"}},
		{"splits on symbols", "alpha,beta;gamma-delta", []string{"alpha", "beta", "gamma", "delta"}},
		{"keeps numbers", "Chapter 12 covers 2024", []string{"chapter", "12", "covers", "2024"}},
		{"splits underscores", "user_id field", []string{"user", "id", "field"}},
		{"splits apostrophes", "don't stop", []string{"don", "t", "stop"}},
		{"splits decimal points", "version 3.14", []string{"version", "3", "14"}},
		{"splits abbreviations", "U.S.A rocks", []string{"u", "s", "a", "rocks"}},
		{"non-latin letters", "Café naïve 東京", []string{"café", "naïve", "東京"}},
		{"empty", "", nil},
		{"only punctuation", "... !!! ---", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.Terms(tt.text)
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAnalyzer_Stopwords(t *testing.T) {
	with := MustNew(true)
	without := MustNew(false)

	assert.Equal(t, []string{"cat", "sat", "mat"}, with.Terms("The cat sat on the mat"))
	assert.Contains(t, without.Terms("The cat sat on the mat"), "the")
}

func TestAnalyzer_TermFrequencies(t *testing.T) {
	a := MustNew(false)
	freqs, length := a.TermFrequencies("Dog dog DOG cat")
	assert.Equal(t, 4, length)
	assert.Equal(t, 3, freqs["dog"])
	assert.Equal(t, 1, freqs["cat"])
}

func TestAnalyzer_UniqueTerms(t *testing.T) {
	a := MustNew(false)
	assert.Equal(t, []string{"dog", "cat"}, a.UniqueTerms("dog cat Dog"))
}
