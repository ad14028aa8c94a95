package config

// RAGConfig holds the chunking and retrieval knobs. Values are passed by
// value so each operation works on an immutable snapshot.
type RAGConfig struct {
	ChunkSize           int     `yaml:"chunk_size" toml:"chunk_size" json:"chunk_size"`
	ChunkOverlap        int     `yaml:"chunk_overlap" toml:"chunk_overlap" json:"chunk_overlap"`
	TopK                int     `yaml:"top_k" toml:"top_k" json:"top_k"`
	MinScore            float64 `yaml:"min_score" toml:"min_score" json:"min_score"`
	LengthNormalization float64 `yaml:"length_normalization" toml:"length_normalization" json:"length_normalization"`
	FilterStopwords     bool    `yaml:"filter_stopwords" toml:"filter_stopwords" json:"filter_stopwords"`
	ContextSeparator    string  `yaml:"context_separator" toml:"context_separator" json:"context_separator"`
}

// RAGConfigPatch is a partial RAGConfig. Nil fields keep the current value.
type RAGConfigPatch struct {
	ChunkSize           *int     `json:"chunk_size,omitempty"`
	ChunkOverlap        *int     `json:"chunk_overlap,omitempty"`
	TopK                *int     `json:"top_k,omitempty"`
	MinScore            *float64 `json:"min_score,omitempty"`
	LengthNormalization *float64 `json:"length_normalization,omitempty"`
	FilterStopwords     *bool    `json:"filter_stopwords,omitempty"`
	ContextSeparator    *string  `json:"context_separator,omitempty"`
}

// DefaultRAGConfig returns the default chunking and retrieval settings.
func DefaultRAGConfig() RAGConfig {
	return RAGConfig{
		ChunkSize:           DefaultChunkSize,
		ChunkOverlap:        DefaultChunkOverlap,
		TopK:                DefaultTopK,
		MinScore:            0,
		LengthNormalization: DefaultLengthNormalization,
		ContextSeparator:    DefaultContextSeparator,
	}
}

// Merge returns c with every non-nil field of p applied, normalized.
func (c RAGConfig) Merge(p RAGConfigPatch) RAGConfig {
	if p.ChunkSize != nil {
		c.ChunkSize = *p.ChunkSize
	}
	if p.ChunkOverlap != nil {
		c.ChunkOverlap = *p.ChunkOverlap
	}
	if p.TopK != nil {
		c.TopK = *p.TopK
	}
	if p.MinScore != nil {
		c.MinScore = *p.MinScore
	}
	if p.LengthNormalization != nil {
		c.LengthNormalization = *p.LengthNormalization
	}
	if p.FilterStopwords != nil {
		c.FilterStopwords = *p.FilterStopwords
	}
	if p.ContextSeparator != nil {
		c.ContextSeparator = *p.ContextSeparator
	}
	return c.Normalize()
}

// Normalize clamps degenerate values: chunk size at least 1, overlap in
// [0, chunk size), top-k at least 1, non-negative min score, and a length
// normalization slope in [0, 1].
func (c RAGConfig) Normalize() RAGConfig {
	if c.ChunkSize < 1 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.ChunkOverlap < 0 {
		c.ChunkOverlap = 0
	}
	if c.ChunkOverlap >= c.ChunkSize {
		c.ChunkOverlap = c.ChunkSize - 1
	}
	if c.TopK < 1 {
		c.TopK = DefaultTopK
	}
	if c.MinScore < 0 {
		c.MinScore = 0
	}
	if c.LengthNormalization < 0 {
		c.LengthNormalization = 0
	}
	if c.LengthNormalization > 1 {
		c.LengthNormalization = 1
	}
	if c.ContextSeparator == "" {
		c.ContextSeparator = DefaultContextSeparator
	}
	return c
}
