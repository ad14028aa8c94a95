package models

// SearchResult is one ranked retrieval hit. Scores in a result list are
// non-negative and sorted descending.
type SearchResult struct {
	Chunk        *Chunk   `json:"chunk"`
	Score        float64  `json:"score"`
	MatchedTerms []string `json:"matched_terms,omitempty"`
}

// RetrievalContext is the assembled context for a question against the active document.
type RetrievalContext struct {
	Context  string            `json:"context"`
	Results  []*SearchResult   `json:"results"`
	Metadata RetrievalMetadata `json:"metadata"`
}

// RetrievalMetadata summarizes a retrieval. Pages are distinct and ascending.
type RetrievalMetadata struct {
	Query         string  `json:"query"`
	DocumentID    string  `json:"document_id"`
	DocumentName  string  `json:"document_name"`
	ResultCount   int     `json:"result_count"`
	Pages         []int   `json:"pages"`
	TopScore      float64 `json:"top_score"`
	ContextLength int     `json:"context_length"`
}

// Stage names a checkpoint of the indexing pipeline.
type Stage string

const (
	StageInitializing Stage = "initializing"
	StageChunking     Stage = "chunking"
	StageIndexing     Stage = "indexing"
	StageSaving       Stage = "saving"
	StageComplete     Stage = "complete"
)

// Progress is reported to the optional progress callback during indexing.
type Progress struct {
	Stage    Stage          `json:"stage"`
	Progress int            `json:"progress"`
	Message  string         `json:"message"`
	Details  map[string]any `json:"details,omitempty"`
}

// ProgressFunc observes indexing progress. It is called synchronously.
type ProgressFunc func(Progress)
