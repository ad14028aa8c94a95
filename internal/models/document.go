// Package models defines core data structures for documents, chunks, and retrieval results.
package models

import "time"

// Chunk is a contiguous span of document text, the atomic retrieval unit.
// WordCount equals the number of whitespace-delimited tokens in Text.
type Chunk struct {
	ID         string `json:"id" db:"id"`
	DocumentID string `json:"document_id" db:"document_id"`
	ChunkIndex int    `json:"chunk_index" db:"chunk_index"`
	PageNumber int    `json:"page_number" db:"page_number"`
	Text       string `json:"text" db:"text"`
	WordCount  int    `json:"word_count" db:"word_count"`
	StartChar  int    `json:"start_char" db:"start_char"`
	EndChar    int    `json:"end_char" db:"end_char"`
}

// DocumentIndex is the lexical index and metadata for one document.
// Vocabulary and IDF share the same key set.
type DocumentIndex struct {
	ID             string             `json:"id" db:"id"`
	Name           string             `json:"name" db:"name"`
	TotalChunks    int                `json:"total_chunks" db:"total_chunks"`
	TotalWords     int                `json:"total_words" db:"total_words"`
	TotalPages     int                `json:"total_pages" db:"total_pages"`
	AvgChunkLength float64            `json:"avg_chunk_length" db:"avg_chunk_length"`
	Vocabulary     map[string]int     `json:"vocabulary" db:"-"`
	IDF            map[string]float64 `json:"idf" db:"-"`
	CreatedAt      time.Time          `json:"created_at" db:"created_at"`
	LastAccessedAt time.Time          `json:"last_accessed_at" db:"last_accessed_at"`
}

// DocumentSummary is the listing view of a stored document.
type DocumentSummary struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	TotalChunks int       `json:"total_chunks" db:"total_chunks"`
	TotalPages  int       `json:"total_pages" db:"total_pages"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// StoreStats aggregates counts across the whole store.
type StoreStats struct {
	TotalDocuments  int64 `json:"total_documents" db:"total_documents"`
	TotalChunks     int64 `json:"total_chunks" db:"total_chunks"`
	TotalVocabTerms int64 `json:"total_vocab_terms" db:"total_vocab_terms"`
}

// ActiveDocumentInfo describes the document currently loaded for search.
type ActiveDocumentInfo struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	TotalChunks    int       `json:"total_chunks"`
	TotalWords     int       `json:"total_words"`
	TotalPages     int       `json:"total_pages"`
	VocabularySize int       `json:"vocabulary_size"`
	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
}
