package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRAGConfig_Normalize(t *testing.T) {
	tests := []struct {
		name string
		in   RAGConfig
		want func(t *testing.T, got RAGConfig)
	}{
		{"zero chunk size gets default", RAGConfig{}, func(t *testing.T, got RAGConfig) {
			assert.Equal(t, DefaultChunkSize, got.ChunkSize)
			assert.Equal(t, DefaultTopK, got.TopK)
			assert.Equal(t, DefaultContextSeparator, got.ContextSeparator)
		}},
		{"overlap clamped below chunk size", RAGConfig{ChunkSize: 5, ChunkOverlap: 9}, func(t *testing.T, got RAGConfig) {
			assert.Equal(t, 4, got.ChunkOverlap)
		}},
		{"negative values clamped", RAGConfig{ChunkSize: 5, ChunkOverlap: -1, MinScore: -2, LengthNormalization: -1}, func(t *testing.T, got RAGConfig) {
			assert.Equal(t, 0, got.ChunkOverlap)
			assert.Zero(t, got.MinScore)
			assert.Zero(t, got.LengthNormalization)
		}},
		{"slope capped at one", RAGConfig{ChunkSize: 5, LengthNormalization: 3}, func(t *testing.T, got RAGConfig) {
			assert.Equal(t, 1.0, got.LengthNormalization)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.want(t, tt.in.Normalize())
		})
	}
}

func TestRAGConfig_Merge(t *testing.T) {
	base := DefaultRAGConfig()
	size, topK, stop := 50, 2, true

	got := base.Merge(RAGConfigPatch{ChunkSize: &size, TopK: &topK, FilterStopwords: &stop})

	assert.Equal(t, 50, got.ChunkSize)
	assert.Equal(t, 2, got.TopK)
	assert.True(t, got.FilterStopwords)
	assert.Equal(t, base.ChunkOverlap, got.ChunkOverlap)
	assert.Equal(t, base.LengthNormalization, got.LengthNormalization)
	assert.Equal(t, DefaultChunkSize, base.ChunkSize, "merge must not mutate the receiver")
}
