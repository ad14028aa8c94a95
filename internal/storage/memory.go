package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hyperjump/docrag/internal/models"
)

// MemoryStore is an in-memory Store. Contents are lost on Close.
type MemoryStore struct {
	mu        sync.RWMutex
	documents map[string]models.DocumentIndex
	chunks    map[string][]*models.Chunk
	seq       map[string]int
	next      int
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		documents: make(map[string]models.DocumentIndex),
		chunks:    make(map[string][]*models.Chunk),
		seq:       make(map[string]int),
	}
}

// Initialize is a no-op.
func (s *MemoryStore) Initialize(context.Context) error { return nil }

// SaveDocument stores copies of doc and chunks, replacing any previous entry.
func (s *MemoryStore) SaveDocument(_ context.Context, doc *models.DocumentIndex, chunks []*models.Chunk) error {
	stored := make([]*models.Chunk, len(chunks))
	for i, ch := range chunks {
		c := *ch
		stored[i] = &c
	}
	sort.SliceStable(stored, func(i, j int) bool { return stored[i].ChunkIndex < stored[j].ChunkIndex })

	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[doc.ID] = *doc
	s.chunks[doc.ID] = stored
	s.next++
	s.seq[doc.ID] = s.next
	return nil
}

// GetDocument returns a copy of the stored document index.
func (s *MemoryStore) GetDocument(_ context.Context, id string) (*models.DocumentIndex, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &doc, nil
}

// GetChunks returns copies of the chunks of id in index order.
func (s *MemoryStore) GetChunks(_ context.Context, id string) ([]*models.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.chunks[id]
	out := make([]*models.Chunk, len(stored))
	for i, ch := range stored {
		c := *ch
		out[i] = &c
	}
	return out, nil
}

// DeleteDocument removes id if present.
func (s *MemoryStore) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.documents, id)
	delete(s.chunks, id)
	delete(s.seq, id)
	return nil
}

// ListDocuments returns summaries ordered by creation time, newest first.
func (s *MemoryStore) ListDocuments(context.Context) ([]*models.DocumentSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make([]*models.DocumentSummary, 0, len(s.documents))
	for _, d := range s.documents {
		docs = append(docs, &models.DocumentSummary{
			ID:          d.ID,
			Name:        d.Name,
			TotalChunks: d.TotalChunks,
			TotalPages:  d.TotalPages,
			CreatedAt:   d.CreatedAt,
		})
	}
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.After(docs[j].CreatedAt)
		}
		return s.seq[docs[i].ID] > s.seq[docs[j].ID]
	})
	return docs, nil
}

// TouchDocument sets the last accessed time of id.
func (s *MemoryStore) TouchDocument(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[id]
	if !ok {
		return ErrNotFound
	}
	doc.LastAccessedAt = at
	s.documents[id] = doc
	return nil
}

// GetStats counts documents, chunks and vocabulary terms.
func (s *MemoryStore) GetStats(context.Context) (*models.StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := &models.StoreStats{TotalDocuments: int64(len(s.documents))}
	for id, chunks := range s.chunks {
		stats.TotalChunks += int64(len(chunks))
		stats.TotalVocabTerms += int64(len(s.documents[id].Vocabulary))
	}
	return stats, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
