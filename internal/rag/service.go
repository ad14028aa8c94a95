// Package rag orchestrates indexing, loading and retrieval over a single
// active document.
package rag

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/docrag/internal/config"
	"github.com/hyperjump/docrag/internal/extract"
	"github.com/hyperjump/docrag/internal/fileid"
	"github.com/hyperjump/docrag/internal/indexer"
	"github.com/hyperjump/docrag/internal/models"
	"github.com/hyperjump/docrag/internal/search"
	"github.com/hyperjump/docrag/internal/storage"
)

// ErrBusy is returned by IndexDocument while another indexing run is in progress.
var ErrBusy = errors.New("indexing already in progress")

// activeDocument is replaced as a whole, never mutated.
type activeDocument struct {
	index  *models.DocumentIndex
	chunks []*models.Chunk
}

// Service owns the active document and the indexing exclusivity flag.
type Service struct {
	store     storage.Store
	engine    *search.Engine
	extractor *extract.Extractor
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string

	configMu sync.Mutex // serializes Configure
	indexing atomic.Bool
	active   atomic.Pointer[activeDocument]
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithExtractor sets the extractor used by IndexFile.
func WithExtractor(e *extract.Extractor) Option {
	return func(s *Service) { s.extractor = e }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides document id generation.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// NewService creates a service over store with cfg as the initial configuration.
func NewService(store storage.Store, cfg config.RAGConfig, opts ...Option) *Service {
	s := &Service{
		store:     store,
		engine:    search.NewEngine(cfg),
		extractor: extract.NewExtractor(),
		logger:    zap.NewNop(),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IndexDocument chunks and indexes text, persists it and makes it the active
// document. At most one run executes at a time; a concurrent call fails with
// ErrBusy without reporting progress. On failure the active document is left
// unchanged and the error is returned as produced.
func (s *Service) IndexDocument(ctx context.Context, text, name string, pages int, progress models.ProgressFunc) (string, error) {
	doc, err := s.index(ctx, s.newID, text, name, pages, progress)
	if err != nil {
		return "", err
	}
	return doc.ID, nil
}

// IndexText is IndexDocument returning a description of the document it
// indexed, which stays correct if another document is loaded meanwhile.
func (s *Service) IndexText(ctx context.Context, text, name string, pages int, progress models.ProgressFunc) (*models.ActiveDocumentInfo, error) {
	doc, err := s.index(ctx, s.newID, text, name, pages, progress)
	if err != nil {
		return nil, err
	}
	return describe(doc), nil
}

func (s *Service) index(ctx context.Context, newID func() string, text, name string, pages int, progress models.ProgressFunc) (*models.DocumentIndex, error) {
	if !s.indexing.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer s.indexing.Store(false)

	report := func(stage models.Stage, pct int, msg string, details map[string]any) {
		if progress != nil {
			progress(models.Progress{Stage: stage, Progress: pct, Message: msg, Details: details})
		}
	}

	cfg := s.engine.Config()
	start := time.Now()

	report(models.StageInitializing, 5, "Initializing storage", nil)
	if err := s.store.Initialize(ctx); err != nil {
		s.logger.Error("initialize store", zap.Error(err))
		return nil, err
	}

	id := newID()
	if pages < 1 {
		pages = 1
	}

	report(models.StageChunking, 15, "Splitting text into chunks", nil)
	chunks := indexer.NewChunker(cfg).Chunk(id, text, pages)

	report(models.StageIndexing, 50, fmt.Sprintf("Building index for %d chunks", len(chunks)),
		map[string]any{"chunks": len(chunks)})
	vocab := s.engine.BuildIndex(chunks)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	words := 0
	for _, ch := range chunks {
		words += ch.WordCount
	}
	now := s.now()
	doc := &models.DocumentIndex{
		ID:             id,
		Name:           name,
		TotalChunks:    len(chunks),
		TotalWords:     words,
		TotalPages:     pages,
		Vocabulary:     vocab.DocFreq,
		IDF:            vocab.IDF,
		CreatedAt:      now,
		LastAccessedAt: now,
	}
	if len(chunks) > 0 {
		doc.AvgChunkLength = float64(words) / float64(len(chunks))
	}

	report(models.StageSaving, 75, "Saving document",
		map[string]any{"chunks": len(chunks), "terms": len(vocab.DocFreq)})
	if err := s.store.SaveDocument(ctx, doc, chunks); err != nil {
		s.logger.Error("save document", zap.String("name", name), zap.Error(err))
		return nil, err
	}

	s.active.Store(&activeDocument{index: doc, chunks: chunks})
	report(models.StageComplete, 100, "Document ready",
		map[string]any{"document_id": id, "chunks": len(chunks), "pages": pages})

	s.logger.Info("document indexed",
		zap.String("id", id),
		zap.String("name", name),
		zap.Int("chunks", len(chunks)),
		zap.Int("terms", len(vocab.DocFreq)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return doc, nil
}

// IndexFile extracts the file at path and indexes it under its base name.
func (s *Service) IndexFile(ctx context.Context, path string, progress models.ProgressFunc) (string, error) {
	if s.indexing.Load() {
		return "", ErrBusy
	}
	content, err := s.extractor.Extract(path)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", path, err)
	}
	return s.IndexDocument(ctx, content.Text, filepath.Base(path), content.Pages, progress)
}

// SyncFile indexes the file at path under an id derived from its absolute
// path, replacing the document stored for an earlier version of the file.
func (s *Service) SyncFile(ctx context.Context, path string, progress models.ProgressFunc) (string, error) {
	if s.indexing.Load() {
		return "", ErrBusy
	}
	id, err := fileid.ForPath(path)
	if err != nil {
		return "", err
	}
	content, err := s.extractor.Extract(path)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", path, err)
	}
	doc, err := s.index(ctx, func() string { return id }, content.Text, filepath.Base(path), content.Pages, progress)
	if err != nil {
		return "", err
	}
	return doc.ID, nil
}

// LoadDocument makes a stored document active. It returns false, without
// error, when the document or its chunks are missing.
func (s *Service) LoadDocument(ctx context.Context, id string) (bool, error) {
	if err := s.store.Initialize(ctx); err != nil {
		return false, err
	}
	doc, err := s.store.GetDocument(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	chunks, err := s.store.GetChunks(ctx, id)
	if err != nil {
		return false, err
	}
	if len(chunks) == 0 {
		return false, nil
	}

	now := s.now()
	if err := s.store.TouchDocument(ctx, id, now); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	doc.LastAccessedAt = now

	s.active.Store(&activeDocument{index: doc, chunks: chunks})
	s.logger.Debug("document loaded", zap.String("id", id), zap.Int("chunks", len(chunks)))
	return true, nil
}

// Search ranks the chunks of the active document against query. It returns
// an empty slice when no document is active.
func (s *Service) Search(query string) []*models.SearchResult {
	a := s.active.Load()
	if a == nil {
		return []*models.SearchResult{}
	}
	results := s.engine.Search(query, a.chunks, a.index)
	if results == nil {
		return []*models.SearchResult{}
	}
	return results
}

// BuildContext renders results as a page-tagged context block.
func (s *Service) BuildContext(results []*models.SearchResult) string {
	return s.engine.BuildContext(results)
}

// GetRetrievalContext searches the active document and builds the context
// for question. ok is false when no document is active.
func (s *Service) GetRetrievalContext(question string) (rc *models.RetrievalContext, ok bool) {
	a := s.active.Load()
	if a == nil {
		return nil, false
	}
	results := s.engine.Search(question, a.chunks, a.index)
	if results == nil {
		results = []*models.SearchResult{}
	}
	text := s.engine.BuildContext(results)

	meta := models.RetrievalMetadata{
		Query:         question,
		DocumentID:    a.index.ID,
		DocumentName:  a.index.Name,
		ResultCount:   len(results),
		Pages:         distinctPages(results),
		ContextLength: len(text),
	}
	if len(results) > 0 {
		meta.TopScore = results[0].Score
	}
	return &models.RetrievalContext{Context: text, Results: results, Metadata: meta}, true
}

// distinctPages returns the page numbers touched by results, ascending.
func distinctPages(results []*models.SearchResult) []int {
	seen := make(map[int]struct{}, len(results))
	pages := make([]int, 0, len(results))
	for _, r := range results {
		if _, ok := seen[r.Chunk.PageNumber]; ok {
			continue
		}
		seen[r.Chunk.PageNumber] = struct{}{}
		pages = append(pages, r.Chunk.PageNumber)
	}
	sort.Ints(pages)
	return pages
}

// ActiveDocumentInfo describes the active document; ok is false when none is loaded.
func (s *Service) ActiveDocumentInfo() (info *models.ActiveDocumentInfo, ok bool) {
	a := s.active.Load()
	if a == nil {
		return nil, false
	}
	return describe(a.index), true
}

func describe(d *models.DocumentIndex) *models.ActiveDocumentInfo {
	return &models.ActiveDocumentInfo{
		ID:             d.ID,
		Name:           d.Name,
		TotalChunks:    d.TotalChunks,
		TotalWords:     d.TotalWords,
		TotalPages:     d.TotalPages,
		VocabularySize: len(d.Vocabulary),
		CreatedAt:      d.CreatedAt,
		LastAccessedAt: d.LastAccessedAt,
	}
}

// ActiveDocumentID returns the id of the active document, or "".
func (s *Service) ActiveDocumentID() string {
	if a := s.active.Load(); a != nil {
		return a.index.ID
	}
	return ""
}

// HasActiveDocument reports whether a document is loaded.
func (s *Service) HasActiveDocument() bool {
	return s.active.Load() != nil
}

// ClearActiveDocument unloads the active document. Storage is untouched.
func (s *Service) ClearActiveDocument() {
	s.active.Store(nil)
}

// DeleteDocument removes a document from storage and unloads it if active.
func (s *Service) DeleteDocument(ctx context.Context, id string) error {
	if err := s.store.Initialize(ctx); err != nil {
		return err
	}
	if err := s.store.DeleteDocument(ctx, id); err != nil {
		return err
	}
	if a := s.active.Load(); a != nil && a.index.ID == id {
		s.active.CompareAndSwap(a, nil)
	}
	s.logger.Debug("document deleted", zap.String("id", id))
	return nil
}

// ListDocuments returns stored documents, newest first.
func (s *Service) ListDocuments(ctx context.Context) ([]*models.DocumentSummary, error) {
	if err := s.store.Initialize(ctx); err != nil {
		return nil, err
	}
	return s.store.ListDocuments(ctx)
}

// GetStats returns aggregate store counts.
func (s *Service) GetStats(ctx context.Context) (*models.StoreStats, error) {
	if err := s.store.Initialize(ctx); err != nil {
		return nil, err
	}
	return s.store.GetStats(ctx)
}

// IsIndexing reports whether an indexing run is in progress.
func (s *Service) IsIndexing() bool {
	return s.indexing.Load()
}

// Config returns the current configuration.
func (s *Service) Config() config.RAGConfig {
	return s.engine.Config()
}

// Configure applies patch to the current configuration and returns the
// result. It affects subsequent operations only.
func (s *Service) Configure(patch config.RAGConfigPatch) config.RAGConfig {
	s.configMu.Lock()
	defer s.configMu.Unlock()
	cfg := s.engine.Config().Merge(patch)
	s.engine.SetConfig(cfg)
	s.logger.Debug("configuration updated",
		zap.Int("chunk_size", cfg.ChunkSize),
		zap.Int("chunk_overlap", cfg.ChunkOverlap),
		zap.Int("top_k", cfg.TopK),
		zap.Float64("min_score", cfg.MinScore),
	)
	return cfg
}
