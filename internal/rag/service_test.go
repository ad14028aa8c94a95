package rag

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/docrag/internal/config"
	"github.com/hyperjump/docrag/internal/models"
	"github.com/hyperjump/docrag/internal/storage"
)

// blockingStore holds SaveDocument until release is closed.
type blockingStore struct {
	*storage.MemoryStore
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingStore) SaveDocument(ctx context.Context, doc *models.DocumentIndex, chunks []*models.Chunk) error {
	b.once.Do(func() { close(b.entered) })
	<-b.release
	return b.MemoryStore.SaveDocument(ctx, doc, chunks)
}

// failingStore fails SaveDocument while saveErr is set.
type failingStore struct {
	*storage.MemoryStore
	saveErr error
}

func (f *failingStore) SaveDocument(ctx context.Context, doc *models.DocumentIndex, chunks []*models.Chunk) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	return f.MemoryStore.SaveDocument(ctx, doc, chunks)
}

// countingStore records the highest number of concurrent SaveDocument calls.
type countingStore struct {
	*storage.MemoryStore
	current, max atomic.Int32
}

func (c *countingStore) SaveDocument(ctx context.Context, doc *models.DocumentIndex, chunks []*models.Chunk) error {
	n := c.current.Add(1)
	defer c.current.Add(-1)
	for {
		m := c.max.Load()
		if n <= m || c.max.CompareAndSwap(m, n) {
			break
		}
	}
	time.Sleep(time.Millisecond)
	return c.MemoryStore.SaveDocument(ctx, doc, chunks)
}

func testConfig() config.RAGConfig {
	cfg := config.DefaultRAGConfig()
	cfg.ChunkSize = 5
	cfg.ChunkOverlap = 0
	return cfg
}

// fakeClock advances one minute per call.
func fakeClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Minute)
		return t
	}
}

func newTestService(store storage.Store) *Service {
	return NewService(store, testConfig(), WithClock(fakeClock()))
}

func TestIndexDocument(t *testing.T) {
	svc := newTestService(storage.NewMemoryStore())
	ctx := context.Background()

	var progress []models.Progress
	id, err := svc.IndexDocument(ctx, "The cat sat. The dog ran.", "animals.txt", 1, func(p models.Progress) {
		progress = append(progress, p)
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	assert.True(t, svc.HasActiveDocument())
	assert.Equal(t, id, svc.ActiveDocumentID())
	assert.False(t, svc.IsIndexing())

	info, ok := svc.ActiveDocumentInfo()
	require.True(t, ok)
	assert.Equal(t, "animals.txt", info.Name)
	assert.Equal(t, 2, info.TotalChunks)
	assert.Equal(t, 6, info.TotalWords)
	assert.Equal(t, 1, info.TotalPages)
	assert.Equal(t, 5, info.VocabularySize)

	results := svc.Search("dog")
	require.Len(t, results, 1)
	assert.Greater(t, results[0].Score, 0.0)
	assert.Contains(t, results[0].Chunk.Text, "dog")

	require.NotEmpty(t, progress)
	stages := make([]models.Stage, len(progress))
	for i, p := range progress {
		stages[i] = p.Stage
		if i > 0 {
			assert.GreaterOrEqual(t, p.Progress, progress[i-1].Progress)
		}
	}
	assert.Equal(t, []models.Stage{
		models.StageInitializing, models.StageChunking, models.StageIndexing, models.StageSaving, models.StageComplete,
	}, stages)
	assert.Equal(t, 100, progress[len(progress)-1].Progress)

	stored, err := svc.store.GetDocument(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.TotalChunks)
	assert.Equal(t, 1, stored.Vocabulary["cat"])
	assert.Equal(t, 2, stored.Vocabulary["the"])
}

func TestIndexDocument_EmptyText(t *testing.T) {
	svc := newTestService(storage.NewMemoryStore())
	id, err := svc.IndexDocument(context.Background(), "   \n\t ", "blank.txt", 0, nil)
	require.NoError(t, err)

	info, ok := svc.ActiveDocumentInfo()
	require.True(t, ok)
	assert.Equal(t, id, info.ID)
	assert.Zero(t, info.TotalChunks)
	assert.Equal(t, 1, info.TotalPages)
	assert.Empty(t, svc.Search("anything"))
}

func TestIndexDocument_Busy(t *testing.T) {
	store := &blockingStore{
		MemoryStore: storage.NewMemoryStore(),
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	svc := newTestService(store)
	ctx := context.Background()

	type result struct {
		id  string
		err error
	}
	done := make(chan result, 1)
	go func() {
		id, err := svc.IndexDocument(ctx, "The cat sat.", "first.txt", 1, nil)
		done <- result{id, err}
	}()
	<-store.entered
	assert.True(t, svc.IsIndexing())

	called := false
	_, err := svc.IndexDocument(ctx, "The dog ran.", "second.txt", 1, func(models.Progress) { called = true })
	assert.ErrorIs(t, err, ErrBusy)
	assert.False(t, called, "busy runs must not report progress")
	assert.False(t, svc.HasActiveDocument())

	close(store.release)
	first := <-done
	require.NoError(t, first.err)
	assert.False(t, svc.IsIndexing())
	assert.Equal(t, first.id, svc.ActiveDocumentID())

	second, err := svc.IndexDocument(ctx, "The dog ran.", "second.txt", 1, nil)
	require.NoError(t, err)
	assert.Equal(t, second, svc.ActiveDocumentID())
}

func TestIndexDocument_ConcurrentCallsAreExclusive(t *testing.T) {
	store := &countingStore{MemoryStore: storage.NewMemoryStore()}
	svc := newTestService(store)

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		busy      atomic.Int32
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.IndexDocument(context.Background(), fmt.Sprintf("Document %d text.", i), "doc.txt", 1, nil)
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, ErrBusy):
				busy.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(16), succeeded.Load()+busy.Load())
	assert.GreaterOrEqual(t, succeeded.Load(), int32(1))
	assert.Equal(t, int32(1), store.max.Load())
	assert.False(t, svc.IsIndexing())
}

func TestIndexDocument_FailureKeepsActiveDocument(t *testing.T) {
	store := &failingStore{MemoryStore: storage.NewMemoryStore()}
	svc := newTestService(store)
	ctx := context.Background()

	firstID, err := svc.IndexDocument(ctx, "The cat sat.", "first.txt", 1, nil)
	require.NoError(t, err)

	saveErr := errors.New("disk full")
	store.saveErr = saveErr
	var last models.Progress
	_, err = svc.IndexDocument(ctx, "The dog ran.", "second.txt", 1, func(p models.Progress) { last = p })
	assert.Same(t, saveErr, err)
	assert.Equal(t, models.StageSaving, last.Stage)
	assert.False(t, svc.IsIndexing())
	assert.Equal(t, firstID, svc.ActiveDocumentID())

	store.saveErr = nil
	secondID, err := svc.IndexDocument(ctx, "The dog ran.", "second.txt", 1, nil)
	require.NoError(t, err)
	assert.Equal(t, secondID, svc.ActiveDocumentID())
}

func TestIndexDocument_CanceledContext(t *testing.T) {
	svc := newTestService(storage.NewMemoryStore())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.IndexDocument(ctx, "The cat sat.", "a.txt", 1, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, svc.HasActiveDocument())
	assert.False(t, svc.IsIndexing())
}

func TestLoadDocument(t *testing.T) {
	svc := newTestService(storage.NewMemoryStore())
	ctx := context.Background()

	catID, err := svc.IndexDocument(ctx, "The cat sat.", "cat.txt", 1, nil)
	require.NoError(t, err)
	dogID, err := svc.IndexDocument(ctx, "The dog ran.", "dog.txt", 1, nil)
	require.NoError(t, err)
	require.Equal(t, dogID, svc.ActiveDocumentID())
	assert.Empty(t, svc.Search("cat"))

	ok, err := svc.LoadDocument(ctx, catID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, catID, svc.ActiveDocumentID())
	assert.Len(t, svc.Search("cat"), 1)

	info, _ := svc.ActiveDocumentInfo()
	firstAccess := info.LastAccessedAt
	assert.True(t, firstAccess.After(info.CreatedAt))

	ok, err = svc.LoadDocument(ctx, catID)
	require.NoError(t, err)
	require.True(t, ok)
	info, _ = svc.ActiveDocumentInfo()
	assert.True(t, info.LastAccessedAt.After(firstAccess))
	assert.Equal(t, catID, info.ID)

	stored, err := svc.store.GetDocument(ctx, catID)
	require.NoError(t, err)
	assert.True(t, stored.LastAccessedAt.Equal(info.LastAccessedAt))
}

func TestLoadDocument_Missing(t *testing.T) {
	svc := newTestService(storage.NewMemoryStore())
	ctx := context.Background()

	id, err := svc.IndexDocument(ctx, "The cat sat.", "cat.txt", 1, nil)
	require.NoError(t, err)

	ok, err := svc.LoadDocument(ctx, "does-not-exist")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, id, svc.ActiveDocumentID())

	emptyID, err := svc.IndexDocument(ctx, "", "empty.txt", 1, nil)
	require.NoError(t, err)
	svc.ClearActiveDocument()
	ok, err = svc.LoadDocument(ctx, emptyID)
	require.NoError(t, err)
	assert.False(t, ok, "documents without chunks cannot be loaded")
	assert.False(t, svc.HasActiveDocument())
}

func TestNoActiveDocument(t *testing.T) {
	svc := newTestService(storage.NewMemoryStore())

	results := svc.Search("anything")
	assert.NotNil(t, results)
	assert.Empty(t, results)

	rc, ok := svc.GetRetrievalContext("anything")
	assert.False(t, ok)
	assert.Nil(t, rc)

	_, ok = svc.ActiveDocumentInfo()
	assert.False(t, ok)
	assert.Equal(t, "", svc.ActiveDocumentID())
}

func TestGetRetrievalContext(t *testing.T) {
	svc := newTestService(storage.NewMemoryStore())
	svc.Configure(config.RAGConfigPatch{TopK: intPtr(10)})

	var b strings.Builder
	for i := 0; i < 40; i++ {
		if i%3 == 0 {
			fmt.Fprintf(&b, "Apple pie %d. ", i)
		} else {
			fmt.Fprintf(&b, "Plain filler %d. ", i)
		}
	}
	id, err := svc.IndexDocument(context.Background(), b.String(), "recipes.txt", 8, nil)
	require.NoError(t, err)

	rc, ok := svc.GetRetrievalContext("apple")
	require.True(t, ok)
	require.NotEmpty(t, rc.Results)
	assert.Equal(t, "apple", rc.Metadata.Query)
	assert.Equal(t, id, rc.Metadata.DocumentID)
	assert.Equal(t, "recipes.txt", rc.Metadata.DocumentName)
	assert.Equal(t, len(rc.Results), rc.Metadata.ResultCount)
	assert.Equal(t, rc.Results[0].Score, rc.Metadata.TopScore)
	assert.Equal(t, len(rc.Context), rc.Metadata.ContextLength)
	assert.Equal(t, svc.BuildContext(rc.Results), rc.Context)

	want := map[int]bool{}
	for _, r := range rc.Results {
		want[r.Chunk.PageNumber] = true
	}
	assert.Len(t, rc.Metadata.Pages, len(want))
	assert.True(t, sort.IntsAreSorted(rc.Metadata.Pages))
	for _, p := range rc.Metadata.Pages {
		assert.True(t, want[p], "page %d not in results", p)
	}

	rc, ok = svc.GetRetrievalContext("zebra")
	require.True(t, ok)
	assert.Empty(t, rc.Results)
	assert.Empty(t, rc.Metadata.Pages)
	assert.Equal(t, "", rc.Context)
}

func TestDeleteDocument(t *testing.T) {
	svc := newTestService(storage.NewMemoryStore())
	ctx := context.Background()

	catID, err := svc.IndexDocument(ctx, "The cat sat.", "cat.txt", 1, nil)
	require.NoError(t, err)
	dogID, err := svc.IndexDocument(ctx, "The dog ran.", "dog.txt", 1, nil)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteDocument(ctx, catID))
	assert.Equal(t, dogID, svc.ActiveDocumentID(), "deleting another document keeps the active one")

	require.NoError(t, svc.DeleteDocument(ctx, dogID))
	assert.False(t, svc.HasActiveDocument())
	require.NoError(t, svc.DeleteDocument(ctx, dogID))

	docs, err := svc.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestClearActiveDocument_KeepsStorage(t *testing.T) {
	svc := newTestService(storage.NewMemoryStore())
	ctx := context.Background()

	id, err := svc.IndexDocument(ctx, "The cat sat. The dog ran.", "animals.txt", 1, nil)
	require.NoError(t, err)
	before, ok := svc.ActiveDocumentInfo()
	require.True(t, ok)

	svc.ClearActiveDocument()
	assert.False(t, svc.HasActiveDocument())
	assert.Empty(t, svc.Search("cat"))

	ok, err = svc.LoadDocument(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	after, _ := svc.ActiveDocumentInfo()
	assert.Equal(t, before.TotalChunks, after.TotalChunks)
	assert.Equal(t, before.VocabularySize, after.VocabularySize)
	assert.Len(t, svc.Search("cat"), 1)
}

func TestListAndStats(t *testing.T) {
	svc := newTestService(storage.NewMemoryStore())
	ctx := context.Background()

	first, err := svc.IndexDocument(ctx, "The cat sat.", "cat.txt", 1, nil)
	require.NoError(t, err)
	second, err := svc.IndexDocument(ctx, "The dog ran. A bird flew.", "dog.txt", 2, nil)
	require.NoError(t, err)

	docs, err := svc.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, second, docs[0].ID)
	assert.Equal(t, first, docs[1].ID)
	assert.Equal(t, 2, docs[0].TotalPages)

	stats, err := svc.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalDocuments)
	assert.Equal(t, int64(3), stats.TotalChunks)
}

func TestConfigure(t *testing.T) {
	svc := newTestService(storage.NewMemoryStore())
	ctx := context.Background()

	_, err := svc.IndexDocument(ctx, "Red fish swims. Red boat sails. Red car drives. Red sky glows.", "red.txt", 1, nil)
	require.NoError(t, err)
	assert.Len(t, svc.Search("red"), 4)

	cfg := svc.Configure(config.RAGConfigPatch{TopK: intPtr(2)})
	assert.Equal(t, 2, cfg.TopK)
	assert.Equal(t, 5, cfg.ChunkSize, "unpatched fields are kept")
	assert.Equal(t, cfg, svc.Config())
	assert.Len(t, svc.Search("red"), 2)

	cfg = svc.Configure(config.RAGConfigPatch{ChunkSize: intPtr(0)})
	assert.Equal(t, config.DefaultChunkSize, cfg.ChunkSize)
}

func TestIndexFile(t *testing.T) {
	svc := newTestService(storage.NewMemoryStore())
	path := filepath.Join(t.TempDir(), "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("The cat sat. The dog ran."), 0600))

	id, err := svc.IndexFile(context.Background(), path, nil)
	require.NoError(t, err)

	info, ok := svc.ActiveDocumentInfo()
	require.True(t, ok)
	assert.Equal(t, id, info.ID)
	assert.Equal(t, "notes.md", info.Name)
	assert.Equal(t, 1, info.TotalPages)

	_, err = svc.IndexFile(context.Background(), filepath.Join(t.TempDir(), "missing.txt"), nil)
	assert.Error(t, err)
	assert.Equal(t, id, svc.ActiveDocumentID())
}

func TestSyncFile_replacesPreviousVersion(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := newTestService(store)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "inbox.txt")

	require.NoError(t, os.WriteFile(path, []byte("The cat sat."), 0600))
	first, err := svc.SyncFile(ctx, path, nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(first, "file-"))

	require.NoError(t, os.WriteFile(path, []byte("The dog ran. The dog sat."), 0600))
	second, err := svc.SyncFile(ctx, path, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	docs, err := svc.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Empty(t, svc.Search("cat"))
	assert.NotEmpty(t, svc.Search("dog"))

	chunks, err := store.GetChunks(ctx, second)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.Contains(t, chunks[0].Text, "dog")
}

func TestIndexText_DescribesIndexedDocument(t *testing.T) {
	svc := newTestService(storage.NewMemoryStore())
	ctx := context.Background()

	otherID, err := svc.IndexDocument(ctx, "The dog ran.", "dog.txt", 1, nil)
	require.NoError(t, err)

	// Load another document between publishing the new one and returning.
	info, err := svc.IndexText(ctx, "The cat sat. The cat ran.", "cat.txt", 2, func(p models.Progress) {
		if p.Stage == models.StageComplete {
			ok, err := svc.LoadDocument(ctx, otherID)
			require.NoError(t, err)
			require.True(t, ok)
		}
	})
	require.NoError(t, err)

	assert.Equal(t, otherID, svc.ActiveDocumentID())
	assert.NotEqual(t, otherID, info.ID)
	assert.Equal(t, "cat.txt", info.Name)
	assert.Equal(t, 2, info.TotalChunks)
	assert.Equal(t, 2, info.TotalPages)
}

func intPtr(v int) *int { return &v }
