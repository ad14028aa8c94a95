// Package storage persists document indexes, their chunks and vocabularies.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hyperjump/docrag/internal/config"
	"github.com/hyperjump/docrag/internal/models"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("document not found")

// Store defines document, chunk and vocabulary persistence.
// Every method may fail with a storage error, which callers propagate unchanged.
type Store interface {
	// Initialize prepares the backing store. Safe to call repeatedly.
	Initialize(ctx context.Context) error

	// SaveDocument persists doc (including Vocabulary and IDF) and its chunks,
	// replacing anything previously stored under doc.ID.
	SaveDocument(ctx context.Context, doc *models.DocumentIndex, chunks []*models.Chunk) error
	// GetDocument returns ErrNotFound when id is unknown.
	GetDocument(ctx context.Context, id string) (*models.DocumentIndex, error)
	// GetChunks returns chunks ordered by index, empty when there are none.
	GetChunks(ctx context.Context, id string) ([]*models.Chunk, error)
	// DeleteDocument removes everything stored for id. Deleting an unknown id is not an error.
	DeleteDocument(ctx context.Context, id string) error
	// ListDocuments returns summaries, newest first.
	ListDocuments(ctx context.Context) ([]*models.DocumentSummary, error)
	// TouchDocument sets the last accessed time of id.
	TouchDocument(ctx context.Context, id string, at time.Time) error

	GetStats(ctx context.Context) (*models.StoreStats, error)

	Close() error
}

// Open creates the store selected by cfg.Driver.
func Open(cfg config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return NewMemoryStore(), nil
	case config.DriverSQLite, "":
		return NewSQLiteStore(cfg.DatabasePath)
	default:
		return nil, fmt.Errorf("unknown storage driver: %q", cfg.Driver)
	}
}
