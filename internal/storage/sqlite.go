package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/docrag/internal/models"
)

// SQLiteStore implements Store on a single SQLite database file.
type SQLiteStore struct {
	db   *sqlx.DB
	path string

	initMu      sync.Mutex
	initialized bool
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens or creates a SQLite database at dbPath.
// Parent directories are created if they do not exist. The schema is created
// by Initialize.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sqlx.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return &SQLiteStore{db: db, path: dbPath}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	total_chunks INTEGER NOT NULL,
	total_words INTEGER NOT NULL,
	total_pages INTEGER NOT NULL,
	avg_chunk_length REAL NOT NULL,
	created_at TIMESTAMP NOT NULL,
	last_accessed_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at);

CREATE TABLE IF NOT EXISTS chunks (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	chunk_index INTEGER NOT NULL,
	page_number INTEGER NOT NULL,
	text TEXT NOT NULL,
	word_count INTEGER NOT NULL,
	start_char INTEGER NOT NULL,
	end_char INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chunks_document_chunk ON chunks(document_id, chunk_index);

CREATE TABLE IF NOT EXISTS vocabulary (
	document_id TEXT NOT NULL,
	term TEXT NOT NULL,
	doc_freq INTEGER NOT NULL,
	idf REAL NOT NULL,
	PRIMARY KEY (document_id, term)
);
`

// Initialize creates the schema if needed.
func (s *SQLiteStore) Initialize(ctx context.Context) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()
	if s.initialized {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	s.initialized = true
	return nil
}

// SaveDocument replaces the document, its chunks and vocabulary in one transaction.
func (s *SQLiteStore) SaveDocument(ctx context.Context, doc *models.DocumentIndex, chunks []*models.Chunk) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := deleteRows(ctx, tx, doc.ID); err != nil {
		return err
	}

	if _, err := tx.NamedExecContext(ctx,
		`INSERT INTO documents (id, name, total_chunks, total_words, total_pages, avg_chunk_length, created_at, last_accessed_at)
		 VALUES (:id, :name, :total_chunks, :total_words, :total_pages, :avg_chunk_length, :created_at, :last_accessed_at)`,
		doc,
	); err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}

	chunkStmt, err := tx.PrepareNamedContext(ctx,
		`INSERT INTO chunks (id, document_id, chunk_index, page_number, text, word_count, start_char, end_char)
		 VALUES (:id, :document_id, :chunk_index, :page_number, :text, :word_count, :start_char, :end_char)`,
	)
	if err != nil {
		return err
	}
	defer chunkStmt.Close()
	for _, ch := range chunks {
		if _, err := chunkStmt.ExecContext(ctx, ch); err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", ch.ID, err)
		}
	}

	vocabStmt, err := tx.PreparexContext(ctx,
		`INSERT INTO vocabulary (document_id, term, doc_freq, idf) VALUES (?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer vocabStmt.Close()
	for term, df := range doc.Vocabulary {
		if _, err := vocabStmt.ExecContext(ctx, doc.ID, term, df, doc.IDF[term]); err != nil {
			return fmt.Errorf("failed to insert term %q: %w", term, err)
		}
	}

	return tx.Commit()
}

type vocabRow struct {
	Term    string  `db:"term"`
	DocFreq int     `db:"doc_freq"`
	IDF     float64 `db:"idf"`
}

// GetDocument returns a document index with its vocabulary.
func (s *SQLiteStore) GetDocument(ctx context.Context, id string) (*models.DocumentIndex, error) {
	var doc models.DocumentIndex
	err := s.db.GetContext(ctx, &doc,
		`SELECT id, name, total_chunks, total_words, total_pages, avg_chunk_length, created_at, last_accessed_at
		 FROM documents WHERE id = ?`, id,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var rows []vocabRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT term, doc_freq, idf FROM vocabulary WHERE document_id = ?`, id,
	); err != nil {
		return nil, err
	}
	doc.Vocabulary = make(map[string]int, len(rows))
	doc.IDF = make(map[string]float64, len(rows))
	for _, r := range rows {
		doc.Vocabulary[r.Term] = r.DocFreq
		doc.IDF[r.Term] = r.IDF
	}
	return &doc, nil
}

// GetChunks returns all chunks for a document ordered by chunk_index.
func (s *SQLiteStore) GetChunks(ctx context.Context, id string) ([]*models.Chunk, error) {
	var chunks []*models.Chunk
	err := s.db.SelectContext(ctx, &chunks,
		`SELECT id, document_id, chunk_index, page_number, text, word_count, start_char, end_char
		 FROM chunks WHERE document_id = ? ORDER BY chunk_index`, id,
	)
	return chunks, err
}

// DeleteDocument removes a document, its chunks and vocabulary.
func (s *SQLiteStore) DeleteDocument(ctx context.Context, id string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := deleteRows(ctx, tx, id); err != nil {
		return err
	}
	return tx.Commit()
}

func deleteRows(ctx context.Context, tx *sqlx.Tx, id string) error {
	for _, q := range []string{
		`DELETE FROM vocabulary WHERE document_id = ?`,
		`DELETE FROM chunks WHERE document_id = ?`,
		`DELETE FROM documents WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return err
		}
	}
	return nil
}

// ListDocuments returns document summaries, newest first.
func (s *SQLiteStore) ListDocuments(ctx context.Context) ([]*models.DocumentSummary, error) {
	docs := []*models.DocumentSummary{}
	err := s.db.SelectContext(ctx, &docs,
		`SELECT id, name, total_chunks, total_pages, created_at
		 FROM documents ORDER BY created_at DESC, rowid DESC`,
	)
	return docs, err
}

// TouchDocument updates last_accessed_at.
func (s *SQLiteStore) TouchDocument(ctx context.Context, id string, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE documents SET last_accessed_at = ? WHERE id = ?`, at.UTC(), id,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetStats counts documents, chunks and vocabulary rows.
func (s *SQLiteStore) GetStats(ctx context.Context) (*models.StoreStats, error) {
	var stats models.StoreStats
	err := s.db.GetContext(ctx, &stats,
		`SELECT
			(SELECT COUNT(*) FROM documents) AS total_documents,
			(SELECT COUNT(*) FROM chunks) AS total_chunks,
			(SELECT COUNT(*) FROM vocabulary) AS total_vocab_terms`,
	)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// SizeBytes reports the on-disk size of the database including WAL files.
func (s *SQLiteStore) SizeBytes() (int64, error) {
	return DiskUsageBytes(s.path, s.path+"-wal", s.path+"-shm")
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
