package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kotae/internal/models"
)

// SQLiteStore implements DocumentStore using SQLite. Rows are durable as soon
// as they are appended, so Save only checkpoints the write-ahead log.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Appends compute the next position from COUNT(*); one connection keeps that atomic.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, path: filepath.Clean(dbPath)}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		position INTEGER PRIMARY KEY,
		content TEXT NOT NULL,
		metadata TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := db.Exec(schema)
	return err
}

// Append inserts doc at the next position.
func (s *SQLiteStore) Append(ctx context.Context, doc models.Document) (int, error) {
	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var position int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&position); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents (position, content, metadata) VALUES (?, ?, ?)`,
		position, doc.Content, string(metadataJSON),
	); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return position, nil
}

// Get returns the document at position.
func (s *SQLiteStore) Get(ctx context.Context, position int) (*models.Document, error) {
	var doc models.Document
	var metadataJSON sql.NullString

	err := s.db.QueryRowContext(ctx,
		`SELECT content, metadata FROM documents WHERE position = ?`, position,
	).Scan(&doc.Content, &metadataJSON)

	if err == sql.ErrNoRows {
		count, countErr := s.Count(ctx)
		if countErr != nil {
			return nil, countErr
		}
		return nil, outOfRange(position, count)
	}
	if err != nil {
		return nil, err
	}
	if err := decodeMetadata(metadataJSON, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// List returns documents in position order. limit <= 0 means all.
func (s *SQLiteStore) List(ctx context.Context, offset, limit int) ([]*models.Document, error) {
	if limit <= 0 {
		limit = -1
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT content, metadata FROM documents ORDER BY position LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		var doc models.Document
		var metadataJSON sql.NullString
		if err := rows.Scan(&doc.Content, &metadataJSON); err != nil {
			return nil, err
		}
		if err := decodeMetadata(metadataJSON, &doc); err != nil {
			return nil, err
		}
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

func decodeMetadata(raw sql.NullString, doc *models.Document) error {
	if !raw.Valid || raw.String == "" || raw.String == "null" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw.String), &doc.Metadata); err != nil {
		return fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return nil
}

// Count returns the total number of documents.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

// Truncate removes documents at positions >= n.
func (s *SQLiteStore) Truncate(ctx context.Context, n int) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE position >= ?`, n)
	return err
}

// Save checkpoints the WAL when path is the open database; any other path
// receives a full copy of the database.
func (s *SQLiteStore) Save(ctx context.Context, path string) error {
	if path == "" || filepath.Clean(path) == s.path {
		_, err := s.db.ExecContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE)`)
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to replace database copy: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		return fmt.Errorf("failed to copy database: %w", err)
	}
	return nil
}

// Load is a no-op for the open database: its rows are already live.
func (s *SQLiteStore) Load(ctx context.Context, path string) error {
	if path == "" || filepath.Clean(path) == s.path {
		return nil
	}
	return fmt.Errorf("sqlite store is bound to %s, cannot load %s", s.path, path)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ DocumentStore = (*SQLiteStore)(nil)
