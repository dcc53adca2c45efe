package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Document keys of the local key-value-document store.
const (
	KeyInspections          = "cargo_inspections"
	KeyPendingSync          = "pending_sync"
	KeyLastQualityInspector = "last_quality_inspector"
	KeyAppLanguage          = "app_language"
)

// Document is one named value in a Documents store.
type Document struct {
	Key   string
	Value []byte
}

// Documents is a durable key-value store of whole documents.
// Get returns nil, nil for a missing key. Put writes all given documents
// atomically.
type Documents interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, docs ...Document) error
	Delete(ctx context.Context, key string) error
}

// SQLiteDocuments stores documents in the documents table.
type SQLiteDocuments struct {
	DB *sql.DB
}

// Get returns the document stored under key.
func (s *SQLiteDocuments) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.DB.QueryRowContext(ctx,
		`SELECT value FROM documents WHERE key = ?`, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting document %s: %w", key, err)
	}
	return value, nil
}

// Put upserts the given documents in a single transaction.
func (s *SQLiteDocuments) Put(ctx context.Context, docs ...Document) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, d := range docs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO documents (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
			 ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
			d.Key, d.Value,
		)
		if err != nil {
			return fmt.Errorf("writing document %s: %w", d.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing documents: %w", err)
	}
	return nil
}

// Delete removes the document stored under key.
func (s *SQLiteDocuments) Delete(ctx context.Context, key string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM documents WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("deleting document %s: %w", key, err)
	}
	return nil
}
