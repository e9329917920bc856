package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/outreach/internal/server/storage"
)

// PutDocument creates or replaces a document.
// Timestamps are taken from doc when set, otherwise the current time is used.
func (s *Storage) PutDocument(ctx context.Context, doc *storage.Document) (bool, error) {
	now := time.Now()
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = now
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var createdAt int64
	err = tx.QueryRowContext(ctx,
		`SELECT created_at FROM documents WHERE collection = ? AND id = ?`,
		doc.Collection, doc.ID,
	).Scan(&createdAt)

	created := false
	switch {
	case errors.Is(err, sql.ErrNoRows):
		created = true
		if doc.CreatedAt.IsZero() {
			doc.CreatedAt = doc.UpdatedAt
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO documents (collection, id, body, updated_by, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, doc.Collection, doc.ID, []byte(doc.Body), doc.UpdatedBy,
			doc.CreatedAt.UnixNano(), doc.UpdatedAt.UnixNano())
		if err != nil {
			return false, fmt.Errorf("failed to insert document: %w", err)
		}
	case err != nil:
		return false, fmt.Errorf("failed to check document: %w", err)
	default:
		doc.CreatedAt = time.Unix(0, createdAt)
		_, err = tx.ExecContext(ctx, `
			UPDATE documents
			SET body = ?, updated_by = ?, updated_at = ?
			WHERE collection = ? AND id = ?
		`, []byte(doc.Body), doc.UpdatedBy, doc.UpdatedAt.UnixNano(), doc.Collection, doc.ID)
		if err != nil {
			return false, fmt.Errorf("failed to update document: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return created, nil
}

// GetDocument retrieves a single document
func (s *Storage) GetDocument(ctx context.Context, collection, id string) (*storage.Document, error) {
	query := `
		SELECT collection, id, body, updated_by, created_at, updated_at
		FROM documents
		WHERE collection = ? AND id = ?
	`

	doc, err := scanDocument(s.db.QueryRowContext(ctx, query, collection, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	return doc, nil
}

// ListDocuments retrieves all documents of a collection ordered by id
func (s *Storage) ListDocuments(ctx context.Context, collection string) ([]*storage.Document, error) {
	query := `
		SELECT collection, id, body, updated_by, created_at, updated_at
		FROM documents
		WHERE collection = ?
		ORDER BY id
	`

	rows, err := s.db.QueryContext(ctx, query, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	docs := make([]*storage.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}

	return docs, nil
}

// DeleteDocument removes a document
func (s *Storage) DeleteDocument(ctx context.Context, collection, id string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return storage.ErrDocumentNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*storage.Document, error) {
	var (
		doc       storage.Document
		body      []byte
		createdAt int64
		updatedAt int64
	)

	if err := row.Scan(&doc.Collection, &doc.ID, &body, &doc.UpdatedBy, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	doc.Body = body
	doc.CreatedAt = time.Unix(0, createdAt)
	doc.UpdatedAt = time.Unix(0, updatedAt)

	return &doc, nil
}
