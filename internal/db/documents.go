package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	nanoid "github.com/jaevor/go-nanoid"
	"github.com/ldi/dayplan/pkg/models"
)

const (
	documentIDAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	documentIDLength   = 20
)

// ErrInvalidCollection is returned for paths that do not name a collection.
var ErrInvalidCollection = errors.New("invalid collection path")

var newDocumentID = mustIDGenerator()

func mustIDGenerator() func() string {
	gen, err := nanoid.CustomASCII(documentIDAlphabet, documentIDLength)
	if err != nil {
		panic(fmt.Sprintf("failed to create id generator: %v", err))
	}
	return gen
}

// ValidateCollection checks that path names a collection: an odd number of
// non-empty segments such as "users/{uid}/tasks".
func ValidateCollection(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidCollection)
	}
	segments := strings.Split(path, "/")
	if len(segments)%2 == 0 {
		return fmt.Errorf("%w: %q names a document, not a collection", ErrInvalidCollection, path)
	}
	for _, s := range segments {
		if s == "" {
			return fmt.Errorf("%w: %q has an empty segment", ErrInvalidCollection, path)
		}
	}
	return nil
}

// AddDocument inserts fields as a new document with a generated id.
func (db *DB) AddDocument(ctx context.Context, collection string, fields json.RawMessage) (string, error) {
	if err := ValidateCollection(collection); err != nil {
		return "", err
	}
	if !json.Valid(fields) {
		return "", fmt.Errorf("failed to add document: fields are not valid JSON")
	}

	id := newDocumentID()
	query := `INSERT INTO documents (collection, id, fields) VALUES (?, ?, ?)`
	if _, err := db.ExecContext(ctx, query, collection, id, string(fields)); err != nil {
		return "", fmt.Errorf("failed to add document: %w", err)
	}

	db.triggerChange(ctx, collection)
	return id, nil
}

// SetDocument replaces all fields of an existing document.
// It returns models.ErrDocumentNotFound if the id does not exist.
func (db *DB) SetDocument(ctx context.Context, collection, id string, fields json.RawMessage) error {
	if err := ValidateCollection(collection); err != nil {
		return err
	}
	if !json.Valid(fields) {
		return fmt.Errorf("failed to set document: fields are not valid JSON")
	}

	query := `UPDATE documents SET fields = ? WHERE collection = ? AND id = ?`
	res, err := db.ExecContext(ctx, query, string(fields), collection, id)
	if err != nil {
		return fmt.Errorf("failed to set document: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s/%s", models.ErrDocumentNotFound, collection, id)
	}

	db.triggerChange(ctx, collection)
	return nil
}

// DeleteDocument removes a document. Deleting a missing id is not an error.
func (db *DB) DeleteDocument(ctx context.Context, collection, id string) error {
	if err := ValidateCollection(collection); err != nil {
		return err
	}

	query := `DELETE FROM documents WHERE collection = ? AND id = ?`
	res, err := db.ExecContext(ctx, query, collection, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		db.triggerChange(ctx, collection)
	}
	return nil
}

// GetDocument returns nil, nil if the document does not exist.
func (db *DB) GetDocument(ctx context.Context, collection, id string) (*models.Document, error) {
	query := `
		SELECT collection, id, fields, created_at, updated_at
		FROM documents
		WHERE collection = ? AND id = ?
	`
	d, err := scanDocument(db.QueryRowContext(ctx, query, collection, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return d, nil
}

// ListDocuments returns every document of a collection in insertion order.
func (db *DB) ListDocuments(ctx context.Context, collection string) ([]*models.Document, error) {
	query := `
		SELECT collection, id, fields, created_at, updated_at
		FROM documents
		WHERE collection = ?
		ORDER BY created_at ASC, rowid ASC
	`
	return db.queryDocuments(ctx, db.DB, query, collection)
}

// ListAllDocuments returns every document across all collections.
func (db *DB) ListAllDocuments(ctx context.Context) ([]*models.Document, error) {
	query := `
		SELECT collection, id, fields, created_at, updated_at
		FROM documents
		ORDER BY collection ASC, created_at ASC, rowid ASC
	`
	return db.queryDocuments(ctx, db.DB, query)
}

func (db *DB) queryDocuments(ctx context.Context, exec executor, query string, args ...any) ([]*models.Document, error) {
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	docs := []*models.Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return docs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	d := &models.Document{}
	var fields string
	if err := row.Scan(&d.Collection, &d.ID, &fields, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	d.Fields = json.RawMessage(fields)
	return d, nil
}
