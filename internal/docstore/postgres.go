package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// PostgresStore persists documents as JSONB rows in the documents table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore returns a document store backed by db.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// GetDocument returns the document for (collection, id), or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (s *PostgresStore) GetDocument(ctx context.Context, collection, id string) (Document, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2`,
		collection, id).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// SetDocument creates or overwrites the document at (collection, id).
func (s *PostgresStore) SetDocument(ctx context.Context, collection, id string, doc Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (collection, id) DO UPDATE SET data = $3, updated_at = $4`,
		collection, id, raw, time.Now().UTC())
	return err
}
