// Package docstore is the narrow document-store interface the auth core
// reads and writes role records through: JSON documents addressed by
// (collection, id).
package docstore

import "context"

// Document is one stored record. Values round-trip through JSON.
type Document map[string]any

// Store reads and writes documents. GetDocument returns (nil, nil) for an
// absent document; SetDocument is create-or-overwrite, so callers that must
// not clobber existing records check existence first.
type Store interface {
	GetDocument(ctx context.Context, collection, id string) (Document, error)
	SetDocument(ctx context.Context, collection, id string, doc Document) error
}
